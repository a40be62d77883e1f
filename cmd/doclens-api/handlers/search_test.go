package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doclens-ai/doclens/internal/embedding"
	"github.com/doclens-ai/doclens/internal/search"
)

type stubSearcher struct {
	hits []search.Hit
	err  error
}

func (s stubSearcher) Lexical(context.Context, string, string, int) ([]search.Hit, error) {
	return s.hits, s.err
}

func (s stubSearcher) Vector(context.Context, string, []float32, int) ([]search.Hit, error) {
	return s.hits, s.err
}

func (s stubSearcher) Hybrid(context.Context, string, string, []float32, int) ([]search.Hit, error) {
	return s.hits, s.err
}

func newSearchHandler(s Searcher) *Handler {
	return New(nil, nil, nil, s, embedding.NewMockClient(8), nil, UploadLimits{})
}

func postSearch(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	return rec
}

func decodeBody(rec *httptest.ResponseRecorder, v interface{}) error {
	return json.NewDecoder(rec.Body).Decode(v)
}

type searchResponse struct {
	Query   string       `json:"query"`
	Results []search.Hit `json:"results"`
	Total   int          `json:"total"`
}

func TestSearch_ReturnsResultsAndTotal(t *testing.T) {
	hits := []search.Hit{
		{ChunkID: uuid.New(), Content: "notice period is 30 days", Score: 0.9},
		{ChunkID: uuid.New(), Content: "termination clause", Score: 0.7},
	}
	h := newSearchHandler(stubSearcher{hits: hits})

	rec := postSearch(t, h, `{"query":"notice period","mode":"lexical"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, decodeBody(rec, &resp))
	assert.Equal(t, "notice period", resp.Query)
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Results, 2)
}

func TestSearch_DefaultsToHybrid(t *testing.T) {
	hits := []search.Hit{{ChunkID: uuid.New(), Content: "match"}}
	h := newSearchHandler(stubSearcher{hits: hits})

	rec := postSearch(t, h, `{"query":"anything"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, decodeBody(rec, &resp))
	assert.Equal(t, 1, resp.Total)
}

func TestSearch_NoHitsTotalZero(t *testing.T) {
	h := newSearchHandler(stubSearcher{})

	rec := postSearch(t, h, `{"query":"nothing indexed","mode":"vector"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, decodeBody(rec, &resp))
	assert.Equal(t, 0, resp.Total)
	assert.NotNil(t, resp.Results)
}

func TestSearch_InvalidMode(t *testing.T) {
	h := newSearchHandler(stubSearcher{})
	rec := postSearch(t, h, `{"query":"q","mode":"semantic"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_EmptyQuery(t *testing.T) {
	h := newSearchHandler(stubSearcher{})
	rec := postSearch(t, h, `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
