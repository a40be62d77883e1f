package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doclens-ai/doclens/cmd/doclens-api/handlers"
)

func TestNewRouter_RegistersAPIRoutes(t *testing.T) {
	h := handlers.New(nil, nil, nil, nil, nil, nil, handlers.UploadLimits{})
	router := NewRouter(AppConfig{Handler: h})

	mux, ok := router.(chi.Router)
	require.True(t, ok)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/documents/upload"},
		{http.MethodGet, "/api/documents"},
		{http.MethodGet, "/api/documents/4d6f7e6e/chunks"},
		{http.MethodGet, "/api/documents/4d6f7e6e"},
		{http.MethodDelete, "/api/documents/4d6f7e6e"},
		{http.MethodDelete, "/api/documents"},
		{http.MethodPost, "/api/chat"},
		{http.MethodPost, "/api/search"},
	}

	for _, tc := range tests {
		rctx := chi.NewRouteContext()
		assert.True(t, mux.Match(rctx, tc.method, tc.path), "%s %s", tc.method, tc.path)
	}
}

func TestNewRouter_Health(t *testing.T) {
	h := handlers.New(nil, nil, nil, nil, nil, nil, handlers.UploadLimits{})
	router := NewRouter(AppConfig{Handler: h})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
