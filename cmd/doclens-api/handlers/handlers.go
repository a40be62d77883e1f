// Package handlers implements the HTTP handlers for the doclens API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/doclens-ai/doclens/internal/agents"
	"github.com/doclens-ai/doclens/internal/embedding"
	"github.com/doclens-ai/doclens/internal/ingest"
	"github.com/doclens-ai/doclens/internal/observability"
	"github.com/doclens-ai/doclens/internal/search"
	"github.com/doclens-ai/doclens/internal/storage"
)

// Searcher is the retrieval surface the search endpoint needs.
// *search.Searcher implements it.
type Searcher interface {
	Lexical(ctx context.Context, ownerID, query string, topK int) ([]search.Hit, error)
	Vector(ctx context.Context, ownerID string, queryVec []float32, topK int) ([]search.Hit, error)
	Hybrid(ctx context.Context, ownerID, query string, queryVec []float32, topK int) ([]search.Hit, error)
}

// UploadLimits bounds incoming document uploads.
type UploadLimits struct {
	MaxSize int64
	Dir     string
}

// Handler bundles the dependencies the API handlers need.
type Handler struct {
	repos    *storage.Repositories
	pipeline *ingest.Pipeline
	rag      *agents.RAGPipeline
	searcher Searcher
	embedder embedding.Embedder
	logger   *observability.Logger
	upload   UploadLimits
}

// New creates the handler bundle. rag may be nil when no chat model is
// configured; the chat endpoint then returns 503.
func New(
	repos *storage.Repositories,
	pipeline *ingest.Pipeline,
	rag *agents.RAGPipeline,
	searcher Searcher,
	embedder embedding.Embedder,
	logger *observability.Logger,
	upload UploadLimits,
) *Handler {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Handler{
		repos:    repos,
		pipeline: pipeline,
		rag:      rag,
		searcher: searcher,
		embedder: embedder,
		logger:   logger,
		upload:   upload,
	}
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg, detail string) {
	h.writeJSON(w, status, errorResponse{Error: msg, Detail: detail})
}
