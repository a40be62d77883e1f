package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/doclens-ai/doclens/cmd/doclens-api/middleware"
	"github.com/doclens-ai/doclens/internal/search"
)

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
	Mode  string `json:"mode"` // hybrid (default), vector, or lexical
}

// Search runs retrieval without answer generation, exposing the raw ranked
// chunks.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required", "")
		return
	}
	if req.TopK < 1 {
		req.TopK = 5
	}

	ownerID := middleware.OwnerFromContext(r.Context())

	var (
		hits []search.Hit
		err  error
	)
	switch req.Mode {
	case "lexical":
		hits, err = h.searcher.Lexical(r.Context(), ownerID, req.Query, req.TopK)
	case "vector":
		var vec []float32
		if vec, err = h.embedder.EmbedSingle(r.Context(), req.Query); err == nil {
			hits, err = h.searcher.Vector(r.Context(), ownerID, vec, req.TopK)
		}
	case "", "hybrid":
		var vec []float32
		if vec, err = h.embedder.EmbedSingle(r.Context(), req.Query); err == nil {
			hits, err = h.searcher.Hybrid(r.Context(), ownerID, req.Query, vec, req.TopK)
		}
	default:
		h.writeError(w, http.StatusBadRequest, "invalid mode", "expected hybrid, vector, or lexical")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "search", err.Error())
		return
	}
	if hits == nil {
		hits = []search.Hit{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   req.Query,
		"results": hits,
		"total":   len(hits),
	})
}
