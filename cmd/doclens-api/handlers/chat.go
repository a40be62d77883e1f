package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/doclens-ai/doclens/cmd/doclens-api/middleware"
)

type chatRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Chat answers a question against the owner's indexed documents.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.rag == nil {
		h.writeError(w, http.StatusServiceUnavailable, "chat model is not configured", "")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required", "")
		return
	}

	ownerID := middleware.OwnerFromContext(r.Context())

	result, err := h.rag.Ask(r.Context(), ownerID, req.Query, req.TopK)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "answer query", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
