package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/doclens-ai/doclens/cmd/doclens-api/middleware"
	"github.com/doclens-ai/doclens/internal/ingest"
	"github.com/doclens-ai/doclens/internal/storage"
)

// documentResponse is the API view of a document.
type documentResponse struct {
	ID        uuid.UUID              `json:"id"`
	Filename  string                 `json:"filename"`
	MimeType  string                 `json:"mime_type"`
	Status    storage.DocumentStatus `json:"status"`
	Meta      storage.JSONMap        `json:"meta,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func toDocumentResponse(doc *storage.Document) documentResponse {
	return documentResponse{
		ID:        doc.ID,
		Filename:  doc.Filename,
		MimeType:  doc.MimeType,
		Status:    doc.Status,
		Meta:      doc.Meta,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

type uploadResponse struct {
	Document documentResponse  `json:"document"`
	Report   *ingest.RunReport `json:"report,omitempty"`
}

// UploadDocument accepts a multipart file, stores it, and runs the ingestion
// pipeline synchronously. A replaces_id form field records a derived_from
// relation to an earlier document.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.upload.MaxSize)
	if err := r.ParseMultipartForm(h.upload.MaxSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "file too large", "")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing file field", "")
		return
	}
	defer file.Close()

	path, err := h.saveUpload(file, header.Filename)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "store upload", err.Error())
		return
	}

	doc := &storage.Document{
		OwnerID:  ownerID,
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Path:     path,
		Status:   storage.DocumentStatusPending,
		Meta:     storage.JSONMap{},
	}
	if err := h.repos.Documents.Create(r.Context(), doc); err != nil {
		h.writeError(w, http.StatusInternalServerError, "create document", err.Error())
		return
	}

	if replaces := r.FormValue("replaces_id"); replaces != "" {
		h.recordReplacement(r, doc, ownerID, replaces)
	}

	report, err := h.pipeline.Run(r.Context(), doc)
	if err != nil {
		h.logger.WithDocument(doc.ID.String()).Error().Err(err).Msg("ingestion failed")
		doc.Status = storage.DocumentStatusError
		h.writeJSON(w, http.StatusUnprocessableEntity, uploadResponse{
			Document: toDocumentResponse(doc),
			Report:   report,
		})
		return
	}

	doc, err = h.repos.Documents.GetByID(r.Context(), ownerID, doc.ID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "reload document", err.Error())
		return
	}

	if h.rag != nil {
		h.rag.InvalidateOwner(r.Context(), ownerID)
	}

	h.writeJSON(w, http.StatusCreated, uploadResponse{
		Document: toDocumentResponse(doc),
		Report:   report,
	})
}

// saveUpload writes the uploaded file under the upload dir with a UUID name,
// keeping the original extension for the extractor.
func (h *Handler) saveUpload(file multipart.File, filename string) (string, error) {
	if err := os.MkdirAll(h.upload.Dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(h.upload.Dir, uuid.NewString()+filepath.Ext(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// recordReplacement links a re-uploaded document to its predecessor. Failures
// are logged, not fatal.
func (h *Handler) recordReplacement(r *http.Request, doc *storage.Document, ownerID, replaces string) {
	prevID, err := uuid.Parse(replaces)
	if err != nil {
		h.logger.Warn().Str("replaces_id", replaces).Msg("invalid replaces_id, skipping relation")
		return
	}
	if _, err := h.repos.Documents.GetByID(r.Context(), ownerID, prevID); err != nil {
		h.logger.Warn().Str("replaces_id", replaces).Msg("replaced document not found, skipping relation")
		return
	}
	rel := &storage.DocumentRelation{
		SrcDocumentID: doc.ID,
		DstDocumentID: prevID,
		Relation:      storage.RelationDerivedFrom,
	}
	if err := h.repos.Relations.Create(r.Context(), rel); err != nil {
		h.logger.Warn().Err(err).Msg("record document relation")
	}
}

// ListDocuments returns the owner's documents, newest first.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerFromContext(r.Context())

	docs, err := h.repos.Documents.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "list documents", err.Error())
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"documents": out})
}

// GetDocument returns one document with its latest ingestion job, if any.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid document id", "")
		return
	}

	doc, err := h.repos.Documents.GetByID(r.Context(), ownerID, id)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "document not found", "")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "get document", err.Error())
		return
	}

	resp := map[string]interface{}{"document": toDocumentResponse(doc)}
	if job, err := h.repos.Jobs.LatestByDocument(r.Context(), id); err == nil {
		resp["job"] = job
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetDocumentChunks returns a document's stored chunks without embeddings.
func (h *Handler) GetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid document id", "")
		return
	}

	if _, err := h.repos.Documents.GetByID(r.Context(), ownerID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "document not found", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "get document", err.Error())
		return
	}

	chunks, err := h.repos.Chunks.ListByDocument(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "list chunks", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"chunks": chunks})
}

// DeleteDocument removes a document, its stored file, and all derived rows.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid document id", "")
		return
	}

	doc, err := h.repos.Documents.GetByID(r.Context(), ownerID, id)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "document not found", "")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "get document", err.Error())
		return
	}

	if err := h.repos.Documents.Delete(r.Context(), ownerID, id); err != nil {
		h.writeError(w, http.StatusInternalServerError, "delete document", err.Error())
		return
	}
	if doc.Path != "" {
		if err := os.Remove(doc.Path); err != nil && !os.IsNotExist(err) {
			h.logger.WithDocument(id.String()).Warn().Err(err).Msg("remove stored file")
		}
	}

	if h.rag != nil {
		h.rag.InvalidateOwner(r.Context(), ownerID)
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllDocuments removes every document of the owner along with the
// stored files.
func (h *Handler) DeleteAllDocuments(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerFromContext(r.Context())

	docs, err := h.repos.Documents.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "list documents", err.Error())
		return
	}

	deleted, err := h.repos.Documents.DeleteAllByOwner(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "delete documents", err.Error())
		return
	}

	for _, doc := range docs {
		if doc.Path == "" {
			continue
		}
		if err := os.Remove(doc.Path); err != nil && !os.IsNotExist(err) {
			h.logger.WithDocument(doc.ID.String()).Warn().Err(err).Msg("remove stored file")
		}
	}

	if h.rag != nil {
		h.rag.InvalidateOwner(r.Context(), ownerID)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}
