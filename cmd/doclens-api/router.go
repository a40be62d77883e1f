package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/doclens-ai/doclens/cmd/doclens-api/handlers"
	"github.com/doclens-ai/doclens/cmd/doclens-api/middleware"
)

// AppConfig carries what the router needs beyond the handlers.
type AppConfig struct {
	Handler     *handlers.Handler
	Auth        middleware.AuthConfig
	CORSOrigins []string
}

// NewRouter builds the HTTP routing tree.
func NewRouter(app AppConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(app.CORSOrigins))
	r.Use(chimiddleware.Timeout(120 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.OwnerAuth(app.Auth))

		r.Post("/documents/upload", app.Handler.UploadDocument)
		r.Get("/documents", app.Handler.ListDocuments)
		r.Get("/documents/{id}", app.Handler.GetDocument)
		r.Get("/documents/{id}/chunks", app.Handler.GetDocumentChunks)
		r.Delete("/documents/{id}", app.Handler.DeleteDocument)
		r.Delete("/documents", app.Handler.DeleteAllDocuments)

		r.Post("/chat", app.Handler.Chat)
		r.Post("/search", app.Handler.Search)
	})

	return r
}
