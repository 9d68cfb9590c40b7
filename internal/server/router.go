package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SanyamVb/Multi-modal-RAG/internal/api"
	"github.com/SanyamVb/Multi-modal-RAG/internal/api/handlers"
	"github.com/SanyamVb/Multi-modal-RAG/internal/api/middleware"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	AnswerHandler   *handlers.AnswerHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Large enough for PDF uploads; everything else is far below this.
	const maxBodyBytes int64 = 64 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Delete("/", cfg.DocumentHandler.DeleteAll)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
			r.Get("/{id}/download", cfg.DocumentHandler.Download)
		})

		r.Post("/answers", cfg.AnswerHandler.Ask)
	})

	return r
}
