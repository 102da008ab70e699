package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "deepview/backend/docs"
)

// NewRouter assembles the HTTP surface. JSON endpoints sit behind a request
// timeout; the chat endpoint does not, since a video generation stream can
// legitimately run for several minutes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HandleHealth)
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Post("/conversations", h.HandleCreateConversation)
			r.Get("/conversations", h.HandleListConversations)
			r.Get("/conversations/{id}", h.HandleGetConversation)
			r.Put("/conversations/{id}/mode", h.HandleUpdateMode)
			r.Delete("/conversations/{id}", h.HandleDeleteConversation)
		})

		r.Post("/chat", h.HandleChat)
	})

	return r
}
