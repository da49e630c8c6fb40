package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/backlinker/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/search", h.SearchDocuments)
	r.Get("/backlinks/*", h.GetBacklinks)
	r.Get("/conflicts", h.ListConflicts)

	r.Get("/runs/latest", h.LatestRun)
	r.Post("/runs", h.TriggerRun)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
