package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/automaton/internal/actionservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *actionservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Actions CRUD, keyed by action key.
	r.Get("/actions", h.ListActions)
	r.Post("/actions", h.CreateAction)
	r.Route("/actions/{key}", func(r chi.Router) {
		r.Get("/", h.GetAction)
		r.Put("/", h.UpdateAction)
		r.Delete("/", h.DeleteAction)
		r.Get("/check", h.CheckAction)
		r.Post("/follow", h.FollowAction)
	})

	r.Post("/reload", h.Reload)
	r.Get("/schemes", h.Schemes)
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
