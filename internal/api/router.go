package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/queryservice"
)

// NewRouter creates a chi router with the query surface mounted.
// authEnabled controls whether Bearer token auth is enforced.
// trigger, if non-nil, backs POST /sync.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *queryservice.Service, authEnabled bool, token string, trigger func(), sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, trigger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Query surface.
	r.Get("/search", h.Search)
	r.Get("/semantic-search", h.SemanticSearch)
	r.Get("/graph", h.Graph)
	r.Get("/tasks", h.Tasks)
	r.Get("/related", h.Related)

	// Vault reads.
	r.Get("/tree", h.Tree)
	r.Get("/notes/*", h.GetNote)

	// Manual sync trigger.
	r.Post("/sync", h.Sync)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
