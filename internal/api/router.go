package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/cheatsheet/internal/topicservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *topicservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/courses", h.ListCourses)
	r.Get("/courses/{course}/topics", h.ListTopics)
	r.Get("/courses/{course}/topics/{id}/points", h.GetPoints)

	r.Get("/app-info", h.AppInfo)
	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
