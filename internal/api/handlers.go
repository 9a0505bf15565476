package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/cheatsheet/internal/checksum"
	"github.com/starford/cheatsheet/internal/models"
	"github.com/starford/cheatsheet/internal/orchestrator"
	"github.com/starford/cheatsheet/internal/topicservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *topicservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *topicservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListCourses handles GET /api/courses.
//
//	@Summary		List configured courses with their cached version
//	@Tags			courses
//	@Produce		json
//	@Success		200	{object}	CourseListResponse
//	@Security		BearerAuth
//	@Router			/courses [get]
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.svc.Courses(r.Context())
	if err != nil {
		writeError(w, r, "list courses", err)
		return
	}
	writeJSON(w, http.StatusOK, CourseListResponse{Courses: courses})
}

// ListTopics handles GET /api/courses/{course}/topics.
//
//	@Summary		Sync a course against the published version and list its topics
//	@Tags			topics
//	@Produce		json
//	@Param			course			path		string	true	"Course name"
//	@Param			version_name	query		string	false	"Published version, read from the gradle file when empty"
//	@Param			version_suffix	query		string	false	"Changed topic IDs, e.g. 4-7"
//	@Success		200				{object}	TopicListResponse
//	@Failure		400				{object}	errResponse
//	@Failure		404				{object}	errResponse
//	@Failure		502				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/courses/{course}/topics [get]
func (h *Handler) ListTopics(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	q := r.URL.Query()
	in := orchestrator.Input{
		VersionName:   strings.TrimSpace(q.Get("version_name")),
		VersionSuffix: strings.TrimSpace(q.Get("version_suffix")),
	}

	res, err := h.svc.Topics(r.Context(), course, in)
	if err != nil {
		writeError(w, r, "list topics", err)
		return
	}
	topics := res.Topics
	if topics == nil {
		topics = []models.Topic{}
	}
	writeJSON(w, http.StatusOK, TopicListResponse{
		SessionID:        res.SessionID,
		Course:           res.Course,
		Staleness:        res.Staleness.String(),
		HasListUpdate:    res.HasListUpdate,
		HasContentUpdate: res.HasContentUpdate,
		UpdatedIDs:       res.UpdatedIDs,
		Topics:           topics,
	})
}

// GetPoints handles GET /api/courses/{course}/topics/{id}/points.
//
//	@Summary		Read the parsed points of one topic
//	@Tags			topics
//	@Produce		json
//	@Param			course	path		string	true	"Course name"
//	@Param			id		path		int		true	"Topic ID"
//	@Success		200		{object}	TopicPoints
//	@Success		304
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/courses/{course}/topics/{id}/points [get]
func (h *Handler) GetPoints(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("topic id must be a non-negative integer", http.StatusBadRequest))
		return
	}

	tp, err := h.svc.Points(r.Context(), course, id)
	if err != nil {
		writeError(w, r, "get points", err)
		return
	}

	etag := checksum.ETag(tp.Checksum)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, tp)
}

// AppInfo handles GET /api/app-info.
//
//	@Summary		Read the published app version from the content repository
//	@Tags			app
//	@Produce		json
//	@Success		200	{object}	AppInfo
//	@Failure		400	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/app-info [get]
func (h *Handler) AppInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.AppInfo(r.Context())
	if err != nil {
		writeError(w, r, "app info", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Search handles GET /api/search.
//
//	@Summary		Search cached topic titles across courses
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required", http.StatusBadRequest))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, r, "search", err)
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
