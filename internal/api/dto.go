package api

import (
	"github.com/starford/cheatsheet/internal/cache"
	"github.com/starford/cheatsheet/internal/models"
	"github.com/starford/cheatsheet/internal/topicservice"
)

// CourseSummary is one configured course (aliased from the domain layer).
type CourseSummary = topicservice.CourseSummary

// CourseListResponse wraps the course listing.
type CourseListResponse struct {
	Courses []CourseSummary `json:"courses" validate:"required"`
}

// TopicListResponse is the outcome of a sync run for one course.
type TopicListResponse struct {
	SessionID        string         `json:"session_id" example:"5f0c6a9e-3c1b-4f43-9d55-0f6f0d6f1c2a" validate:"required"`
	Course           string         `json:"course" example:"coroutine" validate:"required"`
	Staleness        string         `json:"staleness" example:"content-stale" validate:"required"`
	HasListUpdate    bool           `json:"has_list_update"`
	HasContentUpdate bool           `json:"has_content_update"`
	UpdatedIDs       []int          `json:"updated_ids,omitempty" example:"4,7"`
	Topics           []models.Topic `json:"topics" validate:"required"`
}

// TopicPoints is the parsed content of one topic (aliased from the domain layer).
type TopicPoints = topicservice.TopicPoints

// AppInfo is the published app version (aliased from the domain layer).
type AppInfo = models.AppInfo

// SearchResult is a single search hit (aliased from the cache layer).
type SearchResult = cache.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
