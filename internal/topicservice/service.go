// Package topicservice coordinates the content source, the topic cache and the
// per-course sync orchestrators behind the HTTP and MCP surfaces.
package topicservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/cheatsheet/internal/apperr"
	"github.com/starford/cheatsheet/internal/cache"
	"github.com/starford/cheatsheet/internal/checksum"
	"github.com/starford/cheatsheet/internal/models"
	"github.com/starford/cheatsheet/internal/orchestrator"
	"github.com/starford/cheatsheet/internal/parser"
	"github.com/starford/cheatsheet/internal/remote"
	"github.com/starford/cheatsheet/internal/version"
)

// CourseSummary describes a configured course and the state of its cache.
type CourseSummary struct {
	Name    string `json:"name"`
	Dir     string `json:"dir"`
	Title   string `json:"title"`
	Version string `json:"version"`
	Topics  int    `json:"topics"`
	Updated int    `json:"updated"`
}

// TopicPoints is the parsed content of one topic.
type TopicPoints struct {
	Course    string         `json:"course"`
	Topic     models.Topic   `json:"topic"`
	Points    []models.Point `json:"points"`
	Checksum  string         `json:"checksum"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Service coordinates source, cache and orchestrators.
type Service struct {
	courses []models.Course
	orch    map[string]*orchestrator.Orchestrator
	src     remote.Source
	db      cache.TopicCache
	logger  *slog.Logger
}

// NewService creates a topic service with one orchestrator per course.
func NewService(courses []models.Course, src remote.Source, db cache.TopicCache, logger *slog.Logger, opts ...orchestrator.Option) *Service {
	s := &Service{
		courses: courses,
		orch:    make(map[string]*orchestrator.Orchestrator, len(courses)),
		src:     src,
		db:      db,
		logger:  logger,
	}
	for _, c := range courses {
		s.orch[c.Name] = orchestrator.New(c, src, db, logger, opts...)
	}
	return s
}

// Orchestrator returns the orchestrator of a course or apperr.ErrNotFound.
func (s *Service) Orchestrator(course string) (*orchestrator.Orchestrator, error) {
	o, ok := s.orch[course]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return o, nil
}

// Courses lists the configured courses with their cached version and topic counts.
func (s *Service) Courses(_ context.Context) ([]CourseSummary, error) {
	out := make([]CourseSummary, 0, len(s.courses))
	for _, c := range s.courses {
		topics, err := s.db.ListTopics(c.Name)
		if err != nil {
			return nil, err
		}
		v, err := s.db.Version(c.Name)
		if err != nil {
			return nil, err
		}
		if v == "" {
			v = version.Zero
		}
		sum := CourseSummary{Name: c.Name, Dir: c.Dir, Title: c.Title, Version: v, Topics: len(topics)}
		for _, t := range topics {
			if t.HasUpdated {
				sum.Updated++
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// Topics syncs a course against the published version and returns its topic list.
// With an empty input the published version is read from the gradle file first;
// when that fails the cached list is returned unchanged.
func (s *Service) Topics(ctx context.Context, course string, in orchestrator.Input) (orchestrator.Result, error) {
	o, err := s.Orchestrator(course)
	if err != nil {
		return orchestrator.Result{}, err
	}
	if in.Empty() {
		info, err := s.AppInfo(ctx)
		if err != nil {
			s.logger.Warn("topics: app info unavailable, reading cache",
				slog.String("course", course),
				slog.String("error", err.Error()))
		} else {
			in = orchestrator.Input{VersionName: info.VersionName, VersionSuffix: info.VersionSuffix}
		}
	}
	return o.Sync(ctx, in)
}

// Points fetches, decodes and parses one topic file. Reading a topic clears
// its update flag.
func (s *Service) Points(ctx context.Context, course string, id int) (*TopicPoints, error) {
	o, err := s.Orchestrator(course)
	if err != nil {
		return nil, err
	}
	t, err := s.db.GetTopic(course, id)
	if err != nil {
		return nil, err
	}

	rf, err := s.src.TopicFile(ctx, o.Course(), t.Name)
	if err != nil {
		return nil, err
	}
	text, err := parser.Decode(rf.Content)
	if err != nil {
		return nil, err
	}
	points := parser.Parse(text)
	for i := range points {
		points[i].TopicID = t.ID
	}
	if points == nil {
		points = []models.Point{}
	}

	if t.HasUpdated {
		seen, err := o.MarkSeen(ctx, id)
		if err != nil {
			return nil, err
		}
		t = &seen
	}

	return &TopicPoints{
		Course:    course,
		Topic:     *t,
		Points:    points,
		Checksum:  checksum.Sum([]byte(text)),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// AppInfo reads the published version from the content repository's gradle file.
func (s *Service) AppInfo(ctx context.Context) (*models.AppInfo, error) {
	rf, err := s.src.AppInfo(ctx)
	if err != nil {
		return nil, err
	}
	text, err := parser.Decode(rf.Content)
	if err != nil {
		return nil, err
	}
	info, err := version.ParseGradle(text)
	if err != nil {
		return nil, apperr.InvalidVersion(err)
	}
	if info.VersionName == "" {
		return nil, apperr.InvalidVersion(errors.New("versionName not found"))
	}
	return &info, nil
}

// Search runs a title search over every cached course.
func (s *Service) Search(_ context.Context, query string, limit int) ([]cache.SearchResult, error) {
	res, err := s.db.Search(query, limit)
	if err != nil {
		return nil, fmt.Errorf("topicservice: search: %w", err)
	}
	return res, nil
}

// Ready reports whether the cache is usable.
func (s *Service) Ready(ctx context.Context) error {
	return s.db.Ping(ctx)
}
