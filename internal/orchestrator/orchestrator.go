// Package orchestrator drives the per-course sync state machine: it compares the
// cached content version with the published one and refreshes, flags or reads
// the cached topic list accordingly.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/starford/cheatsheet/internal/apperr"
	"github.com/starford/cheatsheet/internal/cache"
	"github.com/starford/cheatsheet/internal/models"
	"github.com/starford/cheatsheet/internal/remote"
	"github.com/starford/cheatsheet/internal/version"
)

// State is a step of the sync state machine.
type State string

const (
	StateStart        State = "start"
	StateLoading      State = "loading"
	StateListCheck    State = "list_check"
	StateContentCheck State = "content_check"
	StateFetchRemote  State = "fetch_remote"
	StateReadCache    State = "read_cache"
	StateStop         State = "stop"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transition follows s within a run.
func (s State) Terminal() bool { return s == StateStop || s == StateFailed }

// Input is the published version a session syncs against.
type Input struct {
	VersionName   string `json:"version_name"`
	VersionSuffix string `json:"version_suffix"`
}

// Empty reports whether no version was supplied.
func (in Input) Empty() bool { return in.VersionName == "" && in.VersionSuffix == "" }

// Event is emitted on every transition and after a topic is marked seen.
type Event struct {
	SessionID        string          `json:"session_id"`
	Course           string          `json:"course"`
	State            State           `json:"state"`
	HasListUpdate    bool            `json:"has_list_update"`
	HasContentUpdate bool            `json:"has_content_update"`
	UpdatedIDs       []int           `json:"updated_ids,omitempty"`
	SeenID           int             `json:"seen_id,omitempty"`
	Topics           []models.Topic  `json:"topics,omitempty"`
	Failure          *apperr.Failure `json:"failure,omitempty"`
	At               time.Time       `json:"at"`
}

// Changed reports whether the event follows a modification of the cached list.
func (e Event) Changed() bool {
	return e.State == StateStop && (e.HasListUpdate || e.HasContentUpdate || e.SeenID != 0)
}

// Notifier receives every event a session emits, in order.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier registers an event sink shared by all sessions.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithEventBuffer sets the capacity of each session's event channel.
func WithEventBuffer(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}

// Orchestrator syncs one course. It is safe for concurrent use; every
// Open returns an independent session, but at most one of them runs its
// sync or writes a flag at a time.
type Orchestrator struct {
	course      models.Course
	src         remote.Source
	db          cache.TopicCache
	logger      *slog.Logger
	notifier    Notifier
	eventBuffer int

	// writes serializes cache mutations of this course.
	writes *semaphore.Weighted
}

// New creates an Orchestrator for course.
func New(course models.Course, src remote.Source, db cache.TopicCache, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		course:      course,
		src:         src,
		db:          db,
		logger:      logger.With(slog.String("course", course.Name)),
		eventBuffer: 16,
		writes:      semaphore.NewWeighted(1),
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// Course returns the course this orchestrator syncs.
func (o *Orchestrator) Course() models.Course { return o.course }

// MarkSeen clears the update flag of a cached topic and returns the topic.
// When the flag was set, a stop event with SeenID and the updated list is
// sent to the notifier. Unknown IDs return apperr.ErrNotFound.
func (o *Orchestrator) MarkSeen(ctx context.Context, id int) (models.Topic, error) {
	if err := o.writes.Acquire(ctx, 1); err != nil {
		return models.Topic{}, err
	}
	defer o.writes.Release(1)

	cached, err := o.db.ListTopics(o.course.Name)
	if err != nil {
		return models.Topic{}, apperr.Cache("Can't read the cached topics.", err)
	}
	seen, topics, err := o.clearFlag(cached, id)
	if err != nil {
		return models.Topic{}, err
	}
	if topics != nil && o.notifier != nil {
		o.notifier.Notify(Event{
			Course: o.course.Name,
			State:  StateStop,
			SeenID: id,
			Topics: topics,
			At:     time.Now().UTC(),
		})
	}
	return seen, nil
}

// clearFlag clears the flag of topic id in the cache and returns the topic
// and a copy of topics with it replaced. The copy is nil when the topic was
// not flagged.
func (o *Orchestrator) clearFlag(topics []models.Topic, id int) (models.Topic, []models.Topic, error) {
	var current *models.Topic
	for i := range topics {
		if topics[i].ID == id {
			t := topics[i]
			current = &t
			break
		}
	}
	if current == nil {
		return models.Topic{}, nil, apperr.ErrNotFound
	}
	if !current.HasUpdated {
		return *current, nil, nil
	}

	if _, err := o.db.MarkUpdated(o.course.Name, []int{id}, false); err != nil {
		return models.Topic{}, nil, apperr.Cache("Can't clear the update flag.", err)
	}
	current.HasUpdated = false
	updated, _ := models.ReplaceTopic(topics, *current)
	return *current, updated, nil
}

// Result is the outcome of a completed sync.
type Result struct {
	SessionID        string            `json:"session_id"`
	Course           string            `json:"course"`
	Staleness        version.Staleness `json:"staleness"`
	HasListUpdate    bool              `json:"has_list_update"`
	HasContentUpdate bool              `json:"has_content_update"`
	UpdatedIDs       []int             `json:"updated_ids,omitempty"`
	Topics           []models.Topic    `json:"topics"`
}

// Sync opens a session, starts it and waits for it to stop or fail.
// Failures are returned as *apperr.Failure.
func (o *Orchestrator) Sync(ctx context.Context, in Input) (Result, error) {
	s := o.Open(ctx, in)
	defer s.Close()
	s.Start()

	for ev := range s.Events() {
		switch ev.State {
		case StateStop:
			res := Result{
				SessionID:        ev.SessionID,
				Course:           ev.Course,
				Staleness:        version.UpToDate,
				HasListUpdate:    ev.HasListUpdate,
				HasContentUpdate: ev.HasContentUpdate,
				UpdatedIDs:       ev.UpdatedIDs,
				Topics:           ev.Topics,
			}
			switch {
			case ev.HasListUpdate:
				res.Staleness = version.ListStale
			case ev.HasContentUpdate:
				res.Staleness = version.ContentStale
			}
			return res, nil
		case StateFailed:
			if ev.Failure == nil {
				return Result{}, apperr.Cache("sync failed", nil)
			}
			return Result{}, ev.Failure
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{}, context.Canceled
}
