package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/cheatsheet/internal/apperr"
	"github.com/starford/cheatsheet/internal/models"
	"github.com/starford/cheatsheet/internal/version"
)

// ErrNotReady is returned by MarkSeen before the session has a topic list.
var ErrNotReady = errors.New("orchestrator: session has not stopped")

// ErrClosed is returned by session methods after Close.
var ErrClosed = errors.New("orchestrator: session closed")

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdMarkSeen
)

type command struct {
	kind  cmdKind
	id    int
	reply chan error
}

// Session is one sync attempt against a published version.
//
// Concurrency model: a single loop goroutine owns the state and the topic
// list. Start and MarkSeen are queued on one input channel; transitions are
// delivered in order on Events, which is closed when the loop exits.
type Session struct {
	id     string
	o      *Orchestrator
	in     Input
	logger *slog.Logger

	cmds   chan command
	events chan Event
	done   chan struct{}

	cancel    context.CancelFunc
	closeOnce sync.Once

	// Loop-owned.
	state  State
	last   Event
	topics []models.Topic
}

// Open creates a session in state start. Cancelling ctx or calling Close
// abandons any in-flight work.
func (o *Orchestrator) Open(ctx context.Context, in Input) *Session {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	s := &Session{
		id:     id,
		o:      o,
		in:     in,
		logger: o.logger.With(slog.String("session", id)),
		cmds:   make(chan command, 8),
		events: make(chan Event, o.eventBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
		state:  StateStart,
	}
	s.last = Event{SessionID: id, Course: o.course.Name, State: StateStart}
	go s.loop(ctx)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Events returns the ordered event stream of the session.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the session loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start runs the sync. Only the first call has an effect.
func (s *Session) Start() {
	select {
	case s.cmds <- command{kind: cmdStart}:
	case <-s.done:
	}
}

// MarkSeen clears the update flag of the topic with the given ID, both in the
// session's list and in the cache.
func (s *Session) MarkSeen(ctx context.Context, id int) error {
	reply := make(chan error, 1)
	select {
	case s.cmds <- command{kind: cmdMarkSeen, id: id, reply: reply}:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the session and waits for its loop to exit.
func (s *Session) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	s.emit(ctx, s.last)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sync: session closed", slog.String("state", string(s.state)))
			return
		case c := <-s.cmds:
			switch c.kind {
			case cmdStart:
				if s.state != StateStart {
					continue
				}
				s.run(ctx)
			case cmdMarkSeen:
				c.reply <- s.markSeen(ctx, c.id)
			}
		}
	}
}

// transition moves to state and emits the accumulated event.
func (s *Session) transition(ctx context.Context, state State, mutate func(*Event)) {
	s.state = state
	ev := s.last
	ev.State = state
	ev.Topics = nil
	ev.Failure = nil
	ev.SeenID = 0
	if mutate != nil {
		mutate(&ev)
	}
	s.last = ev
	s.logger.Debug("sync: transition", slog.String("state", string(state)))
	s.emit(ctx, ev)
}

func (s *Session) emit(ctx context.Context, ev Event) {
	ev.At = time.Now().UTC()
	if s.o.notifier != nil {
		s.o.notifier.Notify(ev)
	}
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *Session) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		// Abandoned: no failure is surfaced for cancelled work.
		return
	}
	f := apperr.AsFailure(err)
	s.logger.Warn("sync: failed",
		slog.Int("code", f.Code),
		slog.String("message", f.Message),
		slog.String("error", err.Error()))
	s.transition(ctx, StateFailed, func(e *Event) { e.Failure = f })
}

func (s *Session) run(ctx context.Context) {
	if err := s.o.writes.Acquire(ctx, 1); err != nil {
		s.logger.Debug("sync: abandoned while waiting for another sync")
		return
	}
	defer s.o.writes.Release(1)

	s.transition(ctx, StateLoading, nil)
	s.transition(ctx, StateListCheck, nil)

	cached, err := s.resolveVersions(ctx)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	out, err := version.Compare(cached, s.in.VersionName, s.in.VersionSuffix)
	if err != nil {
		s.fail(ctx, apperr.InvalidVersion(err))
		return
	}
	s.logger.Info("sync: versions compared",
		slog.String("cached", cached),
		slog.String("remote", s.in.VersionName),
		slog.String("staleness", out.Staleness.String()))

	if out.Staleness == version.ListStale {
		s.last.HasListUpdate = true
		s.fetchRemote(ctx)
		return
	}

	if out.Staleness == version.ContentStale {
		s.last.HasContentUpdate = true
		s.last.UpdatedIDs = out.IDs
	}
	s.transition(ctx, StateContentCheck, nil)
	if out.Staleness == version.ContentStale {
		if err := s.markContent(out.IDs); err != nil {
			s.fail(ctx, err)
			return
		}
	}
	s.readCache(ctx)
}

// resolveVersions reads the cached version and validates the published one
// concurrently. A malformed cached value is treated as never synced.
func (s *Session) resolveVersions(ctx context.Context) (string, error) {
	var cached string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.o.db.Version(s.o.course.Name)
		if err != nil {
			return apperr.Cache("Can't read the cached version.", err)
		}
		if v != "" {
			if _, perr := version.Parse(v); perr != nil {
				s.logger.Warn("sync: malformed cached version", slog.String("version", v), slog.String("error", perr.Error()))
				v = ""
			}
		}
		cached = v
		return gctx.Err()
	})
	g.Go(func() error {
		if s.in.VersionName == "" {
			return nil
		}
		if _, err := version.Parse(s.in.VersionName); err != nil {
			return apperr.InvalidVersion(err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	return cached, ctx.Err()
}

func (s *Session) fetchRemote(ctx context.Context) {
	s.transition(ctx, StateFetchRemote, nil)

	files, err := s.o.src.ListTopics(ctx, s.o.course)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	topics := models.TopicsFromFiles(files)
	if len(topics) == 0 {
		s.fail(ctx, apperr.EmptyResult(apperr.MsgNoTopics))
		return
	}
	if ctx.Err() != nil {
		return
	}

	now := time.Now().UTC()
	for i := range topics {
		topics[i].VersionName = s.in.VersionName
		topics[i].HasUpdated = true
		topics[i].UpdatedAt = now
	}
	if err := s.o.db.ReplaceTopics(s.o.course.Name, topics); err != nil {
		s.fail(ctx, apperr.Cache("Can't save the topics.", err))
		return
	}
	if err := s.o.db.SetVersion(s.o.course.Name, s.in.VersionName); err != nil {
		s.fail(ctx, apperr.Cache("Can't save the version.", err))
		return
	}
	s.logger.Info("sync: topic list replaced", slog.Int("topics", len(topics)))

	s.topics = topics
	s.transition(ctx, StateStop, func(e *Event) { e.Topics = topics })
}

// markContent flags the changed topics and records the published version.
func (s *Session) markContent(ids []int) error {
	if len(ids) > 0 {
		unknown, err := s.o.db.MarkUpdated(s.o.course.Name, ids, true)
		if err != nil {
			return apperr.Cache("Can't flag the updated topics.", err)
		}
		if len(unknown) > 0 {
			s.logger.Warn("sync: updated ids not cached", slog.Any("ids", unknown))
		}
	}
	if err := s.o.db.SetVersion(s.o.course.Name, s.in.VersionName); err != nil {
		return apperr.Cache("Can't save the version.", err)
	}
	return nil
}

func (s *Session) readCache(ctx context.Context) {
	s.transition(ctx, StateReadCache, nil)

	topics, err := s.o.db.ListTopics(s.o.course.Name)
	if err != nil {
		s.fail(ctx, apperr.Cache("Can't read the cached topics.", err))
		return
	}
	if len(topics) == 0 {
		s.fail(ctx, apperr.EmptyResult(apperr.MsgNoTopics))
		return
	}
	s.topics = topics
	s.transition(ctx, StateStop, func(e *Event) { e.Topics = topics })
}

func (s *Session) markSeen(ctx context.Context, id int) error {
	if s.state != StateStop {
		return ErrNotReady
	}
	if err := s.o.writes.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.o.writes.Release(1)

	_, topics, err := s.o.clearFlag(s.topics, id)
	if err != nil || topics == nil {
		return err
	}
	s.topics = topics
	s.transition(ctx, StateStop, func(e *Event) {
		e.Topics = topics
		e.SeenID = id
	})
	return nil
}
