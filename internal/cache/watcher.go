package cache

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/cheatsheet/internal/models"
	"github.com/starford/cheatsheet/internal/storage"
)

const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven cache change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind, course string, topicID int)

// Watch starts an fsnotify watcher on the course directories of a local
// checkout and keeps the cache in step until ctx is cancelled. It calls cb
// (if non-nil) after each successful cache mutation.
//
// A write to a cached topic file flags that topic as updated. Creates,
// removes and renames schedule a debounced Reconcile of the course.
func Watch(ctx context.Context, db TopicCache, store *storage.FS, courses []models.Course, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	byDir := make(map[string]models.Course, len(courses))
	for _, c := range courses {
		dir, err := store.CourseDir(c)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := w.Add(dir); err != nil {
			return err
		}
		byDir[dir] = c
	}

	logger.Info("watcher: started", slog.String("root", store.Root()), slog.Int("courses", len(byDir)))

	// reconcileTimer debounces list reconciliation for the pending courses.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	pending := make(map[string]models.Course)

	scheduleReconcile := func(c models.Course) {
		pending[c.Name] = c
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			for name, c := range pending {
				reconcileCourse(ctx, db, store, c, logger, cb)
				delete(pending, name)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			course, ok := byDir[filepath.Dir(ev.Name)]
			name := filepath.Base(ev.Name)
			if !ok || strings.HasPrefix(name, ".") {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				t, ok := models.TopicFromFile(models.RepoFile{Name: name, Type: "file"})
				if !ok {
					continue
				}
				unknown, markErr := db.MarkUpdated(course.Name, []int{t.ID}, true)
				if markErr != nil {
					logger.Warn("watcher: mark failed",
						slog.String("course", course.Name),
						slog.String("file", name),
						slog.String("error", markErr.Error()))
					continue
				}
				if len(unknown) > 0 {
					scheduleReconcile(course)
					continue
				}
				logger.Debug("watcher: topic updated", slog.String("course", course.Name), slog.Int("id", t.ID))
				if cb != nil {
					cb("updated", course.Name, t.ID)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify fires Rename on the OLD path only; the new name
				// arrives as a Create. Both are settled by the reconcile pass.
				scheduleReconcile(course)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func reconcileCourse(ctx context.Context, db TopicCache, store *storage.FS, c models.Course, logger *slog.Logger, cb EventCallback) {
	res, err := Reconcile(ctx, db, store, c)
	if err != nil {
		logger.Warn("reconcile: failed", slog.String("course", c.Name), slog.String("error", err.Error()))
		return
	}
	for _, id := range res.Removed {
		logger.Debug("reconcile: removed stale", slog.String("course", c.Name), slog.Int("id", id))
		if cb != nil {
			cb("deleted", c.Name, id)
		}
	}
	for _, id := range res.Added {
		logger.Debug("reconcile: added", slog.String("course", c.Name), slog.Int("id", id))
		if cb != nil {
			cb("created", c.Name, id)
		}
	}
}
