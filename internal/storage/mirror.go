// Package storage serves and mirrors a local checkout of the content repository.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/starford/cheatsheet/internal/checksum"
	"github.com/starford/cheatsheet/internal/models"
	"github.com/starford/cheatsheet/internal/parser"
	"github.com/starford/cheatsheet/internal/remote"
)

// Verify *FS satisfies remote.Source at compile time.
var _ remote.Source = (*FS)(nil)

// MirrorStats summarises a mirror run.
type MirrorStats struct {
	Written   int `json:"written"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// Mirror copies the gradle file and every topic file of courses from src into dst.
// With prune set, local topic files that are no longer listed upstream are removed.
func Mirror(ctx context.Context, src remote.Source, dst *FS, courses []models.Course, prune bool, logger *slog.Logger) (MirrorStats, error) {
	var stats MirrorStats

	info, err := src.AppInfo(ctx)
	if err != nil {
		return stats, fmt.Errorf("storage: mirror app info: %w", err)
	}
	if err := mirrorFile(dst, dst.layout.AppInfoPath, info, &stats); err != nil {
		return stats, err
	}

	for _, course := range courses {
		files, err := src.ListTopics(ctx, course)
		if err != nil {
			return stats, fmt.Errorf("storage: mirror list %s: %w", course.Name, err)
		}
		keep := make(map[string]bool, len(files))
		for _, rf := range files {
			if rf.Type != "" && rf.Type != "file" {
				continue
			}
			full, err := src.TopicFile(ctx, course, rf.Name)
			if err != nil {
				return stats, fmt.Errorf("storage: mirror fetch %s/%s: %w", course.Name, rf.Name, err)
			}
			if err := mirrorFile(dst, dst.TopicPath(course, rf.Name), full, &stats); err != nil {
				return stats, err
			}
			keep[rf.Name] = true
		}
		if prune {
			n, err := dst.prune(course, keep)
			stats.Removed += n
			if err != nil {
				return stats, err
			}
		}
		logger.Info("course mirrored", "course", course.Name, "files", len(keep))
	}
	return stats, nil
}

func mirrorFile(dst *FS, rel string, rf *models.RepoFile, stats *MirrorStats) error {
	text, err := parser.Decode(rf.Content)
	if err != nil {
		return fmt.Errorf("storage: mirror decode %s: %w", rel, err)
	}
	data := []byte(text)
	if existing, err := dst.Read(rel); err == nil && checksum.Same(existing, data) {
		stats.Unchanged++
		return nil
	}
	if err := dst.Write(rel, data); err != nil {
		return err
	}
	stats.Written++
	return nil
}

// prune removes regular files in a course directory whose names are not in keep.
func (f *FS) prune(course models.Course, keep map[string]bool) (int, error) {
	dir, err := f.CourseDir(course)
	if err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: prune %s: %w", course.Name, err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || keep[e.Name()] || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := f.Delete(f.TopicPath(course, e.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
