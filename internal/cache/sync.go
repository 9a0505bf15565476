package cache

import (
	"context"
	"fmt"
	"sort"

	"github.com/starford/cheatsheet/internal/models"
	"github.com/starford/cheatsheet/internal/remote"
)

// ReconcileResult lists the topic IDs a reconcile pass added or removed.
type ReconcileResult struct {
	Added   []int `json:"added"`
	Removed []int `json:"removed"`
}

// Reconcile brings the cached list of a course in line with the source listing:
//   - topics whose file is unchanged keep their flags
//   - new or renamed topics are cached with has_updated set
//   - topics no longer listed are dropped
//
// New rows carry the course's cached version.
func Reconcile(ctx context.Context, db TopicCache, src remote.Source, course models.Course) (ReconcileResult, error) {
	var res ReconcileResult

	files, err := src.ListTopics(ctx, course)
	if err != nil {
		return res, err
	}
	listed := models.TopicsFromFiles(files)

	cached, err := db.ListTopics(course.Name)
	if err != nil {
		return res, err
	}
	ver, err := db.Version(course.Name)
	if err != nil {
		return res, err
	}

	byID := make(map[int]models.Topic, len(cached))
	for _, t := range cached {
		byID[t.ID] = t
	}

	merged := make([]models.Topic, 0, len(listed))
	for _, t := range listed {
		if old, ok := byID[t.ID]; ok && old.Name == t.Name {
			merged = append(merged, old)
			delete(byID, t.ID)
			continue
		}
		delete(byID, t.ID)
		t.VersionName = ver
		merged = append(merged, t)
		res.Added = append(res.Added, t.ID)
	}
	for id := range byID {
		res.Removed = append(res.Removed, id)
	}
	sort.Ints(res.Removed)

	if len(res.Added) == 0 && len(res.Removed) == 0 {
		return res, nil
	}
	if err := db.ReplaceTopics(course.Name, merged); err != nil {
		return res, fmt.Errorf("cache: reconcile %s: %w", course.Name, err)
	}
	return res, nil
}
