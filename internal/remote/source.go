// Package remote fetches topic listings and files from the hosted content repository.
package remote

import (
	"context"

	"github.com/starford/cheatsheet/internal/models"
)

// Source is the read-only content repository.
// Consumers should depend on this interface rather than a concrete client.
type Source interface {
	// ListTopics returns the directory listing of a course.
	ListTopics(ctx context.Context, course models.Course) ([]models.RepoFile, error)
	// TopicFile returns one topic file with its base64 content.
	TopicFile(ctx context.Context, course models.Course, name string) (*models.RepoFile, error)
	// AppInfo returns the gradle build file that carries the published version.
	AppInfo(ctx context.Context) (*models.RepoFile, error)
}

// Verify *GitHub satisfies Source at compile time.
var _ Source = (*GitHub)(nil)
