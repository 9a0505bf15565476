// Package testutil provides shared test helpers for databases, checkouts and content sources.
package testutil

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/starford/cheatsheet/internal/apperr"
	"github.com/starford/cheatsheet/internal/cache"
	"github.com/starford/cheatsheet/internal/models"
	"github.com/starford/cheatsheet/internal/remote"
	"github.com/starford/cheatsheet/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *cache.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "cheatsheet-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := cache.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestCheckout creates a temporary local checkout.
func TestCheckout(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root, storage.Layout{ContentRoot: "content", AppInfoPath: "app/build.gradle.kts"})
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FakeSource is an in-memory remote.Source. Files are keyed by course name then file name.
type FakeSource struct {
	mu       sync.Mutex
	files    map[string]map[string]string
	appInfo  string
	listErr  error
	fileErr  error
	infoErr  error
	listHook func()
	calls    map[string]int
}

var _ remote.Source = (*FakeSource)(nil)

// NewFakeSource returns an empty FakeSource.
func NewFakeSource() *FakeSource {
	return &FakeSource{files: map[string]map[string]string{}, calls: map[string]int{}}
}

// Put stores a topic file.
func (s *FakeSource) Put(course, name, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files[course] == nil {
		s.files[course] = map[string]string{}
	}
	s.files[course][name] = content
}

// SetAppInfo stores the gradle file content.
func (s *FakeSource) SetAppInfo(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appInfo = content
}

// FailList makes ListTopics return err.
func (s *FakeSource) FailList(err error) { s.mu.Lock(); s.listErr = err; s.mu.Unlock() }

// FailFile makes TopicFile return err.
func (s *FakeSource) FailFile(err error) { s.mu.Lock(); s.fileErr = err; s.mu.Unlock() }

// FailAppInfo makes AppInfo return err.
func (s *FakeSource) FailAppInfo(err error) { s.mu.Lock(); s.infoErr = err; s.mu.Unlock() }

// OnList runs fn at the start of every ListTopics call.
func (s *FakeSource) OnList(fn func()) { s.mu.Lock(); s.listHook = fn; s.mu.Unlock() }

// Calls reports how often a method was invoked.
func (s *FakeSource) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *FakeSource) ListTopics(ctx context.Context, course models.Course) ([]models.RepoFile, error) {
	s.mu.Lock()
	s.calls["ListTopics"]++
	hook, err := s.listHook, s.listErr
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Network(apperr.CodeTransport, err.Error(), err)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.RepoFile{}
	for name := range s.files[course.Name] {
		out = append(out, models.RepoFile{Name: name, Path: course.Dir + "/" + name, Type: "file"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FakeSource) TopicFile(ctx context.Context, course models.Course, name string) (*models.RepoFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["TopicFile"]++
	if s.fileErr != nil {
		return nil, s.fileErr
	}
	content, ok := s.files[course.Name][name]
	if !ok {
		return nil, apperr.Network(404, "Not Found", nil)
	}
	return encoded(course.Dir+"/"+name, name, content), nil
}

func (s *FakeSource) AppInfo(ctx context.Context) (*models.RepoFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["AppInfo"]++
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	return encoded("app/build.gradle.kts", "build.gradle.kts", s.appInfo), nil
}

func encoded(path, name, content string) *models.RepoFile {
	return &models.RepoFile{
		Name:     name,
		Path:     path,
		Type:     "file",
		Content:  base64.StdEncoding.EncodeToString([]byte(content)),
		Encoding: "base64",
	}
}
