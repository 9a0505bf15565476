package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/cheatsheet/internal/apperr"
	"github.com/starford/cheatsheet/internal/checksum"
	"github.com/starford/cheatsheet/internal/models"
)

// Layout locates course directories and the gradle file inside a checkout.
type Layout struct {
	ContentRoot string
	AppInfoPath string
}

// FS serves a local checkout of the content repository.
type FS struct {
	root   string // absolute path to the checkout
	layout Layout
}

// NewFS creates a new FS rooted at the given directory.
// The directory must already exist.
func NewFS(root string, layout Layout) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	layout.ContentRoot = strings.Trim(layout.ContentRoot, "/")
	layout.AppInfoPath = strings.Trim(layout.AppInfoPath, "/")
	return &FS{root: abs, layout: layout}, nil
}

// Root returns the absolute checkout directory.
func (f *FS) Root() string { return f.root }

// TopicPath returns the repository-relative path of a topic file.
func (f *FS) TopicPath(course models.Course, name string) string {
	return path.Join(f.layout.ContentRoot, course.Dir, name)
}

// CourseDir returns the absolute directory holding a course's topic files.
func (f *FS) CourseDir(course models.Course) (string, error) {
	return f.safePath(path.Join(f.layout.ContentRoot, course.Dir))
}

// safePath resolves a relative path against the root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes root: %s", rel)
	}
	return abs, nil
}

// ListTopics lists the entries of a course directory in name order.
// Listings carry no content, like the contents API.
func (f *FS) ListTopics(ctx context.Context, course models.Course) ([]models.RepoFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Network(apperr.CodeTransport, err.Error(), err)
	}
	dir, err := f.CourseDir(course)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, notFound(err)
	}

	out := make([]models.RepoFile, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		rf := models.RepoFile{
			Name: e.Name(),
			Path: f.TopicPath(course, e.Name()),
			Type: "file",
		}
		if e.IsDir() {
			rf.Type = "dir"
		} else if info, err := e.Info(); err == nil {
			rf.Size = info.Size()
		}
		out = append(out, rf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// TopicFile reads one topic file and returns it base64 encoded.
func (f *FS) TopicFile(ctx context.Context, course models.Course, name string) (*models.RepoFile, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("storage: invalid topic file name %q", name)
	}
	return f.file(ctx, f.TopicPath(course, name))
}

// AppInfo reads the gradle build file.
func (f *FS) AppInfo(ctx context.Context) (*models.RepoFile, error) {
	return f.file(ctx, f.layout.AppInfoPath)
}

func (f *FS) file(ctx context.Context, rel string) (*models.RepoFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Network(apperr.CodeTransport, err.Error(), err)
	}
	data, err := f.Read(rel)
	if err != nil {
		return nil, notFound(err)
	}
	return &models.RepoFile{
		Name:     path.Base(rel),
		Path:     rel,
		SHA:      checksum.Sum(data),
		Size:     int64(len(data)),
		Type:     "file",
		Content:  base64.StdEncoding.EncodeToString(data),
		Encoding: "base64",
	}, nil
}

// Read returns the raw bytes of a checkout file.
func (f *FS) Read(rel string) ([]byte, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(rel string, content []byte) error {
	abs, err := f.safePath(rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cheatsheet-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a file from the checkout.
func (f *FS) Delete(rel string) error {
	abs, err := f.safePath(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", rel, err)
	}
	return nil
}

// notFound maps a missing path onto the failure the contents API reports for it.
func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.Network(http.StatusNotFound, http.StatusText(http.StatusNotFound), err)
	}
	return apperr.ReadFile(err)
}
