// Package models defines the domain types for the cheatsheet service.
package models

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var topicFileRe = regexp.MustCompile(`^(\d+)_(.+)$`)

const visualizedMarker = "(visualized)"

// Course is a category of topics stored under one directory of the content repository.
type Course struct {
	Name  string `json:"name" yaml:"name"`
	Dir   string `json:"dir" yaml:"dir"`
	Title string `json:"title,omitempty" yaml:"title"`
}

// RepoFile is one entry returned by the GitHub contents API.
type RepoFile struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url,omitempty"`
	Content     string `json:"content,omitempty"`
	Encoding    string `json:"encoding,omitempty"`
}

// Topic is a named educational unit of a course.
type Topic struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Title       string    `json:"title" db:"title"`
	Visualized  bool      `json:"visualized" db:"visualized"`
	VersionName string    `json:"version_name" db:"version_name"`
	HasUpdated  bool      `json:"has_updated" db:"has_updated"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Point is a bullet item extracted from a documentation block of a topic file.
type Point struct {
	Number    int      `json:"number"`
	TopicID   int      `json:"topic_id,omitempty"`
	Raw       string   `json:"raw"`
	Text      string   `json:"text"`
	Heading   string   `json:"heading"`
	SubPoints []string `json:"sub_points"`
	Snippets  []string `json:"snippets"`
}

// AppInfo holds the version values published by the content repository.
type AppInfo struct {
	VersionCode   int    `json:"version_code"`
	VersionName   string `json:"version_name"`
	VersionSuffix string `json:"version_suffix"`
}

// TopicFromFile builds a Topic from a repository file name such as
// "1_SequentialProgramming(visualized).kt". ok is false for directories and
// for names without a numeric prefix.
func TopicFromFile(f RepoFile) (Topic, bool) {
	if f.Type != "" && f.Type != "file" {
		return Topic{}, false
	}
	m := topicFileRe.FindStringSubmatch(f.Name)
	if m == nil {
		return Topic{}, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return Topic{}, false
	}
	return Topic{
		ID:         id,
		Name:       f.Name,
		Title:      TopicTitle(f.Name),
		Visualized: strings.Contains(strings.ToLower(f.Name), visualizedMarker),
		HasUpdated: true,
	}, true
}

// TopicsFromFiles converts a directory listing into topics sorted by ID.
// Entries that are not topic files are skipped; later duplicates of an ID are dropped.
func TopicsFromFiles(files []RepoFile) []Topic {
	seen := make(map[int]struct{}, len(files))
	out := make([]Topic, 0, len(files))
	for _, f := range files {
		t, ok := TopicFromFile(f)
		if !ok {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TopicTitle derives a display title from a topic file name:
// "2_CoroutineBuilders(visualized).kt" -> "Coroutine Builders".
func TopicTitle(fileName string) string {
	name := strings.TrimSuffix(fileName, path.Ext(fileName))
	if m := topicFileRe.FindStringSubmatch(name); m != nil {
		name = m[2]
	}
	if i := strings.Index(strings.ToLower(name), visualizedMarker); i >= 0 {
		name = name[:i] + name[i+len(visualizedMarker):]
	}
	return splitCamel(name)
}

func splitCamel(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if r == '_' || r == '-' {
			r = ' '
		}
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune(' ')
			}
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ReplaceTopic returns a copy of topics with the entry matching t.ID replaced.
// The input slice is not modified. ok is false when no topic has that ID.
func ReplaceTopic(topics []Topic, t Topic) ([]Topic, bool) {
	out := make([]Topic, len(topics))
	copy(out, topics)
	for i := range out {
		if out[i].ID == t.ID {
			out[i] = t
			return out, true
		}
	}
	return out, false
}
