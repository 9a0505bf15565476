package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/cheatsheet/internal/apperr"
	"github.com/starford/cheatsheet/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	Course  string `json:"course"`
	TopicID int    `json:"topic_id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

const topicColumns = `id, name, title, visualized, version_name, has_updated, updated_at`

// ReplaceTopics clears the cached list of a course and inserts topics, with their
// FTS entries, within a transaction.
func (db *DB) ReplaceTopics(course string, topics []models.Topic) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("cache: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM topics WHERE course = ?`, course); err != nil {
		return fmt.Errorf("cache: clear topics: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO topics (course, id, name, title, visualized, version_name, has_updated, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("cache: prepare topic insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range topics {
		at := t.UpdatedAt
		if at.IsZero() {
			at = now
		}
		if _, err := stmt.Exec(course, t.ID, t.Name, t.Title, t.Visualized, t.VersionName, t.HasUpdated, at); err != nil {
			return fmt.Errorf("cache: insert topic %d: %w", t.ID, err)
		}
	}

	// FTS refresh (no-op when FTS5 tag is absent).
	if err := ftsReplace(tx, course, topics); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkUpdated sets has_updated on each listed topic. It stops at the first
// failing write; IDs without a cached row are skipped and returned.
func (db *DB) MarkUpdated(course string, ids []int, flag bool) ([]int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("cache: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var unknown []int
	now := time.Now().UTC()
	for _, id := range ids {
		res, err := tx.Exec(`UPDATE topics SET has_updated = ?, updated_at = ? WHERE course = ? AND id = ?`,
			flag, now, course, id)
		if err != nil {
			return nil, fmt.Errorf("cache: mark topic %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			unknown = append(unknown, id)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("cache: commit: %w", err)
	}
	return unknown, nil
}

// ListTopics returns the cached topics of a course ordered by ID.
func (db *DB) ListTopics(course string) ([]models.Topic, error) {
	rows, err := db.conn.Query(`SELECT `+topicColumns+` FROM topics WHERE course = ? ORDER BY id`, course)
	if err != nil {
		return nil, fmt.Errorf("cache: list topics: %w", err)
	}
	defer rows.Close()

	out := []models.Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetTopic returns one cached topic or apperr.ErrNotFound.
func (db *DB) GetTopic(course string, id int) (*models.Topic, error) {
	row := db.conn.QueryRow(`SELECT `+topicColumns+` FROM topics WHERE course = ? AND id = ?`, course, id)
	t, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return t, err
}

// Version returns the cached content version of a course.
// A course that was never synced reports an empty version.
func (db *DB) Version(course string) (string, error) {
	var v string
	err := db.conn.QueryRow(`SELECT value FROM preferences WHERE key = ?`, versionKey(course)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache: read version: %w", err)
	}
	return v, nil
}

// SetVersion records the content version a course was last synced at.
func (db *DB) SetVersion(course, v string) error {
	_, err := db.conn.Exec(`
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, versionKey(course), v, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cache: write version: %w", err)
	}
	return nil
}

func versionKey(course string) string { return "version:" + course }

type scanner interface {
	Scan(dest ...any) error
}

func scanTopic(s scanner) (*models.Topic, error) {
	var t models.Topic
	if err := s.Scan(&t.ID, &t.Name, &t.Title, &t.Visualized, &t.VersionName, &t.HasUpdated, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("cache: scan topic: %w", err)
	}
	return &t, nil
}
