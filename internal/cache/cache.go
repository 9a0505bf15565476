// Package cache stores course topic lists and the last seen content version in SQLite,
// with optional FTS5 title search.
package cache

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/cheatsheet/internal/models"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS topics (
	course       TEXT    NOT NULL,
	id           INTEGER NOT NULL,
	name         TEXT    NOT NULL,
	title        TEXT    NOT NULL DEFAULT '',
	visualized   INTEGER NOT NULL DEFAULT 0,
	version_name TEXT    NOT NULL DEFAULT '',
	has_updated  INTEGER NOT NULL DEFAULT 0,
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (course, id)
);

CREATE TABLE IF NOT EXISTS preferences (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// TopicCache defines the local store for topic lists and versions.
// Consumers should depend on this interface rather than the concrete *DB type.
type TopicCache interface {
	// ReplaceTopics clears the course and inserts topics in one transaction.
	ReplaceTopics(course string, topics []models.Topic) error
	// MarkUpdated sets has_updated for each id, stopping at the first error.
	// IDs with no cached row are returned.
	MarkUpdated(course string, ids []int, flag bool) ([]int, error)
	ListTopics(course string) ([]models.Topic, error)
	GetTopic(course string, id int) (*models.Topic, error)
	// Version returns the cached version of a course, or "" when none is stored.
	Version(course string) (string, error)
	SetVersion(course, v string) error
	Search(query string, limit int) ([]SearchResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies TopicCache at compile time.
var _ TopicCache = (*DB)(nil)

// DB wraps a sql.DB with cache-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
