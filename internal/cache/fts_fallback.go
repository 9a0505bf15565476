//go:build !sqlite_fts5

package cache

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/cheatsheet/internal/models"
)

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the topics table.
	return nil
}

func ftsReplace(_ *sql.Tx, _ string, _ []models.Topic) error {
	return nil
}

// Search performs a LIKE-based title search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	out := []SearchResult{}
	query = strings.TrimSpace(query)
	if query == "" {
		return out, nil
	}
	like := "%" + likeEscaper.Replace(query) + "%"
	rows, err := db.conn.Query(`
		SELECT course, id, title, title
		FROM topics
		WHERE title LIKE ? ESCAPE '\' OR name LIKE ? ESCAPE '\'
		ORDER BY course, id
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("cache: search: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Course, &r.TopicID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
