//go:build sqlite_fts5

package cache

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/cheatsheet/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS topics_fts USING fts5(
			course UNINDEXED,
			id UNINDEXED,
			title,
			name,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsReplace(tx *sql.Tx, course string, topics []models.Topic) error {
	if _, err := tx.Exec(`DELETE FROM topics_fts WHERE course = ?`, course); err != nil {
		return fmt.Errorf("cache: clear fts: %w", err)
	}
	for _, t := range topics {
		if _, err := tx.Exec(`INSERT INTO topics_fts (course, id, title, name) VALUES (?, ?, ?, ?)`,
			course, t.ID, t.Title, t.Name); err != nil {
			return fmt.Errorf("cache: insert fts: %w", err)
		}
	}
	return nil
}

// Search performs an FTS5 title search and returns matching topics with highlighted titles.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	out := []SearchResult{}
	match := ftsQuery(query)
	if match == "" {
		return out, nil
	}
	rows, err := db.conn.Query(`
		SELECT course,
		       id,
		       title,
		       highlight(topics_fts, 2, '<b>', '</b>')
		FROM topics_fts
		WHERE topics_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
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

// ftsQuery turns free text into prefix-matched quoted terms so user input never
// reaches the FTS5 query syntax.
func ftsQuery(q string) string {
	var terms []string
	for _, f := range strings.Fields(q) {
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " ")
}
