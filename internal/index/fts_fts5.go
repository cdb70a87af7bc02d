//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// The search record lives in an FTS5 virtual table whose rowid is the
// file id, so relational queries can join titles without a shadow table.
func initSearch(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
			path,
			title,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func dropSearch(conn *sql.DB) error {
	_, err := conn.Exec(`DROP TABLE IF EXISTS files_fts`)
	return err
}

// searchReplace swaps the search record wholesale; FTS5 has no partial
// update worth the trouble.
func searchReplace(tx *sql.Tx, fileID int64, path, title, content string) error {
	if _, err := tx.Exec(`DELETE FROM files_fts WHERE rowid = ?`, fileID); err != nil {
		return fmt.Errorf("index: delete search record: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO files_fts (rowid, path, title, content) VALUES (?, ?, ?, ?)`,
		fileID, path, title, content); err != nil {
		return fmt.Errorf("index: insert search record: %w", err)
	}
	return nil
}

func searchDelete(tx *sql.Tx, fileID int64) error {
	if _, err := tx.Exec(`DELETE FROM files_fts WHERE rowid = ?`, fileID); err != nil {
		return fmt.Errorf("index: delete search record: %w", err)
	}
	return nil
}

// Search performs a ranked FTS5 match over path/title/content with a
// generated highlight snippet. An empty query returns an empty result.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT rowid,
		       path,
		       title,
		       snippet(files_fts, 2, '<b>', '</b>', '...', 16)
		FROM files_fts
		WHERE files_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Path, &r.Title, &r.Highlight); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ftsQuery quotes every token so raw user input can never be parsed as
// FTS5 syntax (a stray " or NEAR must not turn into a query error).
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// titlesByID returns the stored title for every file id.
func (db *DB) titlesByID() (map[int64]string, error) {
	rows, err := db.conn.Query(`SELECT rowid, title FROM files_fts`)
	if err != nil {
		return nil, fmt.Errorf("index: titles: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		out[id] = title
	}
	return out, rows.Err()
}
