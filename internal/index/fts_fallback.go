//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Without FTS5 the search record is a plain table matched with LIKE.
func initSearch(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS search_records (
			file_id INTEGER PRIMARY KEY,
			path    TEXT NOT NULL,
			title   TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT ''
		);
	`)
	return err
}

func dropSearch(conn *sql.DB) error {
	_, err := conn.Exec(`DROP TABLE IF EXISTS search_records`)
	return err
}

func searchReplace(tx *sql.Tx, fileID int64, path, title, content string) error {
	if _, err := tx.Exec(`DELETE FROM search_records WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("index: delete search record: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO search_records (file_id, path, title, content) VALUES (?, ?, ?, ?)`,
		fileID, path, title, content); err != nil {
		return fmt.Errorf("index: insert search record: %w", err)
	}
	return nil
}

func searchDelete(tx *sql.Tx, fileID int64) error {
	if _, err := tx.Exec(`DELETE FROM search_records WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("index: delete search record: %w", err)
	}
	return nil
}

// Search performs a LIKE-based match over path/title/content, title hits
// ranked first. An empty query returns an empty result.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	like := "%" + q + "%"
	rows, err := db.conn.Query(`
		SELECT file_id, path, title, content
		FROM search_records
		WHERE title LIKE ? OR content LIKE ? OR path LIKE ?
		ORDER BY CASE WHEN title LIKE ? THEN 0 ELSE 1 END, path
		LIMIT ?
	`, like, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var content string
		if err := rows.Scan(&r.ID, &r.Path, &r.Title, &content); err != nil {
			return nil, err
		}
		r.Highlight = likeHighlight(content, q)
		out = append(out, r)
	}
	return out, rows.Err()
}

// likeHighlight builds a snippet around the first case-insensitive match,
// wrapping the matched span in the same <b> markers the FTS5 snippet uses.
// All slicing stays on rune boundaries of the original string.
func likeHighlight(content, q string) string {
	const window = 60

	matchStart, matchEnd := foldIndex(content, q)
	if matchStart < 0 {
		if len(content) > 2*window {
			cut := runeFloor(content, 2*window)
			return content[:cut] + "..."
		}
		return content
	}

	start := runeFloor(content, matchStart-window)
	prefix := ""
	if start > 0 {
		prefix = "..."
	}
	end := runeCeil(content, matchEnd+window)
	suffix := ""
	if end < len(content) {
		suffix = "..."
	}

	return prefix +
		content[start:matchStart] +
		"<b>" + content[matchStart:matchEnd] + "</b>" +
		content[matchEnd:end] +
		suffix
}

// foldIndex returns the byte offsets in content of the first
// case-insensitive occurrence of q, or (-1, -1). Lowercasing can change a
// rune's byte length, so offsets found on the folded string are mapped
// back to the original rune by rune instead of being reused directly.
func foldIndex(content, q string) (int, int) {
	lc := strings.ToLower(content)
	lq := strings.ToLower(q)
	li := strings.Index(lc, lq)
	if li < 0 {
		return -1, -1
	}

	oi, fi := 0, 0
	for fi < li && oi < len(content) {
		_, n := utf8.DecodeRuneInString(content[oi:])
		_, fn := utf8.DecodeRuneInString(lc[fi:])
		oi += n
		fi += fn
	}
	start := oi
	for fi < li+len(lq) && oi < len(content) {
		_, n := utf8.DecodeRuneInString(content[oi:])
		_, fn := utf8.DecodeRuneInString(lc[fi:])
		oi += n
		fi += fn
	}
	return start, oi
}

// runeFloor clamps i into [0, len(s)] and moves it back to the nearest
// rune start.
func runeFloor(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil clamps i into [0, len(s)] and moves it forward to the nearest
// rune start.
func runeCeil(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	if i < 0 {
		return 0
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// titlesByID returns the stored title for every file id.
func (db *DB) titlesByID() (map[int64]string, error) {
	rows, err := db.conn.Query(`SELECT file_id, title FROM search_records`)
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
