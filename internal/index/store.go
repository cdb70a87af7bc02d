package index

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/models"
)

// NoteUpdate carries everything derived from one note for a single
// atomic index write.
type NoteUpdate struct {
	Path     string
	Checksum string
	Title    string
	Content  string
	Links    []string
	Todos    []models.Todo
	// Vector is the note embedding; nil removes any stored embedding so a
	// content change can never leave a stale vector behind.
	Vector []float32
}

// IndexNote applies one note's full derived state in a single transaction:
// file row, links, todos, search record, and embedding. No reader can
// observe the file with stale or missing derived rows.
//
// When the stored checksum already matches, nothing is written and
// changed is false: the checksum is the sole trigger for regeneration.
func (db *DB) IndexNote(n NoteUpdate) (changed bool, err error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := time.Now().UTC()

	var fileID int64
	var stored string
	err = tx.QueryRow(`SELECT id, checksum FROM files WHERE path = ?`, n.Path).Scan(&fileID, &stored)
	switch {
	case err == sql.ErrNoRows:
		res, insErr := tx.Exec(`INSERT INTO files (path, checksum, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			n.Path, n.Checksum, now, now)
		if insErr != nil {
			return false, fmt.Errorf("index: insert file: %w", insErr)
		}
		fileID, _ = res.LastInsertId()
	case err != nil:
		return false, fmt.Errorf("index: lookup file: %w", err)
	case stored == n.Checksum:
		return false, nil
	default:
		if _, upErr := tx.Exec(`UPDATE files SET checksum = ?, updated_at = ? WHERE id = ?`,
			n.Checksum, now, fileID); upErr != nil {
			return false, fmt.Errorf("index: update file: %w", upErr)
		}
	}

	if err := replaceLinks(tx, fileID, n.Links); err != nil {
		return false, err
	}
	if err := replaceTodos(tx, fileID, n.Todos, now); err != nil {
		return false, err
	}
	if err := searchReplace(tx, fileID, n.Path, n.Title, n.Content); err != nil {
		return false, err
	}
	if err := upsertEmbedding(tx, fileID, n.Vector, now); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("index: commit: %w", err)
	}
	return true, nil
}

// replaceLinks swaps a file's outbound links: delete old, bulk insert new.
func replaceLinks(tx *sql.Tx, fileID int64, targets []string) error {
	if _, err := tx.Exec(`DELETE FROM links WHERE source_file_id = ?`, fileID); err != nil {
		return fmt.Errorf("index: delete links: %w", err)
	}
	if len(targets) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source_file_id, target) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare link insert: %w", err)
	}
	defer stmt.Close()
	for _, target := range targets {
		if _, err := stmt.Exec(fileID, target); err != nil {
			return fmt.Errorf("index: insert link: %w", err)
		}
	}
	return nil
}

// replaceTodos swaps a file's tasks, preserving document order through
// ascending insert ids.
func replaceTodos(tx *sql.Tx, fileID int64, todos []models.Todo, now time.Time) error {
	if _, err := tx.Exec(`DELETE FROM todos WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("index: delete todos: %w", err)
	}
	if len(todos) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO todos (file_id, content, completed, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare todo insert: %w", err)
	}
	defer stmt.Close()
	for _, td := range todos {
		if _, err := stmt.Exec(fileID, td.Content, td.Completed, now); err != nil {
			return fmt.Errorf("index: insert todo: %w", err)
		}
	}
	return nil
}

func upsertEmbedding(tx *sql.Tx, fileID int64, vector []float32, now time.Time) error {
	if vector == nil {
		if _, err := tx.Exec(`DELETE FROM embeddings WHERE file_id = ?`, fileID); err != nil {
			return fmt.Errorf("index: delete embedding: %w", err)
		}
		return nil
	}
	_, err := tx.Exec(`
		INSERT INTO embeddings (file_id, vector, dims, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			vector     = excluded.vector,
			dims       = excluded.dims,
			updated_at = excluded.updated_at
	`, fileID, encodeVector(vector), len(vector), now)
	if err != nil {
		return fmt.Errorf("index: upsert embedding: %w", err)
	}
	return nil
}

// DeleteFile removes a file and all derived rows. Links, todos, and the
// embedding go via FK cascade; the search record is deleted explicitly
// because the full-text structure has no cascade of its own.
func (db *DB) DeleteFile(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var fileID int64
	err = tx.QueryRow(`SELECT id FROM files WHERE path = ?`, path).Scan(&fileID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("index: lookup file: %w", err)
	}

	if err := searchDelete(tx, fileID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM files WHERE id = ?`, fileID); err != nil {
		return fmt.Errorf("index: delete file: %w", err)
	}
	return tx.Commit()
}

// AllChecksums returns the stored checksum for every indexed path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// FileID returns the id for a path, with ok=false when not indexed.
func (db *DB) FileID(path string) (int64, bool, error) {
	var id int64
	err := db.conn.QueryRow(`SELECT id FROM files WHERE path = ?`, path).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("index: file id: %w", err)
	}
	return id, true, nil
}
