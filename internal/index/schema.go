// Package index provides the SQLite-backed vault index: relational rows
// for files, links, todos and embeddings, plus a full-text search record
// (FTS5 when compiled with the sqlite_fts5 tag, LIKE fallback otherwise).
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion is bumped whenever migrations gains a step. A stored
// version that is unknown (newer, or predating the version record) drops
// and recreates all derived structures instead of guessing at shapes.
const schemaVersion = 1

// migrations holds ordered schema steps; migrations[n] moves the database
// from version n to n+1.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS files (
	id         INTEGER PRIMARY KEY,
	path       TEXT UNIQUE NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS links (
	source_file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	target         TEXT NOT NULL,
	UNIQUE(source_file_id, target)
);

CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);

CREATE TABLE IF NOT EXISTS todos (
	id         INTEGER PRIMARY KEY,
	file_id    INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	content    TEXT NOT NULL,
	completed  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_todos_file ON todos(file_id);

CREATE TABLE IF NOT EXISTS embeddings (
	file_id    INTEGER PRIMARY KEY REFERENCES files(id) ON DELETE CASCADE,
	vector     BLOB NOT NULL,
	dims       INTEGER NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
}

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database, applies migrations, and
// prepares the search structure. WAL mode keeps readers unblocked by the
// sync writer; foreign keys drive cascade deletion of derived rows.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: migrate: %w", err)
	}
	if err := initSearch(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply search schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func migrate(conn *sql.DB) error {
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	err := conn.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	fresh := err == sql.ErrNoRows
	if err != nil && !fresh {
		return err
	}

	// No version record but a files table already present means a
	// pre-versioning database with unknown table shapes. A version from a
	// newer build is equally unknowable. Either way, rebuild the index
	// from scratch: everything in it is derived from the vault, so
	// dropping is safe and the next sync pass repopulates it.
	legacy := false
	if fresh {
		legacy, err = tableExists(conn, "files")
		if err != nil {
			return err
		}
	}
	if legacy || version > len(migrations) || version < 0 {
		if err := reset(conn); err != nil {
			return err
		}
		version = 0
		fresh = true
	}

	for v := version; v < len(migrations); v++ {
		if _, err := conn.Exec(migrations[v]); err != nil {
			return fmt.Errorf("step %d: %w", v+1, err)
		}
	}

	if fresh {
		if _, err := conn.Exec(`DELETE FROM schema_version`); err != nil {
			return err
		}
		if _, err := conn.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return err
		}
		return nil
	}
	_, err = conn.Exec(`UPDATE schema_version SET version = ?`, schemaVersion)
	return err
}

func tableExists(conn *sql.DB, name string) (bool, error) {
	var found string
	err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func reset(conn *sql.DB) error {
	stmts := []string{
		`DROP TABLE IF EXISTS links`,
		`DROP TABLE IF EXISTS todos`,
		`DROP TABLE IF EXISTS embeddings`,
		`DROP TABLE IF EXISTS files`,
	}
	for _, s := range stmts {
		if _, err := conn.Exec(s); err != nil {
			return err
		}
	}
	return dropSearch(conn)
}
