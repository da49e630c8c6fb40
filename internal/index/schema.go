// Package index keeps a SQLite snapshot of the latest reverse index so it can
// be queried over HTTP and MCP. The pipeline only ever writes it.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path           TEXT PRIMARY KEY,
	permalink      TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	has_title      INTEGER NOT NULL DEFAULT 0,
	checksum       TEXT NOT NULL DEFAULT '',
	managed        INTEGER NOT NULL DEFAULT 0,
	owns_permalink INTEGER NOT NULL DEFAULT 0,
	mentions       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS backlinks (
	target_path      TEXT NOT NULL,
	source_permalink TEXT NOT NULL,
	source_path      TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	labels           TEXT NOT NULL DEFAULT '[]',
	position         INTEGER NOT NULL,
	UNIQUE(target_path, source_permalink)
);

CREATE TABLE IF NOT EXISTS conflicts (
	permalink TEXT NOT NULL,
	path      TEXT NOT NULL,
	winner    TEXT NOT NULL,
	UNIQUE(permalink, path)
);

CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	dry_run     INTEGER NOT NULL DEFAULT 0,
	documents   INTEGER NOT NULL DEFAULT 0,
	rewritten   TEXT NOT NULL DEFAULT '[]',
	failed      TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_documents_permalink ON documents(permalink);
CREATE INDEX IF NOT EXISTS idx_backlinks_target ON backlinks(target_path);
`

// DB wraps a sql.DB with snapshot-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
