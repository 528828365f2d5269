// Package index provides the SQLite workspace index: a catalog of thread
// documents with their nodes for search, plus the recent-threads list and
// last-session state. FTS5 is used when built with the sqlite_fts5 tag.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS threads (
	path       TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	node_count INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS nodes (
	path     TEXT NOT NULL REFERENCES threads(path) ON DELETE CASCADE,
	node_id  INTEGER NOT NULL,
	caption  TEXT NOT NULL DEFAULT '',
	comments TEXT NOT NULL DEFAULT '',
	src_path TEXT NOT NULL DEFAULT '',
	line_num INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (path, node_id)
);

CREATE INDEX IF NOT EXISTS idx_nodes_src ON nodes(src_path);

CREATE TABLE IF NOT EXISTS recent_threads (
	location  TEXT PRIMARY KEY,
	title     TEXT NOT NULL DEFAULT '',
	opened_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS session_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// migrations[v] brings a database from user_version v-1 to v. Append only.
var migrations = []string{
	1: coreSchemaSQL,
	2: `CREATE INDEX IF NOT EXISTS idx_recent_opened ON recent_threads(opened_at DESC);`,
}

// schemaVersion is the user_version of a fully migrated database.
var schemaVersion = len(migrations) - 1

func migrate(conn *sql.DB) error {
	var current int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("index: read schema version: %w", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("index: schema v%d is newer than supported v%d", current, schemaVersion)
	}
	for v := current + 1; v <= schemaVersion; v++ {
		tx, err := conn.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("index: migration %d: %w", v, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("index: migration %d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("index: migration %d: %w", v, err)
		}
	}
	return nil
}

// DB wraps a sql.DB with index-specific operations.
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
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}
