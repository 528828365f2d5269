package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/ariadna/internal/models"
)

// ThreadRow represents a row in the threads table.
type ThreadRow struct {
	Path      string
	Title     string
	Checksum  string
	UpdatedAt time.Time
}

// NodeRow is the searchable projection of one node.
type NodeRow struct {
	NodeID   int
	Caption  string
	Comments string
	SrcPath  string
	LineNum  int
}

// UpsertThread replaces a thread and all of its node rows within a transaction.
func (db *DB) UpsertThread(t ThreadRow, nodes []NodeRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO threads (path, title, checksum, node_count, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			node_count = excluded.node_count,
			updated_at = excluded.updated_at
	`, t.Path, t.Title, t.Checksum, len(nodes), t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert thread: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM nodes WHERE path = ?`, t.Path); err != nil {
		return fmt.Errorf("index: clear nodes: %w", err)
	}
	ftsDelete(tx, t.Path)

	if len(nodes) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO nodes (path, node_id, caption, comments, src_path, line_num)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare node insert: %w", err)
		}
		defer stmt.Close()
		for _, n := range nodes {
			if _, err := stmt.Exec(t.Path, n.NodeID, n.Caption, n.Comments, n.SrcPath, n.LineNum); err != nil {
				return fmt.Errorf("index: insert node: %w", err)
			}
			if err := ftsInsert(tx, t.Path, n); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteThread removes a thread and its node rows.
func (db *DB) DeleteThread(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM nodes WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM threads WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a thread, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM threads WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path -> checksum for every indexed thread.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM threads`)
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

// ListThreads returns every indexed thread ordered by title.
func (db *DB) ListThreads() ([]models.ThreadSummary, error) {
	rows, err := db.conn.Query(`SELECT path, title, node_count, updated_at FROM threads ORDER BY title, path`)
	if err != nil {
		return nil, fmt.Errorf("index: list threads: %w", err)
	}
	defer rows.Close()

	out := []models.ThreadSummary{}
	for rows.Next() {
		var s models.ThreadSummary
		if err := rows.Scan(&s.Path, &s.Title, &s.NodeCount, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// References returns the nodes, across all threads, that link to srcPath.
func (db *DB) References(srcPath string) ([]models.NodeRef, error) {
	rows, err := db.conn.Query(`
		SELECT path, node_id, caption, src_path, line_num
		FROM nodes
		WHERE src_path = ?
		ORDER BY path, line_num, node_id
	`, srcPath)
	if err != nil {
		return nil, fmt.Errorf("index: references: %w", err)
	}
	return scanRefs(rows, false)
}
