//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/ariadna/internal/models"
)

const ftsSchemaSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
	path UNINDEXED,
	node_id UNINDEXED,
	caption,
	comments,
	src_path,
	tokenize = 'unicode61 remove_diacritics 2'
);`

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(ftsSchemaSQL)
	return err
}

func ftsInsert(tx *sql.Tx, path string, n NodeRow) error {
	if _, err := tx.Exec(`INSERT INTO nodes_fts (path, node_id, caption, comments, src_path) VALUES (?, ?, ?, ?, ?)`,
		path, n.NodeID, n.Caption, n.Comments, n.SrcPath); err != nil {
		return fmt.Errorf("index: fts row %s#%d: %w", path, n.NodeID, err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM nodes_fts WHERE path = ?`, path)
}

// Search ranks nodes by FTS5 relevance. Each query term matches as a word
// prefix; the snippet highlights hits with <b>.
func (db *DB) Search(query string, limit int) ([]models.NodeRef, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return []models.NodeRef{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := db.conn.Query(`
		SELECT f.path, f.node_id, n.caption, n.src_path, n.line_num,
		       snippet(nodes_fts, -1, '<b>', '</b>', '...', 16)
		FROM nodes_fts f
		JOIN nodes n ON n.path = f.path AND n.node_id = f.node_id
		WHERE nodes_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, ftsQuery(terms), limit)
	if err != nil {
		return nil, fmt.Errorf("index: search %q: %w", query, err)
	}
	return scanRefs(rows, true)
}
