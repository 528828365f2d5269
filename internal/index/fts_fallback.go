//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/ariadna/internal/models"
)

// Without the sqlite_fts5 tag there is no virtual table; Search scans nodes.
func initFTS(*sql.DB) error { return nil }

func ftsInsert(*sql.Tx, string, NodeRow) error { return nil }

func ftsDelete(*sql.Tx, string) {}

// Search matches nodes whose caption, comments or source path contain every
// query term, case-insensitively for ASCII. The snippet is the caption when it
// matches the first term, otherwise the start of the comments.
func (db *DB) Search(query string, limit int) ([]models.NodeRef, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return []models.NodeRef{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	const termCond = `(caption LIKE ? ESCAPE '\' OR comments LIKE ? ESCAPE '\' OR src_path LIKE ? ESCAPE '\')`
	conds := make([]string, len(terms))
	args := []any{likePattern(terms[0])}
	for i, t := range terms {
		p := likePattern(t)
		conds[i] = termCond
		args = append(args, p, p, p)
	}
	args = append(args, limit)

	rows, err := db.conn.Query(`
		SELECT path, node_id, caption, src_path, line_num,
		       CASE WHEN caption LIKE ? ESCAPE '\' THEN caption ELSE substr(comments, 1, 120) END
		FROM nodes
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY path, node_id
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search %q: %w", query, err)
	}
	return scanRefs(rows, true)
}
