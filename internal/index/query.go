package index

import (
	"database/sql"
	"strings"

	"github.com/starford/ariadna/internal/models"
)

const defaultSearchLimit = 20

// searchTerms splits a user query on whitespace. Search matches nodes that
// contain every term.
func searchTerms(query string) []string {
	return strings.Fields(query)
}

// ftsQuery turns terms into an FTS5 expression of quoted prefix terms, so
// punctuation such as '-' or ':' in a term is never read as an operator.
func ftsQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	return strings.Join(quoted, " ")
}

// likePattern is a LIKE pattern matching s anywhere, for use with
// ESCAPE '\'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// scanRefs reads rows of (path, node_id, caption, src_path, line_num) and,
// when snippet is set, a trailing snippet column. The result is never nil.
func scanRefs(rows *sql.Rows, snippet bool) ([]models.NodeRef, error) {
	defer rows.Close()
	refs := []models.NodeRef{}
	for rows.Next() {
		var r models.NodeRef
		dest := []any{&r.Path, &r.NodeID, &r.Caption, &r.SrcPath, &r.LineNum}
		if snippet {
			dest = append(dest, &r.Snippet)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}
