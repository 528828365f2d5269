package thread

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
)

// Record is a decoded JSON object whose shape has not been checked yet.
type Record map[string]any

// Candidate keys for fields spelled differently by the two conventions.
// The first key wins when several are present.
var (
	keyRootPath      = []string{"rootPath", "root_path"}
	keyVCSRev        = []string{"vcsRev", "vcs_rev"}
	keyCurrentNodeID = []string{"currentNodeId", "current_node_id"}
	keyParentID      = []string{"parentId", "parent_id"}
	keySrcLink       = []string{"srcLink", "src_link"}
	keyVisualMarks   = []string{"visualMarks", "visual_marks"}
	keyLineNum       = []string{"lineNum", "line_num"}
	keyLineContent   = []string{"lineContent", "line_content"}
)

// absent stands in for an id field that was missing from the document.
type absent struct{}

// first returns the value of the first key that is present and not null.
func (r Record) first(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r Record) str(def string, keys ...string) string {
	if v, ok := r.first(keys...); ok {
		if s, isStr := v.(string); isStr {
			return s
		}
	}
	return def
}

func (r Record) optStr(keys ...string) *string {
	if v, ok := r.first(keys...); ok {
		if s, isStr := v.(string); isStr {
			return &s
		}
	}
	return nil
}

func (r Record) optInt(keys ...string) *int {
	if v, ok := r.first(keys...); ok {
		if n, isInt := asInt(v); isInt {
			return &n
		}
	}
	return nil
}

func (r Record) list(keys ...string) []any {
	if v, ok := r.first(keys...); ok {
		if l, isList := v.([]any); isList {
			return l
		}
	}
	return nil
}

func asRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	}
	return nil, false
}

// asInt accepts the numeric shapes produced by encoding/json, with or
// without UseNumber, as long as the value is integral.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return asInt(i)
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	}
	return 0, false
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int(f), true
}

// Normalize builds a Thread from a decoded document. Either key convention is
// accepted for every field and absent fields get their defaults. Normalize
// never fails: values of the wrong type fall back to defaults, except ids,
// which are kept as found so that Validate can report them.
func Normalize(r Record) *Thread {
	t := &Thread{
		Title:         r.str("", "title"),
		RootPath:      r.str(DefaultRootPath, keyRootPath...),
		Description:   r.optStr("description"),
		VCSRev:        r.optStr(keyVCSRev...),
		CurrentNodeID: r.optInt(keyCurrentNodeID...),
	}
	t.Children = normalizeNodes(r.list("childs"))
	return t
}

func normalizeNodes(raw []any) []*Node {
	out := make([]*Node, 0, len(raw))
	for _, v := range raw {
		rec, _ := asRecord(v)
		out = append(out, normalizeNode(rec))
	}
	return out
}

func normalizeNode(r Record) *Node {
	n := &Node{
		Caption:  r.str("", "caption"),
		Comments: normalizeComments(r.list("comments")),
		Children: normalizeNodes(r.list("childs")),
	}

	if v, ok := r.first("id"); ok {
		if id, isInt := asInt(v); isInt {
			n.ID = id
		} else {
			n.rawID = v
		}
	} else {
		n.rawID = absent{}
	}

	if v, ok := r.first(keyParentID...); ok {
		if pid, isInt := asInt(v); isInt {
			n.ParentID = &pid
		} else {
			n.rawParentID = v
		}
	}

	if v, ok := r.first(keySrcLink...); ok {
		if rec, isRec := asRecord(v); isRec {
			n.SrcLink = NormalizeSrcLink(rec)
		}
	}

	marks := r.list(keyVisualMarks...)
	n.VisualMarks = make([]VisualMark, 0, len(marks))
	for _, v := range marks {
		rec, _ := asRecord(v)
		n.VisualMarks = append(n.VisualMarks, VisualMark{
			Char: rec.str("", "char"),
			Name: rec.str("", "name"),
		})
	}
	return n
}

// NormalizeSrcLink builds a SrcLink from a record in either key convention.
func NormalizeSrcLink(r Record) *SrcLink {
	link := &SrcLink{
		Path:        r.str("", "path"),
		LineContent: r.str("", keyLineContent...),
	}
	if n := r.optInt(keyLineNum...); n != nil {
		link.LineNum = *n
	}
	return link
}

// normalizeComments keeps strings as they are. Other JSON values are kept as
// their JSON text; nulls are dropped.
func normalizeComments(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch c := v.(type) {
		case nil:
		case string:
			out = append(out, c)
		default:
			b, err := json.Marshal(c)
			if err != nil {
				continue
			}
			out = append(out, string(b))
		}
	}
	return out
}

// Decode parses a JSON document and normalizes it.
func Decode(data []byte) (*Thread, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ParseError{Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: errors.New("unexpected data after document")}
	}
	rec, ok := asRecord(v)
	if !ok {
		return nil, &ParseError{Err: errors.New("document is not a JSON object")}
	}
	return Normalize(rec), nil
}
