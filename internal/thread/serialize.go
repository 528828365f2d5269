package thread

import (
	"bytes"
	"encoding/json"
)

// Document is the canonical, snake_case wire form of a Thread.
type Document struct {
	Title         string          `json:"title"`
	RootPath      string          `json:"root_path"`
	Description   *string         `json:"description"`
	Childs        []*NodeDocument `json:"childs"`
	VCSRev        *string         `json:"vcs_rev"`
	CurrentNodeID *int            `json:"current_node_id"`
}

// NodeDocument is the wire form of a Node. ID and ParentID are usually ints
// but carry through whatever a document held when it was not an integer.
type NodeDocument struct {
	ID          any                `json:"id"`
	ParentID    any                `json:"parent_id"`
	SrcLink     *SrcLinkDocument   `json:"src_link"`
	Caption     string             `json:"caption"`
	Comments    []string           `json:"comments"`
	VisualMarks []VisualMarkRecord `json:"visual_marks,omitempty"`
	Childs      []*NodeDocument    `json:"childs"`
}

// SrcLinkDocument is the wire form of a SrcLink.
type SrcLinkDocument struct {
	Path        string `json:"path"`
	LineNum     int    `json:"line_num"`
	LineContent string `json:"line_content"`
}

// VisualMarkRecord is the wire form of a VisualMark.
type VisualMarkRecord struct {
	Char string `json:"char"`
	Name string `json:"name"`
}

// Serialize converts t to its canonical wire form.
func Serialize(t *Thread) *Document {
	doc := &Document{
		Title:         t.Title,
		RootPath:      t.RootPath,
		Description:   copyStr(t.Description),
		Childs:        serializeNodes(t.Children),
		VCSRev:        copyStr(t.VCSRev),
		CurrentNodeID: copyInt(t.CurrentNodeID),
	}
	return doc
}

func serializeNodes(nodes []*Node) []*NodeDocument {
	out := make([]*NodeDocument, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, SerializeNode(n))
	}
	return out
}

// SerializeNode converts a node and its subtree to the wire form.
func SerializeNode(n *Node) *NodeDocument {
	doc := &NodeDocument{
		ID:       n.ID,
		Caption:  n.Caption,
		Comments: append(make([]string, 0, len(n.Comments)), n.Comments...),
		Childs:   serializeNodes(n.Children),
	}

	switch n.rawID.(type) {
	case nil:
	case absent:
		doc.ID = nil
	default:
		doc.ID = n.rawID
	}
	switch {
	case n.rawParentID != nil:
		doc.ParentID = n.rawParentID
	case n.ParentID != nil:
		doc.ParentID = *n.ParentID
	}

	if n.SrcLink != nil {
		doc.SrcLink = &SrcLinkDocument{
			Path:        n.SrcLink.Path,
			LineNum:     n.SrcLink.LineNum,
			LineContent: n.SrcLink.LineContent,
		}
	}
	for _, m := range n.VisualMarks {
		doc.VisualMarks = append(doc.VisualMarks, VisualMarkRecord{Char: m.Char, Name: m.Name})
	}
	return doc
}

// Marshal encodes t as indented JSON with a trailing newline. HTML characters
// are left unescaped since line snapshots routinely contain them.
func Marshal(t *Thread) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Serialize(t)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func copyStr(p *string) *string {
	if p == nil {
		return nil
	}
	return strPtr(*p)
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	return intPtr(*p)
}
