// Package thread implements the Ariadna thread document: an annotated outline
// whose nodes point at lines of a source tree.
//
// The package is pure. It converts loosely shaped JSON records into a typed
// Thread (Normalize), writes the canonical form back (Serialize), checks
// content invariants (Validate) and mutates the node forest (tree.go). Callers
// own persistence and dirty tracking.
package thread

// DefaultRootPath is used when a document does not name its root directory.
const DefaultRootPath = "/"

// MaxCommentLen bounds every comment, including the thread description.
const MaxCommentLen = 255

// SrcLink points at one line of a source file.
type SrcLink struct {
	// Path is relative to Thread.RootPath unless absolute.
	Path string
	// LineNum is 1-based; 0 means no line.
	LineNum int
	// LineContent is the text of the line when the link was recorded.
	LineContent string
}

// VisualMark is a short glyph and label attached to a node.
type VisualMark struct {
	Char string
	Name string
}

// Node is one outline entry. A node is owned by exactly one container: the
// thread's top-level Children or another node's Children.
type Node struct {
	ID int
	// ParentID mirrors the id of the containing node, nil at top level.
	// Tree operations recompute it; the container is the source of truth.
	ParentID    *int
	SrcLink     *SrcLink
	Caption     string
	Comments    []string
	VisualMarks []VisualMark
	Children    []*Node

	// rawID and rawParentID hold id values that were not integers in the
	// source document. Validate rejects nodes that carry them.
	rawID       any
	rawParentID any
}

// Thread is the document root.
type Thread struct {
	Title    string
	RootPath string
	// Description is an optional comment on the whole thread.
	Description   *string
	Children      []*Node
	VCSRev        *string
	CurrentNodeID *int

	// issued is the highest id handed out by AllocateID.
	issued int
}

// New returns an empty thread with the given title.
func New(title string) *Thread {
	return &Thread{
		Title:    title,
		RootPath: DefaultRootPath,
		Children: []*Node{},
	}
}

// HasValidID reports whether the node's id was an integer when it was read.
func (n *Node) HasValidID() bool {
	return n.rawID == nil
}

// HasMark reports whether a mark with the given name is attached.
func (n *Node) HasMark(name string) bool {
	for _, m := range n.VisualMarks {
		if m.Name == name {
			return true
		}
	}
	return false
}

// ToggleMark attaches m if no mark with the same name is present and removes
// it otherwise. It reports whether the mark is attached afterwards.
func (n *Node) ToggleMark(m VisualMark) bool {
	for i, cur := range n.VisualMarks {
		if cur.Name == m.Name {
			n.VisualMarks = append(n.VisualMarks[:i], n.VisualMarks[i+1:]...)
			return false
		}
	}
	n.VisualMarks = append(n.VisualMarks, m)
	return true
}

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}
