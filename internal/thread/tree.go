package thread

import "slices"

// Slot locates a node inside the sequence that owns it.
type Slot struct {
	// Parent is the containing node, nil for top-level nodes.
	Parent *Node
	List   *[]*Node
	Index  int
}

// Node returns the node the slot points at.
func (s Slot) Node() *Node {
	return (*s.List)[s.Index]
}

func (s Slot) parentID() *int {
	if s.Parent == nil {
		return nil
	}
	return intPtr(s.Parent.ID)
}

// Walk visits every node in depth-first pre-order. Returning false from fn
// stops the walk.
func (t *Thread) Walk(fn func(n *Node, depth int) bool) {
	walk(t.Children, 0, fn)
}

func walk(nodes []*Node, depth int, fn func(*Node, int) bool) bool {
	for _, n := range nodes {
		if !fn(n, depth) {
			return false
		}
		if !walk(n.Children, depth+1, fn) {
			return false
		}
	}
	return true
}

// Count returns the number of nodes in the forest.
func (t *Thread) Count() int {
	count := 0
	t.Walk(func(*Node, int) bool {
		count++
		return true
	})
	return count
}

// AllocateID returns an id one greater than any id present in the forest and
// any id previously returned for this thread, so the first id of an empty
// thread is 1 and deleted ids are not handed out again. The count starts
// at 0, so a forest holding only negative ids also gets 1.
func (t *Thread) AllocateID() int {
	maxID := t.issued
	t.Walk(func(n *Node, _ int) bool {
		if n.HasValidID() && n.ID > maxID {
			maxID = n.ID
		}
		return true
	})
	t.issued = maxID + 1
	return t.issued
}

// FindByID returns the first node with the given id in pre-order, or nil.
func (t *Thread) FindByID(id int) *Node {
	var found *Node
	t.Walk(func(n *Node, _ int) bool {
		if n.HasValidID() && n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindContainer returns the slot holding the node with the given id.
func (t *Thread) FindContainer(id int) (Slot, bool) {
	return findSlot(nil, &t.Children, func(n *Node) bool {
		return n.HasValidID() && n.ID == id
	})
}

// locate finds the slot holding exactly n.
func (t *Thread) locate(n *Node) (Slot, bool) {
	if n == nil {
		return Slot{}, false
	}
	return findSlot(nil, &t.Children, func(c *Node) bool { return c == n })
}

func findSlot(parent *Node, list *[]*Node, match func(*Node) bool) (Slot, bool) {
	for i, n := range *list {
		if match(n) {
			return Slot{Parent: parent, List: list, Index: i}, true
		}
		if s, ok := findSlot(n, &n.Children, match); ok {
			return s, true
		}
	}
	return Slot{}, false
}

// IsDescendantOf reports whether candidate is ancestor itself or lies
// anywhere in ancestor's subtree.
func IsDescendantOf(candidate, ancestor *Node) bool {
	if candidate == nil || ancestor == nil {
		return false
	}
	if candidate == ancestor {
		return true
	}
	for _, c := range ancestor.Children {
		if IsDescendantOf(candidate, c) {
			return true
		}
	}
	return false
}

// CreateNode returns a new, empty node with a freshly allocated id. The node
// is not inserted into the forest.
func (t *Thread) CreateNode(parentID *int) *Node {
	return &Node{
		ID:          t.AllocateID(),
		ParentID:    copyInt(parentID),
		Comments:    []string{},
		VisualMarks: []VisualMark{},
		Children:    []*Node{},
	}
}

// InsertRelative creates a node in anchor's container at anchor's index plus
// offset (0 inserts before the anchor, 1 after it). It returns nil and leaves
// the forest alone when the anchor is not part of the thread. The new node's
// ParentID comes from the container, which equals anchor.ParentID once the
// tree has been normalized.
func (t *Thread) InsertRelative(anchor *Node, offset int) *Node {
	slot, ok := t.locate(anchor)
	if !ok {
		return nil
	}
	n := t.CreateNode(slot.parentID())
	idx := min(max(slot.Index+offset, 0), len(*slot.List))
	*slot.List = slices.Insert(*slot.List, idx, n)
	return n
}

// Reparent moves n with its subtree to the end of the children of the node
// with id newParentID, or to the top level when newParentID is nil. It does
// nothing and returns false when n is not in the thread, the target does not
// exist, or the target lies inside n's own subtree.
func (t *Thread) Reparent(n *Node, newParentID *int) bool {
	slot, ok := t.locate(n)
	if !ok {
		return false
	}

	dest := &t.Children
	if newParentID != nil {
		target := t.FindByID(*newParentID)
		if target == nil || IsDescendantOf(target, n) {
			return false
		}
		dest = &target.Children
	}

	*slot.List = slices.Delete(*slot.List, slot.Index, slot.Index+1)
	*dest = append(*dest, n)
	n.ParentID = copyInt(newParentID)
	return true
}

// MoveRelative moves n with its subtree next to anchor: before it for offset
// 0, after it for offset 1. The same cycle guard as Reparent applies.
func (t *Thread) MoveRelative(n, anchor *Node, offset int) bool {
	if n == anchor || IsDescendantOf(anchor, n) {
		return false
	}
	from, ok := t.locate(n)
	if !ok {
		return false
	}
	if _, ok := t.locate(anchor); !ok {
		return false
	}

	*from.List = slices.Delete(*from.List, from.Index, from.Index+1)
	to, _ := t.locate(anchor)
	idx := min(max(to.Index+offset, 0), len(*to.List))
	*to.List = slices.Insert(*to.List, idx, n)
	n.ParentID = to.parentID()
	return true
}

// DeleteNode removes the node with the given id together with its subtree
// and returns it, or nil when no such node exists.
func (t *Thread) DeleteNode(id int) *Node {
	slot, ok := t.FindContainer(id)
	if !ok {
		return nil
	}
	n := slot.Node()
	*slot.List = slices.Delete(*slot.List, slot.Index, slot.Index+1)
	return n
}

// AppendChild adds n at the end of parent's children, or of the top level
// when parent is nil, and sets n.ParentID to match. It refuses to make a node
// a child of its own subtree.
func (t *Thread) AppendChild(parent, n *Node) bool {
	if parent == nil {
		t.Children = append(t.Children, n)
		n.ParentID = nil
		return true
	}
	if IsDescendantOf(parent, n) {
		return false
	}
	parent.Children = append(parent.Children, n)
	n.ParentID = intPtr(parent.ID)
	return true
}
