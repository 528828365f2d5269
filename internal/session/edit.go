package session

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/starford/ariadna/internal/apperr"
	"github.com/starford/ariadna/internal/drift"
	"github.com/starford/ariadna/internal/thread"
)

// NodeInput is the content of a node to add.
type NodeInput struct {
	Caption  string
	SrcLink  *thread.SrcLink
	Comments []string
}

// NodePatch changes a node's content. Nil fields are left alone.
type NodePatch struct {
	Caption      *string
	SrcLink      *thread.SrcLink
	ClearSrcLink bool
}

// ThreadPatch changes thread-level fields. Nil fields are left alone.
type ThreadPatch struct {
	Title            *string
	Description      *string
	ClearDescription bool
	RootPath         *string
	VCSRev           *string
}

// mutate runs fn against the open thread and marks the session dirty when
// fn succeeds. fn must either apply its change fully or return an error
// without touching the thread.
func (s *Session) mutate(op string, fn func(t *thread.Thread) error) error {
	s.mu.Lock()
	if s.thread == nil {
		s.mu.Unlock()
		return apperr.ErrNoThread
	}
	if err := fn(s.thread); err != nil {
		s.mu.Unlock()
		return err
	}
	s.dirty = true
	s.mu.Unlock()

	s.logger.Debug("session: applied", slog.String("op", op))
	s.notify("changed", map[string]any{"op": op})
	return nil
}

// AddNode appends a new node under parentID, or at the top level when
// parentID is nil, and returns its id.
func (s *Session) AddNode(parentID *int, in NodeInput) (int, error) {
	if err := validateInput(in); err != nil {
		return 0, err
	}
	var id int
	err := s.mutate("add_node", func(t *thread.Thread) error {
		var parent *thread.Node
		if parentID != nil {
			if parent = t.FindByID(*parentID); parent == nil {
				return nodeNotFound(*parentID)
			}
		}
		n := t.CreateNode(parentID)
		fill(n, in)
		t.AppendChild(parent, n)
		id = n.ID
		return nil
	})
	return id, err
}

// InsertNode places a new node next to anchorID, before it or after it,
// and returns its id.
func (s *Session) InsertNode(anchorID int, after bool, in NodeInput) (int, error) {
	if err := validateInput(in); err != nil {
		return 0, err
	}
	var id int
	err := s.mutate("insert_node", func(t *thread.Thread) error {
		anchor := t.FindByID(anchorID)
		if anchor == nil {
			return nodeNotFound(anchorID)
		}
		n := t.InsertRelative(anchor, offset(after))
		if n == nil {
			return nodeNotFound(anchorID)
		}
		fill(n, in)
		id = n.ID
		return nil
	})
	return id, err
}

// MoveNode reparents id under newParentID, or to the top level when
// newParentID is nil. Moving a node into its own subtree fails with
// ErrInvalidMove and changes nothing.
func (s *Session) MoveNode(id int, newParentID *int) error {
	return s.mutate("move_node", func(t *thread.Thread) error {
		n := t.FindByID(id)
		if n == nil {
			return nodeNotFound(id)
		}
		if newParentID != nil && t.FindByID(*newParentID) == nil {
			return nodeNotFound(*newParentID)
		}
		if !t.Reparent(n, newParentID) {
			return apperr.ErrInvalidMove
		}
		return nil
	})
}

// MoveNodeRelative moves id next to anchorID, before it or after it.
func (s *Session) MoveNodeRelative(id, anchorID int, after bool) error {
	return s.mutate("move_node", func(t *thread.Thread) error {
		n := t.FindByID(id)
		if n == nil {
			return nodeNotFound(id)
		}
		anchor := t.FindByID(anchorID)
		if anchor == nil {
			return nodeNotFound(anchorID)
		}
		if !t.MoveRelative(n, anchor, offset(after)) {
			return apperr.ErrInvalidMove
		}
		return nil
	})
}

// DeleteNode removes id and its whole subtree. A selection inside the
// subtree is cleared.
func (s *Session) DeleteNode(id int) error {
	return s.mutate("delete_node", func(t *thread.Thread) error {
		if t.DeleteNode(id) == nil {
			return nodeNotFound(id)
		}
		if t.CurrentNodeID != nil && t.FindByID(*t.CurrentNodeID) == nil {
			t.CurrentNodeID = nil
		}
		return nil
	})
}

// UpdateNode applies p to node id. An empty patch is a no-op and leaves the
// session clean.
func (s *Session) UpdateNode(id int, p NodePatch) error {
	if p.Caption != nil {
		if err := thread.ValidateCaption(*p.Caption); err != nil {
			return err
		}
	}
	if p.Caption == nil && p.SrcLink == nil && !p.ClearSrcLink {
		return s.View(func(t *thread.Thread) error {
			if t.FindByID(id) == nil {
				return nodeNotFound(id)
			}
			return nil
		})
	}
	return s.mutate("update_node", func(t *thread.Thread) error {
		n := t.FindByID(id)
		if n == nil {
			return nodeNotFound(id)
		}
		if p.Caption != nil {
			n.Caption = *p.Caption
		}
		switch {
		case p.ClearSrcLink:
			n.SrcLink = nil
		case p.SrcLink != nil:
			link := *p.SrcLink
			n.SrcLink = &link
		}
		return nil
	})
}

// AddComment appends text to node id and returns the comment's index.
func (s *Session) AddComment(id int, text string) (int, error) {
	if err := thread.ValidateComment(text); err != nil {
		return 0, err
	}
	var idx int
	err := s.mutate("add_comment", func(t *thread.Thread) error {
		n := t.FindByID(id)
		if n == nil {
			return nodeNotFound(id)
		}
		n.Comments = append(n.Comments, text)
		idx = len(n.Comments) - 1
		return nil
	})
	return idx, err
}

// UpdateComment replaces comment idx of node id.
func (s *Session) UpdateComment(id, idx int, text string) error {
	if err := thread.ValidateComment(text); err != nil {
		return err
	}
	return s.mutate("update_comment", func(t *thread.Thread) error {
		n, err := commentOwner(t, id, idx)
		if err != nil {
			return err
		}
		n.Comments[idx] = text
		return nil
	})
}

// RemoveComment deletes comment idx of node id.
func (s *Session) RemoveComment(id, idx int) error {
	return s.mutate("remove_comment", func(t *thread.Thread) error {
		n, err := commentOwner(t, id, idx)
		if err != nil {
			return err
		}
		n.Comments = append(n.Comments[:idx], n.Comments[idx+1:]...)
		return nil
	})
}

// ToggleMark adds m to node id, or removes it when a mark of that name is
// already set. A mark given by name only is looked up in the catalog. It
// reports whether the mark is now set.
func (s *Session) ToggleMark(id int, m thread.VisualMark) (bool, error) {
	if m.Char == "" {
		known, ok := thread.LookupMark(m.Name)
		if !ok {
			return false, &thread.ValidationError{Field: "name", Message: "is not a known mark"}
		}
		m = known
	}
	if err := thread.ValidateMark(m); err != nil {
		return false, err
	}
	var on bool
	err := s.mutate("toggle_mark", func(t *thread.Thread) error {
		n := t.FindByID(id)
		if n == nil {
			return nodeNotFound(id)
		}
		on = n.ToggleMark(m)
		return nil
	})
	return on, err
}

// UpdateThread applies p to the thread-level fields.
func (s *Session) UpdateThread(p ThreadPatch) error {
	if p.Title != nil {
		if err := thread.ValidateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := thread.ValidateDescription(*p.Description); err != nil {
			return err
		}
	}
	return s.mutate("update_thread", func(t *thread.Thread) error {
		if p.Title != nil {
			t.Title = *p.Title
		}
		switch {
		case p.ClearDescription:
			t.Description = nil
		case p.Description != nil:
			d := *p.Description
			t.Description = &d
		}
		if p.RootPath != nil {
			t.RootPath = *p.RootPath
		}
		if p.VCSRev != nil {
			rev := *p.VCSRev
			t.VCSRev = &rev
		}
		return nil
	})
}

// Select makes id the current node, or clears the selection when id is
// nil. The selection is remembered for Restore and does not mark the
// thread dirty.
func (s *Session) Select(id *int) error {
	s.mu.Lock()
	if s.thread == nil {
		s.mu.Unlock()
		return apperr.ErrNoThread
	}
	value := ""
	if id != nil {
		if s.thread.FindByID(*id) == nil {
			s.mu.Unlock()
			return nodeNotFound(*id)
		}
		cur := *id
		s.thread.CurrentNodeID = &cur
		value = strconv.Itoa(cur)
	} else {
		s.thread.CurrentNodeID = nil
	}
	s.mu.Unlock()

	if err := s.state.SetState(StateLastNodeID, value); err != nil {
		s.logger.Warn("session: save selection failed", slog.String("error", err.Error()))
	}
	s.notify("selected", map[string]any{"node_id": id})
	return nil
}

// Locate resolves the source position of node id.
func (s *Session) Locate(id int) (thread.Location, error) {
	var loc thread.Location
	err := s.View(func(t *thread.Thread) error {
		n := t.FindByID(id)
		if n == nil {
			return nodeNotFound(id)
		}
		if n.SrcLink == nil || n.SrcLink.Path == "" {
			return fmt.Errorf("session: node %d has no source link: %w", id, apperr.ErrNotFound)
		}
		loc = thread.Resolve(n.SrcLink, t.RootPath)
		return nil
	})
	return loc, err
}

// Drift checks every linked node of the open thread against the files on
// disk.
func (s *Session) Drift() ([]drift.Report, error) {
	var reports []drift.Report
	err := s.View(func(t *thread.Thread) error {
		reports = drift.Check(t)
		return nil
	})
	return reports, err
}

func validateInput(in NodeInput) error {
	if err := thread.ValidateCaption(in.Caption); err != nil {
		return err
	}
	for _, c := range in.Comments {
		if err := thread.ValidateComment(c); err != nil {
			return err
		}
	}
	return nil
}

func fill(n *thread.Node, in NodeInput) {
	n.Caption = in.Caption
	if in.SrcLink != nil {
		link := *in.SrcLink
		n.SrcLink = &link
	}
	n.Comments = append([]string{}, in.Comments...)
}

func commentOwner(t *thread.Thread, id, idx int) (*thread.Node, error) {
	n := t.FindByID(id)
	if n == nil {
		return nil, nodeNotFound(id)
	}
	if idx < 0 || idx >= len(n.Comments) {
		return nil, fmt.Errorf("session: node %d has no comment %d: %w", id, idx, apperr.ErrNotFound)
	}
	return n, nil
}

func nodeNotFound(id int) error {
	return fmt.Errorf("session: node %d: %w", id, apperr.ErrNotFound)
}

func offset(after bool) int {
	if after {
		return 1
	}
	return 0
}
