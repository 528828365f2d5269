package api

import (
	"github.com/starford/ariadna/internal/drift"
	"github.com/starford/ariadna/internal/models"
	"github.com/starford/ariadna/internal/session"
	"github.com/starford/ariadna/internal/thread"
)

// ThreadDocument is the open thread in its persisted shape.
type ThreadDocument = thread.Document

// SessionStatus summarizes the editing session.
type SessionStatus = session.Status

// NewThreadRequest is the request body for creating a thread.
type NewThreadRequest struct {
	Title       string  `json:"title" example:"lru_cache walk" validate:"required"`
	RootPath    string  `json:"root_path" example:"/usr/lib/python3.14"`
	Description *string `json:"description"`
	// Discard drops unsaved changes of the open thread.
	Discard bool `json:"discard"`
}

// LoadThreadRequest is the request body for loading a thread document.
type LoadThreadRequest struct {
	Location string `json:"location" example:"cache/lru.json" validate:"required"`
	Discard  bool   `json:"discard"`
}

// MoveThreadFileRequest is the request body for renaming a thread document.
type MoveThreadFileRequest struct {
	From string `json:"from" example:"cache/lru.json" validate:"required"`
	To   string `json:"to" example:"archive/lru.json" validate:"required"`
}

// MoveThreadFileResponse reports where the document ended up.
type MoveThreadFileResponse struct {
	Location string `json:"location"`
}

// SaveThreadRequest is the request body for saving the open thread.
type SaveThreadRequest struct {
	// Location defaults to where the thread was loaded from or last saved.
	Location string `json:"location" example:"cache/lru.json"`
}

// SaveThreadResponse reports where the thread was written.
type SaveThreadResponse struct {
	Location string `json:"location" validate:"required"`
}

// ReloadThreadRequest is the request body for re-reading the open thread.
type ReloadThreadRequest struct {
	Discard bool `json:"discard"`
}

// UpdateThreadRequest changes thread-level fields; omitted fields are kept.
type UpdateThreadRequest struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	ClearDescription bool    `json:"clear_description"`
	RootPath         *string `json:"root_path"`
	VCSRev           *string `json:"vcs_rev"`
}

// NodeRequest is the content of a node to add or insert.
type NodeRequest struct {
	ParentID *int                    `json:"parent_id"`
	Caption  string                  `json:"caption" example:"cache hit"`
	SrcLink  *thread.SrcLinkDocument `json:"src_link"`
	Comments []string                `json:"comments"`
	// Position is "before" or "after" the anchor for inserts.
	Position string `json:"position" example:"after" enums:"before,after"`
}

// NodeIDResponse carries the id of a created node.
type NodeIDResponse struct {
	ID int `json:"id" validate:"required"`
}

// UpdateNodeRequest changes a node; omitted fields are kept.
type UpdateNodeRequest struct {
	Caption      *string                 `json:"caption"`
	SrcLink      *thread.SrcLinkDocument `json:"src_link"`
	ClearSrcLink bool                    `json:"clear_src_link"`
}

// MoveNodeRequest moves a node. With AnchorID the node is placed next to
// the anchor; otherwise it is appended under ParentID, or at the top level
// when ParentID is null.
type MoveNodeRequest struct {
	ParentID *int   `json:"parent_id"`
	AnchorID *int   `json:"anchor_id"`
	Position string `json:"position" enums:"before,after"`
}

// SelectRequest sets or clears the current node.
type SelectRequest struct {
	NodeID *int `json:"node_id"`
}

// CommentRequest carries comment text.
type CommentRequest struct {
	Text string `json:"text" example:"evicts before insert" validate:"required"`
}

// CommentIndexResponse carries the index of a created comment.
type CommentIndexResponse struct {
	Index int `json:"index"`
}

// MarkRequest toggles a mark. A name alone refers to the catalog.
type MarkRequest struct {
	Name string `json:"name" example:"bug" validate:"required"`
	Char string `json:"char" example:"🐞"`
}

// MarkResponse reports whether the mark is set after the toggle.
type MarkResponse struct {
	On bool `json:"on"`
}

// ThreadListResponse wraps indexed thread documents.
type ThreadListResponse struct {
	Threads []models.ThreadSummary `json:"threads" validate:"required"`
}

// RecentResponse wraps the recent-threads list.
type RecentResponse struct {
	Recent []models.RecentThread `json:"recent" validate:"required"`
}

// NodeRefResponse wraps search hits or references.
type NodeRefResponse struct {
	Results []models.NodeRef `json:"results" validate:"required"`
}

// DriftResponse wraps drift reports.
type DriftResponse struct {
	Reports []drift.Report `json:"reports" validate:"required"`
	Drifted int            `json:"drifted"`
}

// MarkCatalogResponse lists the built-in marks.
type MarkCatalogResponse struct {
	Marks []thread.VisualMarkRecord `json:"marks" validate:"required"`
}

func (r NodeRequest) input() session.NodeInput {
	return session.NodeInput{
		Caption:  r.Caption,
		SrcLink:  srcLink(r.SrcLink),
		Comments: r.Comments,
	}
}

func srcLink(d *thread.SrcLinkDocument) *thread.SrcLink {
	if d == nil {
		return nil
	}
	return &thread.SrcLink{Path: d.Path, LineNum: d.LineNum, LineContent: d.LineContent}
}

// after reports whether position asks for placement after the anchor.
// Anything but "before" means after.
func after(position string) bool {
	return position != "before"
}
