package api

import (
	"net/http"

	"github.com/starford/ariadna/internal/session"
	"github.com/starford/ariadna/internal/thread"
)

// AddNode handles POST /api/nodes.
//
//	@Summary		Append a node under a parent or at the top level
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NodeRequest	true	"Node content"
//	@Success		201		{object}	NodeIDResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes [post]
func (h *Handler) AddNode(w http.ResponseWriter, r *http.Request) {
	var req NodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := h.sess.AddNode(req.ParentID, req.input())
	if err != nil {
		writeError(w, "add node", err)
		return
	}
	writeJSON(w, http.StatusCreated, NodeIDResponse{ID: id})
}

// InsertNode handles POST /api/nodes/{id}/insert.
//
//	@Summary		Insert a node before or after an anchor
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int			true	"Anchor node id"
//	@Param			body	body		NodeRequest	true	"Node content and position"
//	@Success		201		{object}	NodeIDResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/insert [post]
func (h *Handler) InsertNode(w http.ResponseWriter, r *http.Request) {
	anchor, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req NodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := h.sess.InsertNode(anchor, after(req.Position), req.input())
	if err != nil {
		writeError(w, "insert node", err)
		return
	}
	writeJSON(w, http.StatusCreated, NodeIDResponse{ID: id})
}

// UpdateNode handles PATCH /api/nodes/{id}.
func (h *Handler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := h.sess.UpdateNode(id, session.NodePatch{
		Caption:      req.Caption,
		SrcLink:      srcLink(req.SrcLink),
		ClearSrcLink: req.ClearSrcLink,
	})
	if err != nil {
		writeError(w, "update node", err)
		return
	}
	h.writeNode(w, id)
}

// DeleteNode handles DELETE /api/nodes/{id}.
//
//	@Summary		Delete a node with its subtree
//	@Tags			nodes
//	@Param			id	path	int	true	"Node id"
//	@Success		204	"Node deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [delete]
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.sess.DeleteNode(id); err != nil {
		writeError(w, "delete node", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveNode handles POST /api/nodes/{id}/move.
//
//	@Summary		Reparent a node or move it next to an anchor
//	@Tags			nodes
//	@Accept			json
//	@Param			id		path	int				true	"Node id"
//	@Param			body	body	MoveNodeRequest	true	"Destination"
//	@Success		204		"Node moved"
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/move [post]
func (h *Handler) MoveNode(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req MoveNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var err error
	if req.AnchorID != nil {
		err = h.sess.MoveNodeRelative(id, *req.AnchorID, after(req.Position))
	} else {
		err = h.sess.MoveNode(id, req.ParentID)
	}
	if err != nil {
		writeError(w, "move node", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Select handles PUT /api/selection.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.sess.Select(req.NodeID); err != nil {
		writeError(w, "select", err)
		return
	}
	writeJSON(w, http.StatusOK, h.sess.Status())
}

// Locate handles GET /api/nodes/{id}/location.
//
//	@Summary		Resolve a node's source link to an editor position
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		int	true	"Node id"
//	@Success		200	{object}	thread.Location
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/location [get]
func (h *Handler) Locate(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	loc, err := h.sess.Locate(id)
	if err != nil {
		writeError(w, "locate", err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// AddComment handles POST /api/nodes/{id}/comments.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	idx, err := h.sess.AddComment(id, req.Text)
	if err != nil {
		writeError(w, "add comment", err)
		return
	}
	writeJSON(w, http.StatusCreated, CommentIndexResponse{Index: idx})
}

// UpdateComment handles PUT /api/nodes/{id}/comments/{idx}.
func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	idx, ok := intParam(w, r, "idx")
	if !ok {
		return
	}
	var req CommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.sess.UpdateComment(id, idx, req.Text); err != nil {
		writeError(w, "update comment", err)
		return
	}
	h.writeNode(w, id)
}

// RemoveComment handles DELETE /api/nodes/{id}/comments/{idx}.
func (h *Handler) RemoveComment(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	idx, ok := intParam(w, r, "idx")
	if !ok {
		return
	}
	if err := h.sess.RemoveComment(id, idx); err != nil {
		writeError(w, "remove comment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleMark handles POST /api/nodes/{id}/marks.
//
//	@Summary		Toggle a visual mark on a node
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int			true	"Node id"
//	@Param			body	body		MarkRequest	true	"Mark"
//	@Success		200		{object}	MarkResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/marks [post]
func (h *Handler) ToggleMark(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req MarkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	on, err := h.sess.ToggleMark(id, thread.VisualMark{Char: req.Char, Name: req.Name})
	if err != nil {
		writeError(w, "toggle mark", err)
		return
	}
	writeJSON(w, http.StatusOK, MarkResponse{On: on})
}

// writeNode responds with the wire form of node id.
func (h *Handler) writeNode(w http.ResponseWriter, id int) {
	var doc *thread.NodeDocument
	err := h.sess.View(func(t *thread.Thread) error {
		if n := t.FindByID(id); n != nil {
			doc = thread.SerializeNode(n)
		}
		return nil
	})
	if err != nil {
		writeError(w, "node", err)
		return
	}
	if doc == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
