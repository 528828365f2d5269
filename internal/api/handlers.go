package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/starford/ariadna/internal/drift"
	"github.com/starford/ariadna/internal/export"
	"github.com/starford/ariadna/internal/index"
	"github.com/starford/ariadna/internal/models"
	"github.com/starford/ariadna/internal/session"
	"github.com/starford/ariadna/internal/thread"
)

// Handler holds API route handlers.
type Handler struct {
	sess *session.Session
	db   index.ThreadIndex
}

// NewHandler creates a new Handler.
func NewHandler(sess *session.Session, db index.ThreadIndex) *Handler {
	return &Handler{sess: sess, db: db}
}

// Status handles GET /api/status.
//
//	@Summary		Session status
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	SessionStatus
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.Status())
}

// GetThread handles GET /api/thread.
//
//	@Summary		The open thread
//	@Tags			thread
//	@Produce		json
//	@Success		200	{object}	ThreadDocument
//	@Failure		412	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/thread [get]
func (h *Handler) GetThread(w http.ResponseWriter, _ *http.Request) {
	doc, err := h.sess.Snapshot()
	if err != nil {
		writeError(w, "get thread", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// NewThread handles POST /api/thread.
//
//	@Summary		Replace the open thread with a new, empty one
//	@Tags			thread
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NewThreadRequest	true	"Thread to create"
//	@Success		201		{object}	ThreadDocument
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/thread [post]
func (h *Handler) NewThread(w http.ResponseWriter, r *http.Request) {
	var req NewThreadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.sess.Guard(req.Discard); err != nil {
		writeError(w, "new thread", err)
		return
	}
	err := h.sess.NewThread(r.Context(), session.NewThreadInput{
		Title:       req.Title,
		RootPath:    req.RootPath,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, "new thread", err)
		return
	}
	h.writeSnapshot(w, http.StatusCreated)
}

// UpdateThread handles PATCH /api/thread.
func (h *Handler) UpdateThread(w http.ResponseWriter, r *http.Request) {
	var req UpdateThreadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := h.sess.UpdateThread(session.ThreadPatch{
		Title:            req.Title,
		Description:      req.Description,
		ClearDescription: req.ClearDescription,
		RootPath:         req.RootPath,
		VCSRev:           req.VCSRev,
	})
	if err != nil {
		writeError(w, "update thread", err)
		return
	}
	h.writeSnapshot(w, http.StatusOK)
}

// LoadThread handles POST /api/thread/load.
//
//	@Summary		Open a thread document from the workspace
//	@Tags			thread
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoadThreadRequest	true	"Document location"
//	@Success		200		{object}	ThreadDocument
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/thread/load [post]
func (h *Handler) LoadThread(w http.ResponseWriter, r *http.Request) {
	var req LoadThreadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Location == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("location is required"))
		return
	}
	if err := h.sess.Guard(req.Discard); err != nil {
		writeError(w, "load thread", err)
		return
	}
	if err := h.sess.Load(r.Context(), req.Location); err != nil {
		writeError(w, "load thread", err)
		return
	}
	h.writeSnapshot(w, http.StatusOK)
}

// SaveThread handles POST /api/thread/save.
//
//	@Summary		Write the open thread to the workspace
//	@Tags			thread
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveThreadRequest	false	"Target location"
//	@Success		200		{object}	SaveThreadResponse
//	@Failure		412		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/thread/save [post]
func (h *Handler) SaveThread(w http.ResponseWriter, r *http.Request) {
	var req SaveThreadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	loc, err := h.sess.Save(r.Context(), req.Location)
	if err != nil {
		writeError(w, "save thread", err)
		return
	}
	writeJSON(w, http.StatusOK, SaveThreadResponse{Location: loc})
}

// ReloadThread handles POST /api/thread/reload.
func (h *Handler) ReloadThread(w http.ResponseWriter, r *http.Request) {
	var req ReloadThreadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.sess.Guard(req.Discard); err != nil {
		writeError(w, "reload thread", err)
		return
	}
	if err := h.sess.Reload(r.Context()); err != nil {
		writeError(w, "reload thread", err)
		return
	}
	h.writeSnapshot(w, http.StatusOK)
}

// ExportThread handles GET /api/thread/export.
//
//	@Summary		Render the open thread as Markdown or HTML
//	@Tags			thread
//	@Produce		text/markdown,text/html
//	@Param			format	query	string	false	"Output format"	Enums(md, html)
//	@Success		200
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/thread/export [get]
func (h *Handler) ExportThread(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "md"
	}
	var (
		render     func(*thread.Thread) ([]byte, error)
		ext, ctype string
		out        []byte
		name       string
	)
	switch format {
	case "md":
		render, ext, ctype = export.Markdown, ".md", "text/markdown; charset=utf-8"
	case "html":
		render, ext, ctype = export.HTML, ".html", "text/html; charset=utf-8"
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("format must be md or html"))
		return
	}
	err := h.sess.View(func(t *thread.Thread) error {
		var err error
		out, err = render(t)
		name = export.Filename(t, ext)
		return err
	})
	if err != nil {
		writeError(w, "export thread", err)
		return
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// Drift handles GET /api/thread/drift.
//
//	@Summary		Compare line snapshots with the source files
//	@Tags			thread
//	@Produce		json
//	@Success		200	{object}	DriftResponse
//	@Security		BearerAuth
//	@Router			/thread/drift [get]
func (h *Handler) Drift(w http.ResponseWriter, _ *http.Request) {
	reports, err := h.sess.Drift()
	if err != nil {
		writeError(w, "drift", err)
		return
	}
	writeJSON(w, http.StatusOK, DriftResponse{Reports: reports, Drifted: len(drift.Drifted(reports))})
}

// Recent handles GET /api/recent.
func (h *Handler) Recent(w http.ResponseWriter, _ *http.Request) {
	recent, err := h.sess.Recent()
	if err != nil {
		writeError(w, "recent", err)
		return
	}
	writeJSON(w, http.StatusOK, RecentResponse{Recent: recent})
}

// Marks handles GET /api/marks.
func (h *Handler) Marks(w http.ResponseWriter, _ *http.Request) {
	catalog := thread.Catalog()
	marks := make([]thread.VisualMarkRecord, 0, len(catalog))
	for _, m := range catalog {
		marks = append(marks, thread.VisualMarkRecord{Char: m.Char, Name: m.Name})
	}
	writeJSON(w, http.StatusOK, MarkCatalogResponse{Marks: marks})
}

// ListThreads handles GET /api/threads.
//
//	@Summary		Thread documents in the workspace
//	@Tags			workspace
//	@Produce		json
//	@Success		200	{object}	ThreadListResponse
//	@Security		BearerAuth
//	@Router			/threads [get]
func (h *Handler) ListThreads(w http.ResponseWriter, _ *http.Request) {
	threads, err := h.db.ListThreads()
	if err != nil {
		writeError(w, "list threads", err)
		return
	}
	writeJSON(w, http.StatusOK, ThreadListResponse{Threads: threads})
}

// DeleteThreadFile handles DELETE /api/threads?location=...
//
//	@Summary		Delete a thread document from the workspace
//	@Tags			workspace
//	@Param			location	query	string	true	"Document location"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/threads [delete]
func (h *Handler) DeleteThreadFile(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'location' is required"))
		return
	}
	if err := h.sess.DeleteFile(r.Context(), location); err != nil {
		writeError(w, "delete thread file", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveThreadFile handles POST /api/threads/move.
func (h *Handler) MoveThreadFile(w http.ResponseWriter, r *http.Request) {
	var req MoveThreadFileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("from and to are required"))
		return
	}
	loc, err := h.sess.MoveFile(r.Context(), req.From, req.To)
	if err != nil {
		writeError(w, "move thread file", err)
		return
	}
	writeJSON(w, http.StatusOK, MoveThreadFileResponse{Location: loc})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across node captions and comments
//	@Tags			workspace
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	NodeRefResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.db.Search(q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, NodeRefResponse{Results: nonNil(results)})
}

// References handles GET /api/references.
//
//	@Summary		Nodes linking to a source file
//	@Tags			workspace
//	@Produce		json
//	@Param			path	query		string	true	"Absolute source file path"
//	@Success		200		{object}	NodeRefResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/references [get]
func (h *Handler) References(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	refs, err := h.db.References(path)
	if err != nil {
		writeError(w, "references", err)
		return
	}
	writeJSON(w, http.StatusOK, NodeRefResponse{Results: nonNil(refs)})
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, status int) {
	doc, err := h.sess.Snapshot()
	if err != nil {
		writeError(w, "snapshot", err)
		return
	}
	writeJSON(w, status, doc)
}

func nonNil(refs []models.NodeRef) []models.NodeRef {
	if refs == nil {
		return []models.NodeRef{}
	}
	return refs
}
