// Package session holds the one thread being edited, its dirty flag and
// the location it is persisted to. All reads and mutations of the open
// thread go through a Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/starford/ariadna/internal/apperr"
	"github.com/starford/ariadna/internal/index"
	"github.com/starford/ariadna/internal/models"
	"github.com/starford/ariadna/internal/storage"
	"github.com/starford/ariadna/internal/thread"
)

// Keys of the last-session values kept in the StateStore.
const (
	StateLastLocation = "last_location"
	StateLastNodeID   = "last_node_id"
)

// Notifier receives session change notifications. kind is one of
// "created", "loaded", "saved", "changed", "selected", "stale", "deleted",
// "moved".
type Notifier interface {
	Notify(kind string, data map[string]any)
}

// Status is a summary of the session for clients.
type Status struct {
	SessionID     string `json:"session_id"`
	Open          bool   `json:"open"`
	Dirty         bool   `json:"dirty"`
	Location      string `json:"location,omitempty"`
	Title         string `json:"title,omitempty"`
	NodeCount     int    `json:"node_count"`
	CurrentNodeID *int   `json:"current_node_id"`
	// HeadRev is set when the root path's current revision differs from the
	// thread's vcs_rev.
	HeadRev       string `json:"head_rev,omitempty"`
}

// Session is an editing session over a workspace. It is safe for concurrent
// use; callers are serialized.
type Session struct {
	id          string
	store       storage.Provider
	state       index.StateStore
	index       index.ThreadIndex
	logger      *slog.Logger
	notifier    Notifier
	recentLimit int
	revision    func(dir string) (string, error)
	autoReload  bool

	mu       sync.Mutex
	thread   *thread.Thread
	dirty    bool
	location string
	// checksum of the bytes last read from or written to location.
	checksum string
	// headRev is the revision of the root path when the thread was opened.
	headRev string
}

// New creates a session with no open thread.
func New(store storage.Provider, state index.StateStore, opts ...Option) *Session {
	s := &Session{
		id:          ulid.Make().String(),
		store:       store,
		state:       state,
		logger:      slog.Default(),
		recentLimit: index.MaxRecent,
		autoReload:  true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Dirty reports whether the open thread has unsaved changes.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkDirty flags the open thread as modified.
func (s *Session) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// ClearDirty flags the open thread as persisted.
func (s *Session) ClearDirty() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

// Location returns the workspace path the thread was last loaded from or
// saved to, or "" for a thread that was never persisted.
func (s *Session) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// Guard returns ErrUnsavedChanges when the open thread is dirty and the
// caller did not ask to discard it.
func (s *Session) Guard(discard bool) error {
	if !discard && s.Dirty() {
		return apperr.ErrUnsavedChanges
	}
	return nil
}

// Status summarizes the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		SessionID: s.id,
		Dirty:     s.dirty,
		Location:  s.location,
	}
	if s.thread != nil {
		st.Open = true
		st.Title = s.thread.Title
		st.NodeCount = s.thread.Count()
		if s.thread.CurrentNodeID != nil {
			id := *s.thread.CurrentNodeID
			st.CurrentNodeID = &id
		}
		if s.headRev != "" && s.thread.VCSRev != nil && *s.thread.VCSRev != s.headRev {
			st.HeadRev = s.headRev
		}
	}
	return st
}

// View runs fn with read access to the open thread. fn must not keep
// references past its return nor mutate the thread.
func (s *Session) View(fn func(t *thread.Thread) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thread == nil {
		return apperr.ErrNoThread
	}
	return fn(s.thread)
}

// Snapshot returns the open thread in its persisted shape.
func (s *Session) Snapshot() (*thread.Document, error) {
	var doc *thread.Document
	err := s.View(func(t *thread.Thread) error {
		doc = thread.Serialize(t)
		return nil
	})
	return doc, err
}

// NewThreadInput describes a thread to create.
type NewThreadInput struct {
	Title       string
	RootPath    string
	Description *string
}

// NewThread replaces the open thread with an empty one. The new thread has
// no location until it is saved and starts clean.
func (s *Session) NewThread(_ context.Context, in NewThreadInput) error {
	if err := thread.ValidateTitle(in.Title); err != nil {
		return err
	}
	if in.Description != nil {
		if err := thread.ValidateDescription(*in.Description); err != nil {
			return err
		}
	}

	t := thread.New(in.Title)
	if in.RootPath != "" {
		t.RootPath = in.RootPath
	}
	if in.Description != nil {
		d := *in.Description
		t.Description = &d
	}
	head := s.lookupRevision(t.RootPath)
	if head != "" {
		t.VCSRev = &head
	}

	s.mu.Lock()
	s.thread = t
	s.dirty = false
	s.location = ""
	s.checksum = ""
	s.headRev = head
	s.mu.Unlock()

	s.logger.Info("session: thread created", slog.String("title", t.Title))
	s.notify("created", map[string]any{"title": t.Title})
	return nil
}

// Load reads, normalizes and validates the document at location and makes
// it the open thread. On any failure the open thread is left untouched. The
// location is cleaned and given the document extension when it has none.
func (s *Session) Load(_ context.Context, location string) error {
	location = canonical(location)
	s.mu.Lock()
	t, err := s.loadLocked(location)
	var root, recorded string
	if err == nil {
		root = t.RootPath
		if t.VCSRev != nil {
			recorded = *t.VCSRev
		}
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	data := map[string]any{"location": location, "title": t.Title}
	if head := s.lookupRevision(root); head != "" {
		s.mu.Lock()
		if s.thread == t {
			s.headRev = head
		}
		s.mu.Unlock()
		if recorded != "" && recorded != head {
			data["vcs_rev"] = recorded
			data["head_rev"] = head
			s.logger.Info("session: source revision changed",
				slog.String("location", location),
				slog.String("vcs_rev", recorded),
				slog.String("head_rev", head))
		}
	}

	s.remember(location, t.Title)
	s.logger.Info("session: thread loaded", slog.String("location", location))
	s.notify("loaded", data)
	return nil
}

// lookupRevision returns the current revision of root, or "" when revision
// lookup is off, root is the default, or root is not under version control.
func (s *Session) lookupRevision(root string) string {
	if s.revision == nil || root == "" || root == thread.DefaultRootPath {
		return ""
	}
	rev, err := s.revision(root)
	if err != nil {
		s.logger.Debug("session: no revision", slog.String("root", root), slog.String("error", err.Error()))
		return ""
	}
	return rev
}

// Reload re-reads the open thread from its location, dropping unsaved
// changes.
func (s *Session) Reload(ctx context.Context) error {
	loc := s.Location()
	if loc == "" {
		return apperr.ErrNoLocation
	}
	return s.Load(ctx, loc)
}

// Restore reopens the thread recorded as last used, if any, and reselects
// the last selected node when it still exists. It reports whether a thread
// was opened.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	loc, err := s.state.GetState(StateLastLocation)
	if err != nil {
		return false, err
	}
	if loc == "" {
		return false, nil
	}
	if err := s.Load(ctx, loc); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.forget(loc)
		}
		return false, err
	}

	raw, err := s.state.GetState(StateLastNodeID)
	if err != nil || raw == "" {
		return true, nil
	}
	id, convErr := strconv.Atoi(raw)
	if convErr != nil {
		return true, nil
	}
	s.mu.Lock()
	if s.thread != nil && s.thread.FindByID(id) != nil {
		s.thread.CurrentNodeID = &id
	}
	s.mu.Unlock()
	return true, nil
}

// Save writes the open thread to location, or to the location it was last
// loaded from or saved to when location is empty. A location without the
// document extension gets one. On failure the dirty flag is unchanged.
func (s *Session) Save(_ context.Context, location string) (string, error) {
	s.mu.Lock()
	if s.thread == nil {
		s.mu.Unlock()
		return "", apperr.ErrNoThread
	}
	target := location
	if target == "" {
		target = s.location
	}
	if target == "" {
		s.mu.Unlock()
		return "", apperr.ErrNoLocation
	}
	target = canonical(target)
	if err := thread.Validate(s.thread); err != nil {
		s.mu.Unlock()
		return "", err
	}
	data, err := thread.Marshal(s.thread)
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.store.Write(target, data); err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("session: write %s: %w", target, err)
	}
	s.location = target
	s.checksum = storage.Checksum(data)
	s.dirty = false
	title := s.thread.Title
	s.mu.Unlock()

	if s.index != nil {
		if err := index.IndexFile(s.index, target, data); err != nil {
			s.logger.Warn("session: index after save failed", slog.String("location", target), slog.String("error", err.Error()))
		}
	}
	s.remember(target, title)
	s.logger.Info("session: thread saved", slog.String("location", target))
	s.notify("saved", map[string]any{"location": target})
	return target, nil
}

// Recent returns the recent-threads list, most recent first.
func (s *Session) Recent() ([]models.RecentThread, error) {
	return s.state.Recent()
}

// loadLocked must be called with s.mu held.
func (s *Session) loadLocked(location string) (*thread.Thread, error) {
	data, err := s.store.Read(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session: load %s: %w", location, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("session: load %s: %w", location, err)
	}
	t, err := thread.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := thread.Validate(t); err != nil {
		return nil, err
	}
	s.thread = t
	s.location = location
	s.checksum = storage.Checksum(data)
	s.dirty = false
	s.headRev = ""
	return t, nil
}

func (s *Session) remember(location, title string) {
	if err := s.state.TouchRecent(location, title, s.recentLimit); err != nil {
		s.logger.Warn("session: touch recent failed", slog.String("location", location), slog.String("error", err.Error()))
	}
	if err := s.state.SetState(StateLastLocation, location); err != nil {
		s.logger.Warn("session: save last location failed", slog.String("error", err.Error()))
	}
}

func (s *Session) forget(location string) {
	if err := s.state.ForgetRecent(location); err != nil {
		s.logger.Warn("session: forget recent failed", slog.String("location", location), slog.String("error", err.Error()))
	}
	if err := s.state.SetState(StateLastLocation, ""); err != nil {
		s.logger.Warn("session: clear last location failed", slog.String("error", err.Error()))
	}
}

func (s *Session) notify(kind string, data map[string]any) {
	if s.notifier != nil {
		s.notifier.Notify(kind, data)
	}
}
