package session

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/starford/ariadna/internal/storage"
)

// HandleFileEvent reacts to a change of a workspace file made outside the
// session. Only events for the open thread's location matter. Writes made by
// Save are recognised by checksum and ignored. A clean thread is reloaded
// when auto-reload is on; otherwise clients are told the thread is stale.
func (s *Session) HandleFileEvent(kind, path string) {
	path = cleanPath(path)
	s.mu.Lock()
	if s.thread == nil || path != s.location {
		s.mu.Unlock()
		return
	}

	if kind == "deleted" {
		s.mu.Unlock()
		s.logger.Info("session: open thread deleted on disk", slog.String("location", path))
		s.notify("stale", map[string]any{"location": path, "reason": "deleted"})
		return
	}

	data, err := s.store.Read(path)
	if err != nil {
		s.mu.Unlock()
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("session: read changed file failed", slog.String("location", path), slog.String("error", err.Error()))
		}
		return
	}
	if storage.Checksum(data) == s.checksum {
		s.mu.Unlock()
		return
	}

	if s.dirty || !s.autoReload {
		s.mu.Unlock()
		s.notify("stale", map[string]any{"location": path, "reason": "modified"})
		return
	}

	_, err = s.loadLocked(path)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("session: reload failed", slog.String("location", path), slog.String("error", err.Error()))
		s.notify("stale", map[string]any{"location": path, "reason": "invalid", "error": err.Error()})
		return
	}
	s.logger.Info("session: reloaded after external change", slog.String("location", path))
	s.notify("loaded", map[string]any{"location": path, "external": true})
}
