package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/ariadna/internal/apperr"
	"github.com/starford/ariadna/internal/index"
	"github.com/starford/ariadna/internal/storage"
)

// cleanPath is the single spelling of a workspace path the session stores
// and compares: slash separated, without "." segments or doubled slashes.
func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(filepath.ToSlash(p))
}

// canonical is cleanPath plus the document extension.
func canonical(location string) string {
	if location == "" {
		return ""
	}
	return withExt(cleanPath(location))
}

func withExt(location string) string {
	if strings.HasSuffix(location, storage.ThreadExt) {
		return location
	}
	return location + storage.ThreadExt
}

// DeleteFile removes a thread document from the workspace and the index.
// When it is the open thread's file, the thread stays open but detached:
// it has no location and counts as unsaved.
func (s *Session) DeleteFile(_ context.Context, location string) error {
	location = canonical(location)
	if err := s.store.Delete(location); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("session: delete %s: %w", location, apperr.ErrNotFound)
		}
		return fmt.Errorf("session: delete %s: %w", location, err)
	}

	s.mu.Lock()
	open := s.thread != nil && s.location == location
	if open {
		s.location = ""
		s.checksum = ""
		s.dirty = true
	}
	s.mu.Unlock()

	if s.index != nil {
		if err := s.index.DeleteThread(location); err != nil {
			s.logger.Warn("session: unindex failed", slog.String("location", location), slog.String("error", err.Error()))
		}
	}
	if open {
		s.forget(location)
	} else if err := s.state.ForgetRecent(location); err != nil {
		s.logger.Warn("session: forget recent failed", slog.String("location", location), slog.String("error", err.Error()))
	}

	s.logger.Info("session: thread file deleted", slog.String("location", location), slog.Bool("open", open))
	s.notify("deleted", map[string]any{"location": location, "open": open})
	return nil
}

// MoveFile renames a thread document inside the workspace. The target must
// not exist. The open thread follows its file.
func (s *Session) MoveFile(_ context.Context, from, to string) (string, error) {
	from, to = canonical(from), canonical(to)
	if from == to {
		return to, nil
	}
	if err := s.store.Move(from, to); err != nil {
		switch {
		case errors.Is(err, fs.ErrExist):
			return "", fmt.Errorf("session: move to %s: %w", to, apperr.ErrAlreadyExists)
		case errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("session: move %s: %w", from, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("session: move %s: %w", from, err)
	}

	s.mu.Lock()
	open := s.thread != nil && s.location == from
	title := ""
	if open {
		s.location = to
		title = s.thread.Title
	}
	s.mu.Unlock()

	if s.index != nil {
		s.reindexMoved(from, to)
	}
	if err := s.state.ForgetRecent(from); err != nil {
		s.logger.Warn("session: forget recent failed", slog.String("location", from), slog.String("error", err.Error()))
	}
	if open {
		s.remember(to, title)
	}

	s.logger.Info("session: thread file moved", slog.String("from", from), slog.String("to", to))
	s.notify("moved", map[string]any{"from": from, "to": to, "open": open})
	return to, nil
}

func (s *Session) reindexMoved(from, to string) {
	if err := s.index.DeleteThread(from); err != nil {
		s.logger.Warn("session: unindex failed", slog.String("location", from), slog.String("error", err.Error()))
	}
	data, err := s.store.Read(to)
	if err == nil {
		err = index.IndexFile(s.index, to, data)
	}
	if err != nil {
		s.logger.Warn("session: index after move failed", slog.String("location", to), slog.String("error", err.Error()))
	}
}
