// Package apperr holds sentinel errors shared by the session, API and MCP
// layers. Match them with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrNoThread is returned by session operations when no thread is open.
	ErrNoThread = errors.New("no thread is open")
	// ErrNoLocation is returned by Save when the thread has never been
	// saved and no location was given.
	ErrNoLocation = errors.New("thread has no location")
	// ErrUnsavedChanges guards operations that would discard a dirty thread.
	ErrUnsavedChanges = errors.New("thread has unsaved changes")
	// ErrInvalidMove is returned when a move would put a node inside its
	// own subtree.
	ErrInvalidMove = errors.New("node cannot be moved into its own subtree")
)
