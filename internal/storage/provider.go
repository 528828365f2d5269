// Package storage defines the workspace file abstraction for thread documents.
package storage

import "github.com/starford/ariadna/internal/models"

// ThreadExt is the file extension of thread documents.
const ThreadExt = ".json"

// Provider is the interface for workspace file operations. Paths are
// relative to the workspace root.
type Provider interface {
	// Root returns the absolute workspace directory.
	Root() string
	// List returns metadata for every thread document under dir.
	List(dir string) ([]models.ThreadFile, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
