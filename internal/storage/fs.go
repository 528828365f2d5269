package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/ariadna/internal/models"
)

// Temp files are hidden so IsThreadFile, List and the watcher skip them.
const tempPrefix = ".ariadna-tmp-"

// ErrOutsideWorkspace is returned for paths that are absolute or climb out
// of the workspace root.
var ErrOutsideWorkspace = errors.New("storage: path outside workspace")

// FS is a Provider over a directory on the local disk.
type FS struct {
	root string
}

// NewFS opens an existing directory as a workspace.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	switch info, err := os.Stat(abs); {
	case err != nil:
		return nil, fmt.Errorf("storage: open workspace: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: workspace %s is not a directory", abs)
	}
	return &FS{root: abs}, nil
}

func (f *FS) Root() string { return f.root }

// resolve maps a workspace path to an absolute one. "" is the root itself.
func (f *FS) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, rel)
	}
	cleaned := filepath.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, rel)
	}
	return filepath.Join(f.root, cleaned), nil
}

// IsThreadFile reports whether name looks like a thread document. Hidden
// files, which include in-flight temp files, are skipped.
func IsThreadFile(name string) bool {
	base := filepath.Base(name)
	return filepath.Ext(base) == ThreadExt && base[0] != '.'
}

// List returns path, checksum and mtime of every thread document under dir.
// Hidden directories are not entered.
func (f *FS) List(dir string) ([]models.ThreadFile, error) {
	start, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}

	var files []models.ThreadFile
	visit := func(p string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir():
			if p != start && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		case !IsThreadFile(p):
			return nil
		}
		tf, err := f.describe(p, d)
		if err != nil {
			return err
		}
		files = append(files, tf)
		return nil
	}
	if err := filepath.WalkDir(start, visit); err != nil {
		return nil, fmt.Errorf("storage: list %q: %w", dir, err)
	}
	return files, nil
}

func (f *FS) describe(abs string, d fs.DirEntry) (models.ThreadFile, error) {
	info, err := d.Info()
	if err != nil {
		return models.ThreadFile{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return models.ThreadFile{}, err
	}
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return models.ThreadFile{}, err
	}
	return models.ThreadFile{Path: rel, Checksum: Checksum(data), UpdatedAt: info.ModTime()}, nil
}

func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write stages content in a synced temp file next to path and renames it
// over path, so readers see either the old or the new document.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	tmp, err := stage(filepath.Dir(abs), content)
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}

// stage writes content to a new temp file in dir and returns its name. On
// error nothing is left behind.
func stage(dir string, content []byte) (name string, err error) {
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(content); err != nil {
		return "", err
	}
	if err = tmp.Sync(); err != nil {
		return "", err
	}
	if err = tmp.Close(); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}

func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// Move renames oldPath to newPath, creating parent directories. An existing
// newPath is never replaced; the error wraps fs.ErrExist.
func (f *FS) Move(oldPath, newPath string) error {
	from, err := f.resolve(oldPath)
	if err != nil {
		return err
	}
	to, err := f.resolve(newPath)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(to); err == nil {
		return fmt.Errorf("storage: move to %s: %w", newPath, fs.ErrExist)
	}
	if _, err := os.Stat(from); err != nil {
		return fmt.Errorf("storage: move %s: %w", oldPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("storage: move %s: %w", oldPath, err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("storage: move %s: %w", oldPath, err)
	}
	return nil
}

// Checksum is the hex SHA-256 of data. The index and the session compare
// checksums to tell their own writes from external edits.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
