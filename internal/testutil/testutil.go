// Package testutil provides shared test helpers for setting up workspaces,
// databases and thread documents.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/ariadna/internal/index"
	"github.com/starford/ariadna/internal/storage"
	"github.com/starford/ariadna/internal/thread"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ariadna-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkspace creates a temporary workspace directory with a storage.FS.
func TestWorkspace(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// SampleThread builds a small valid thread rooted at root:
//
//	1 "entry"  main.go:3
//	  2 "parse"
//	3 "exit"
func SampleThread(root string) *thread.Thread {
	th := thread.New("sample walk")
	th.RootPath = root

	entry := th.CreateNode(nil)
	entry.Caption = "entry"
	entry.SrcLink = &thread.SrcLink{Path: "main.go", LineNum: 3, LineContent: "func main() {"}
	entry.Comments = []string{"starts here"}
	th.AppendChild(nil, entry)

	parse := th.CreateNode(nil)
	parse.Caption = "parse"
	th.AppendChild(entry, parse)

	exit := th.CreateNode(nil)
	exit.Caption = "exit"
	th.AppendChild(nil, exit)
	return th
}

// WriteThread stores th at path in the workspace.
func WriteThread(t *testing.T, store storage.Provider, path string, th *thread.Thread) {
	t.Helper()
	data, err := thread.Marshal(th)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write(path, data); err != nil {
		t.Fatal(err)
	}
}
