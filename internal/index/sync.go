package index

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/ariadna/internal/storage"
	"github.com/starford/ariadna/internal/thread"
)

// SyncStats counts what a Sync did.
type SyncStats struct {
	Indexed int // new or changed documents written to the index
	Removed int // index entries whose file is gone
	Failed  int // documents that could not be read or decoded
}

// Sync brings the index in line with the workspace, comparing checksums so
// unchanged documents are not re-read. Per-file failures are logged and
// counted; only listing the workspace or the index is fatal.
func Sync(db ThreadIndex, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats
	changed, gone, err := pendingChanges(db, store)
	if err != nil {
		return stats, err
	}

	for _, p := range changed {
		data, err := store.Read(p)
		if err == nil {
			err = IndexFile(db, p, data)
		}
		if err != nil {
			stats.Failed++
			logger.Warn("sync: skipped", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Indexed++
	}
	for _, p := range gone {
		if err := db.DeleteThread(p); err != nil {
			stats.Failed++
			logger.Warn("sync: unindex failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
	}

	logger.Info("sync: done",
		slog.Int("indexed", stats.Indexed),
		slog.Int("removed", stats.Removed),
		slog.Int("failed", stats.Failed))
	return stats, nil
}

// pendingChanges lists documents whose checksum differs from the index
// (including new ones) and indexed paths with no file left.
func pendingChanges(db ThreadIndex, store storage.Provider) (changed, gone []string, err error) {
	files, err := store.List("")
	if err != nil {
		return nil, nil, fmt.Errorf("index: list workspace: %w", err)
	}
	indexed, err := db.AllChecksums()
	if err != nil {
		return nil, nil, fmt.Errorf("index: list checksums: %w", err)
	}

	for _, f := range files {
		if indexed[f.Path] != f.Checksum {
			changed = append(changed, f.Path)
		}
		delete(indexed, f.Path)
	}
	for p := range indexed {
		gone = append(gone, p)
	}
	sort.Strings(gone)
	return changed, gone, nil
}

// IndexFile decodes a thread document and upserts it. Documents that fail
// validation are still indexed so they show up in listings.
func IndexFile(db ThreadIndex, path string, data []byte) error {
	t, err := thread.Decode(data)
	if err != nil {
		return err
	}
	row := ThreadRow{
		Path:     path,
		Title:    t.Title,
		Checksum: storage.Checksum(data),
	}
	return db.UpsertThread(row, NodeRows(t))
}

// NodeRows projects every node of t into a searchable row. Source paths are
// resolved against the thread root so references match across threads.
func NodeRows(t *thread.Thread) []NodeRow {
	var rows []NodeRow
	seen := make(map[int]bool)
	t.Walk(func(n *thread.Node, _ int) bool {
		if !n.HasValidID() || seen[n.ID] {
			return true
		}
		seen[n.ID] = true
		row := NodeRow{
			NodeID:   n.ID,
			Caption:  n.Caption,
			Comments: strings.Join(n.Comments, "\n"),
		}
		if n.SrcLink != nil && n.SrcLink.Path != "" {
			row.SrcPath = thread.Resolve(n.SrcLink, t.RootPath).Path
			row.LineNum = n.SrcLink.LineNum
		}
		rows = append(rows, row)
		return true
	})
	return rows
}
