package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ariadna/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// settleDelay is how long a path must stay quiet before it is re-read.
// Editors and our own atomic writes produce bursts of events per save.
const settleDelay = 150 * time.Millisecond

type watcher struct {
	db     ThreadIndex
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback
	fsw    *fsnotify.Watcher

	// pending holds workspace-relative thread paths touched since the last
	// flush. reconcile is set when a directory moved away.
	pending   map[string]struct{}
	reconcile bool
	timer     *time.Timer
}

// Watch runs an fsnotify watcher on the workspace root until ctx is
// cancelled, keeping the index in step with thread files edited outside the
// application. cb (if non-nil) runs for every file whose content changed.
//
// Events are coalesced per path and resolved against the disk once the path
// settles, so a burst of writes yields one callback and a file whose checksum
// matches the index (such as one the session just saved) yields none.
func Watch(ctx context.Context, db ThreadIndex, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	w := &watcher{
		db:      db,
		store:   store,
		root:    root,
		logger:  logger,
		cb:      cb,
		fsw:     fsw,
		pending: make(map[string]struct{}),
	}
	if err := w.addTree(root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))
	return w.loop(ctx)
}

func (w *watcher) loop(ctx context.Context) error {
	w.timer = time.NewTimer(settleDelay)
	w.timer.Stop()
	defer w.timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case <-w.timer.C:
			w.flush()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were dropped; only a full pass is reliable.
				w.reconcile = true
				w.timer.Reset(settleDelay)
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			w.queueTree(ev.Name)
			w.timer.Reset(settleDelay)
			return
		}
	}

	if !storage.IsThreadFile(ev.Name) {
		// A directory moved or removed takes its documents along without
		// per-file events, so any such removal triggers a full pass.
		if ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
			w.reconcile = true
			w.timer.Reset(settleDelay)
		}
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	w.pending[rel] = struct{}{}
	w.timer.Reset(settleDelay)
}

// flush resolves every settled path against the disk.
func (w *watcher) flush() {
	if w.reconcile {
		w.reconcile = false
		w.reconcileAll()
	}
	for rel := range w.pending {
		delete(w.pending, rel)
		w.sync(rel)
	}
}

// sync brings one path's index entry in line with the file on disk.
func (w *watcher) sync(rel string) {
	indexed, err := w.db.GetChecksum(rel)
	if err != nil {
		w.logger.Warn("watcher: lookup failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	data, err := w.store.Read(rel)
	if errors.Is(err, fs.ErrNotExist) {
		if indexed == "" {
			return
		}
		if err := w.db.DeleteThread(rel); err != nil {
			w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		w.logger.Debug("watcher: deleted", slog.String("path", rel))
		w.emit("deleted", rel)
		return
	}
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	if storage.Checksum(data) == indexed {
		return
	}
	kind := "updated"
	if indexed == "" {
		kind = "created"
	}
	if err := IndexFile(w.db, rel, data); err != nil {
		// The file changed even if it no longer parses; listeners decide
		// what a broken document means to them.
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
	} else {
		w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	}
	w.emit(kind, rel)
}

// reconcileAll queues every path where the workspace and the index disagree.
func (w *watcher) reconcileAll() {
	changed, gone, err := pendingChanges(w.db, w.store)
	if err != nil {
		w.logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
		return
	}
	for _, p := range append(changed, gone...) {
		w.pending[p] = struct{}{}
	}
}

// queueTree marks every thread file under dir as pending.
func (w *watcher) queueTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsThreadFile(path) {
			return nil
		}
		if rel, relErr := filepath.Rel(w.root, path); relErr == nil {
			w.pending[rel] = struct{}{}
		}
		return nil
	})
}

// addTree adds dir and all its subdirectories to the watch list. Hidden
// directories are skipped.
func (w *watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *watcher) emit(kind, rel string) {
	if w.cb != nil {
		w.cb(kind, rel)
	}
}
