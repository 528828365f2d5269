package session

import (
	"log/slog"

	"github.com/starford/ariadna/internal/index"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithNotifier sets the receiver of change notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithRecentLimit bounds the recent-threads list. Values outside
// 1..index.MaxRecent fall back to index.MaxRecent.
func WithRecentLimit(n int) Option {
	return func(s *Session) {
		if n < 1 || n > index.MaxRecent {
			n = index.MaxRecent
		}
		s.recentLimit = n
	}
}

// WithRevision sets the lookup used to fill vcs_rev for new threads.
// Without it new threads start with a null revision.
func WithRevision(fn func(dir string) (string, error)) Option {
	return func(s *Session) { s.revision = fn }
}

// WithIndex re-indexes the document after every save so search results do
// not wait for the file watcher.
func WithIndex(db index.ThreadIndex) Option {
	return func(s *Session) { s.index = db }
}

// WithAutoReload controls whether a clean thread is reloaded when its file
// changes on disk. Enabled by default.
func WithAutoReload(on bool) Option {
	return func(s *Session) { s.autoReload = on }
}
