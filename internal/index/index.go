package index

import "github.com/starford/ariadna/internal/models"

// ThreadIndex is the catalog and search side of the index.
type ThreadIndex interface {
	UpsertThread(t ThreadRow, nodes []NodeRow) error
	DeleteThread(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	ListThreads() ([]models.ThreadSummary, error)
	References(srcPath string) ([]models.NodeRef, error)
	Search(query string, limit int) ([]models.NodeRef, error)
	Close() error
}

// StateStore keeps the recent-threads list and last-session values.
type StateStore interface {
	TouchRecent(location, title string, limit int) error
	Recent() ([]models.RecentThread, error)
	ForgetRecent(location string) error
	GetState(key string) (string, error)
	SetState(key, value string) error
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ ThreadIndex = (*DB)(nil)
	_ StateStore  = (*DB)(nil)
)
