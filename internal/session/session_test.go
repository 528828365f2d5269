package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ariadna/internal/apperr"
	"github.com/starford/ariadna/internal/models"
	"github.com/starford/ariadna/internal/storage"
	"github.com/starford/ariadna/internal/thread"
)

type memState struct {
	mu     sync.Mutex
	recent []models.RecentThread
	kv     map[string]string
}

func newMemState() *memState { return &memState{kv: map[string]string{}} }

func (m *memState) TouchRecent(location, title string, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.RecentThread{{Location: location, Title: title}}
	for _, r := range m.recent {
		if r.Location != location {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	m.recent = out
	return nil
}

func (m *memState) Recent() ([]models.RecentThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RecentThread{}, m.recent...), nil
}

func (m *memState) ForgetRecent(location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RecentThread
	for _, r := range m.recent {
		if r.Location != location {
			out = append(out, r)
		}
	}
	m.recent = out
	return nil
}

func (m *memState) GetState(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kv[key], nil
}

func (m *memState) SetState(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == "" {
		delete(m.kv, key)
	} else {
		m.kv[key] = value
	}
	return nil
}

type recorder struct {
	mu    sync.Mutex
	kinds []string
}

func (r *recorder) Notify(kind string, _ map[string]any) {
	r.mu.Lock()
	r.kinds = append(r.kinds, kind)
	r.mu.Unlock()
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.kinds) == 0 {
		return ""
	}
	return r.kinds[len(r.kinds)-1]
}

func setup(t *testing.T, opts ...Option) (*Session, *storage.FS, *memState, *recorder) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	state := newMemState()
	rec := &recorder{}
	s := New(store, state, append([]Option{WithNotifier(rec)}, opts...)...)
	return s, store, state, rec
}

const doc = `{
  "title": "cache walk",
  "rootPath": "/src",
  "childs": [
    {"id": 1, "caption": "entry", "srcLink": {"path": "cache.go", "lineNum": 10, "lineContent": "func Get() {"},
     "childs": [{"id": 2, "parentId": 1, "caption": "lookup"}]},
    {"id": 3, "caption": "evict"}
  ]
}`

func TestNoThread(t *testing.T) {
	s, _, _, _ := setup(t)

	_, err := s.Snapshot()
	assert.ErrorIs(t, err, apperr.ErrNoThread)
	_, err = s.AddNode(nil, NodeInput{Caption: "x"})
	assert.ErrorIs(t, err, apperr.ErrNoThread)
	_, err = s.Save(context.Background(), "a.json")
	assert.ErrorIs(t, err, apperr.ErrNoThread)
	assert.ErrorIs(t, s.Select(nil), apperr.ErrNoThread)
	assert.False(t, s.Status().Open)
	assert.NotEmpty(t, s.ID())
}

func TestNewThreadStartsClean(t *testing.T) {
	s, _, _, rec := setup(t, WithRevision(func(dir string) (string, error) {
		if dir == "/repo" {
			return "abc123", nil
		}
		return "", errors.New("not a repository")
	}))
	ctx := context.Background()

	require.NoError(t, s.NewThread(ctx, NewThreadInput{Title: "T", RootPath: "/repo"}))
	assert.False(t, s.Dirty())
	assert.Equal(t, "", s.Location())
	assert.Equal(t, "created", rec.last())

	doc, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "/repo", doc.RootPath)
	require.NotNil(t, doc.VCSRev)
	assert.Equal(t, "abc123", *doc.VCSRev)

	require.NoError(t, s.NewThread(ctx, NewThreadInput{Title: "U", RootPath: "/elsewhere"}))
	doc, err = s.Snapshot()
	require.NoError(t, err)
	assert.Nil(t, doc.VCSRev)

	var ve *thread.ValidationError
	require.True(t, errors.As(s.NewThread(ctx, NewThreadInput{}), &ve))
	assert.Equal(t, "title", ve.Field)
	doc, err = s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "U", doc.Title, "a rejected thread does not replace the open one")
}

func TestLoadFlagsRevisionChange(t *testing.T) {
	head := "def456"
	s, store, _, _ := setup(t, WithRevision(func(string) (string, error) { return head, nil }))
	ctx := context.Background()
	withRev := strings.Replace(doc, `"rootPath": "/src",`, `"rootPath": "/src", "vcs_rev": "abc123",`, 1)
	require.NoError(t, store.Write("walk.json", []byte(withRev)))

	require.NoError(t, s.Load(ctx, "walk.json"))
	assert.Equal(t, "def456", s.Status().HeadRev)

	head = "abc123"
	require.NoError(t, s.Load(ctx, "walk.json"))
	assert.Empty(t, s.Status().HeadRev)

	require.NoError(t, s.UpdateThread(ThreadPatch{VCSRev: &head}))
	assert.Empty(t, s.Status().HeadRev)
}

func TestLoadAndSave(t *testing.T) {
	s, store, state, rec := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Write("walk.json", []byte(doc)))

	require.NoError(t, s.Load(ctx, "walk.json"))
	assert.False(t, s.Dirty())
	assert.Equal(t, "walk.json", s.Location())
	assert.Equal(t, "loaded", rec.last())
	st := s.Status()
	assert.Equal(t, 3, st.NodeCount)
	assert.Equal(t, "cache walk", st.Title)

	_, err := s.AddComment(3, "cold path")
	require.NoError(t, err)
	assert.True(t, s.Dirty())

	loc, err := s.Save(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "walk.json", loc)
	assert.False(t, s.Dirty())
	assert.Equal(t, "saved", rec.last())

	data, err := store.Read("walk.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"root_path": "/src"`)
	assert.Contains(t, string(data), "cold path")

	loc, err = s.Save(ctx, "copy")
	require.NoError(t, err)
	assert.Equal(t, "copy.json", loc)
	assert.Equal(t, "copy.json", s.Location())

	recent, err := s.Recent()
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "copy.json", recent[0].Location)
	assert.Equal(t, "copy.json", state.kv[StateLastLocation])
}

func TestLoadFailuresKeepCurrentThread(t *testing.T) {
	s, store, _, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Write("good.json", []byte(doc)))
	require.NoError(t, store.Write("broken.json", []byte(`{"title": `)))
	require.NoError(t, store.Write("invalid.json", []byte(`{"title": ""}`)))
	require.NoError(t, s.Load(ctx, "good.json"))
	_, err := s.AddNode(nil, NodeInput{Caption: "pending"})
	require.NoError(t, err)

	var pe *thread.ParseError
	assert.True(t, errors.As(s.Load(ctx, "broken.json"), &pe))

	var ve *thread.ValidationError
	require.True(t, errors.As(s.Load(ctx, "invalid.json"), &ve))
	assert.Equal(t, "title", ve.Field)

	assert.ErrorIs(t, s.Load(ctx, "absent.json"), apperr.ErrNotFound)

	assert.Equal(t, "good.json", s.Location())
	assert.True(t, s.Dirty())
	assert.Equal(t, 4, s.Status().NodeCount)
}

func TestSaveWithoutLocation(t *testing.T) {
	s, _, _, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, s.NewThread(ctx, NewThreadInput{Title: "T"}))
	s.MarkDirty()

	_, err := s.Save(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrNoLocation)
	assert.True(t, s.Dirty())
}

func TestSaveWriteFailureKeepsDirty(t *testing.T) {
	s, _, _, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, s.NewThread(ctx, NewThreadInput{Title: "T"}))
	s.MarkDirty()

	_, err := s.Save(ctx, "../outside.json")
	assert.Error(t, err)
	assert.True(t, s.Dirty())
	assert.Equal(t, "", s.Location())
}

func TestGuard(t *testing.T) {
	s, _, _, _ := setup(t)
	require.NoError(t, s.NewThread(context.Background(), NewThreadInput{Title: "T"}))

	assert.NoError(t, s.Guard(false))
	s.MarkDirty()
	assert.ErrorIs(t, s.Guard(false), apperr.ErrUnsavedChanges)
	assert.NoError(t, s.Guard(true))
	s.ClearDirty()
	assert.NoError(t, s.Guard(false))
}

func TestRestore(t *testing.T) {
	s, store, state, _ := setup(t)
	ctx := context.Background()

	ok, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Write("walk.json", []byte(doc)))
	require.NoError(t, s.Load(ctx, "walk.json"))
	id := 2
	require.NoError(t, s.Select(&id))

	next := New(store, state)
	ok, err = next.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	st := next.Status()
	assert.Equal(t, "walk.json", st.Location)
	require.NotNil(t, st.CurrentNodeID)
	assert.Equal(t, 2, *st.CurrentNodeID)
	assert.False(t, next.Dirty())

	require.NoError(t, store.Delete("walk.json"))
	ok, err = New(store, state).Restore(ctx)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.False(t, ok)
	assert.Empty(t, state.kv[StateLastLocation])
	recent, _ := state.Recent()
	assert.Empty(t, recent)
}

func TestRecentLimit(t *testing.T) {
	s, store, _, _ := setup(t, WithRecentLimit(2))
	ctx := context.Background()
	for _, name := range []string{"a.json", "b.json", "c.json"} {
		require.NoError(t, store.Write(name, []byte(doc)))
		require.NoError(t, s.Load(ctx, name))
	}
	recent, err := s.Recent()
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c.json", recent[0].Location)
	assert.Equal(t, "b.json", recent[1].Location)
}

func TestHandleFileEvent(t *testing.T) {
	s, store, _, rec := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Write("walk.json", []byte(doc)))
	require.NoError(t, s.Load(ctx, "walk.json"))

	// own write
	_, err := s.Save(ctx, "")
	require.NoError(t, err)
	s.HandleFileEvent("updated", "walk.json")
	assert.Equal(t, "saved", rec.last())

	// other files are ignored
	s.HandleFileEvent("updated", "other.json")
	assert.Equal(t, "saved", rec.last())

	// clean thread reloads
	edited := strings.Replace(doc, "cache walk", "cache walk v2", 1)
	require.NoError(t, store.Write("walk.json", []byte(edited)))
	s.HandleFileEvent("updated", "walk.json")
	assert.Equal(t, "loaded", rec.last())
	assert.Equal(t, "cache walk v2", s.Status().Title)

	// dirty thread is only flagged
	s.MarkDirty()
	require.NoError(t, store.Write("walk.json", []byte(doc)))
	s.HandleFileEvent("updated", "walk.json")
	assert.Equal(t, "stale", rec.last())
	assert.Equal(t, "cache walk v2", s.Status().Title)

	s.HandleFileEvent("deleted", "walk.json")
	assert.Equal(t, "stale", rec.last())
	assert.True(t, s.Status().Open)
}

func TestHandleFileEventAutoReloadOff(t *testing.T) {
	s, store, _, rec := setup(t, WithAutoReload(false))
	ctx := context.Background()
	require.NoError(t, store.Write("walk.json", []byte(doc)))
	require.NoError(t, s.Load(ctx, "walk.json"))

	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "walk.json"), []byte(`{"title":"x"}`), 0o644))
	s.HandleFileEvent("updated", "walk.json")
	assert.Equal(t, "stale", rec.last())
	assert.Equal(t, "cache walk", s.Status().Title)
}
