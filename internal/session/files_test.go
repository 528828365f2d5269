package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ariadna/internal/apperr"
)

func TestDeleteFile(t *testing.T) {
	s, store, state, rec := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Write("walk.json", []byte(doc)))
	require.NoError(t, store.Write("other.json", []byte(doc)))
	require.NoError(t, s.Load(ctx, "other.json"))
	require.NoError(t, s.Load(ctx, "walk.json"))

	require.NoError(t, s.DeleteFile(ctx, "other"))
	assert.Equal(t, "deleted", rec.last())
	assert.Equal(t, "walk.json", s.Location(), "deleting another file leaves the open thread alone")
	assert.False(t, s.Dirty())
	recent, err := s.Recent()
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "walk.json", recent[0].Location)

	require.NoError(t, s.DeleteFile(ctx, "walk.json"))
	assert.Equal(t, "", s.Location())
	assert.True(t, s.Dirty(), "a detached thread has unsaved content")
	assert.Empty(t, state.kv[StateLastLocation])
	_, err = s.Snapshot()
	require.NoError(t, err, "the thread stays open")

	_, err = store.Read("walk.json")
	assert.Error(t, err)
	assert.ErrorIs(t, s.DeleteFile(ctx, "walk.json"), apperr.ErrNotFound)
}

func TestMoveFile(t *testing.T) {
	s, store, state, rec := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Write("walk.json", []byte(doc)))
	require.NoError(t, store.Write("taken.json", []byte(doc)))
	require.NoError(t, s.Load(ctx, "walk.json"))

	to, err := s.MoveFile(ctx, "walk.json", "archive/walk")
	require.NoError(t, err)
	assert.Equal(t, "archive/walk.json", to)
	assert.Equal(t, "moved", rec.last())
	assert.Equal(t, "archive/walk.json", s.Location())
	assert.False(t, s.Dirty())
	assert.Equal(t, "archive/walk.json", state.kv[StateLastLocation])

	recent, err := s.Recent()
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "archive/walk.json", recent[0].Location)

	_, err = s.MoveFile(ctx, "archive/walk.json", "taken.json")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
	_, err = s.MoveFile(ctx, "missing.json", "elsewhere.json")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// The open thread saves to its new location.
	_, err = s.AddComment(3, "moved")
	require.NoError(t, err)
	loc, err := s.Save(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "archive/walk.json", loc)
}

func TestLocationSpellings(t *testing.T) {
	s, store, _, rec := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Write("walk.json", []byte(doc)))

	require.NoError(t, s.Load(ctx, "./walk.json"))
	assert.Equal(t, "walk.json", s.Location())
	require.NoError(t, s.Load(ctx, "sub/../walk"))
	assert.Equal(t, "walk.json", s.Location())
	recent, err := s.Recent()
	require.NoError(t, err)
	require.Len(t, recent, 1, "one recent entry per file however it is spelled")

	edited := strings.Replace(doc, "cache walk", "renamed walk", 1)
	require.NoError(t, store.Write("walk.json", []byte(edited)))
	s.HandleFileEvent("updated", "./walk.json")
	assert.Equal(t, "loaded", rec.last())
	assert.Equal(t, "renamed walk", s.Status().Title)

	loc, err := s.Save(ctx, "./walk")
	require.NoError(t, err)
	assert.Equal(t, "walk.json", loc)
}

func TestDeleteFileDetachesDifferentlySpelledOpenThread(t *testing.T) {
	s, store, _, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Write("walk.json", []byte(doc)))
	require.NoError(t, s.Load(ctx, "./walk.json"))

	require.NoError(t, s.DeleteFile(ctx, "walk.json"))
	assert.Equal(t, "", s.Location())
	assert.True(t, s.Dirty())
	assert.ErrorIs(t, s.Guard(false), apperr.ErrUnsavedChanges)
}

func TestMoveFileFollowsDifferentlySpelledOpenThread(t *testing.T) {
	s, store, _, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Write("walk.json", []byte(doc)))
	require.NoError(t, s.Load(ctx, "walk.json"))

	to, err := s.MoveFile(ctx, "./walk.json", "archive//walk")
	require.NoError(t, err)
	assert.Equal(t, "archive/walk.json", to)
	assert.Equal(t, "archive/walk.json", s.Location())
}
