package drift

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ariadna/internal/thread"
)

const source = `package cache

func Get(k string) {
	lookup(k)
}

func lookup(k string) {}
`

func linked(th *thread.Thread, path string, line int, content string) *thread.Node {
	n := th.CreateNode(nil)
	n.SrcLink = &thread.SrcLink{Path: path, LineNum: line, LineContent: content}
	th.AppendChild(nil, n)
	return n
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cache.go"), []byte(source), 0o644))

	th := thread.New("drift")
	th.RootPath = dir
	ok := linked(th, "cache.go", 3, "func Get(k string) {")
	moved := linked(th, "cache.go", 2, "lookup(k)")
	changed := linked(th, "cache.go", 1, "package store")
	gone := linked(th, "missing.go", 1, "x")
	past := linked(th, filepath.Join(dir, "cache.go"), 99, "nothing like it")
	unset := linked(th, "cache.go", 0, "")
	th.AppendChild(nil, th.CreateNode(nil))

	reports := Check(th)
	require.Len(t, reports, 5)

	byID := map[int]Report{}
	for _, r := range reports {
		byID[r.NodeID] = r
	}
	assert.Equal(t, StatusOK, byID[ok.ID].Status)
	assert.Equal(t, filepath.Join(dir, "cache.go"), byID[ok.ID].Path)

	assert.Equal(t, StatusMoved, byID[moved.ID].Status)
	assert.Equal(t, 4, byID[moved.ID].SuggestedLine)

	assert.Equal(t, StatusChanged, byID[changed.ID].Status)
	assert.Equal(t, "package cache", byID[changed.ID].Actual)

	assert.Equal(t, StatusMissing, byID[gone.ID].Status)
	assert.Equal(t, StatusMissing, byID[past.ID].Status)
	_, checked := byID[unset.ID]
	assert.False(t, checked, "links without a line are skipped")

	assert.Len(t, Drifted(reports), 4)
}

func TestCheckReadsEachFileOnce(t *testing.T) {
	reads := 0
	c := Checker{ReadFile: func(string) ([]byte, error) {
		reads++
		return []byte("a\r\nb\r\n"), nil
	}}
	th := thread.New("t")
	linked(th, "f.txt", 1, "a")
	linked(th, "f.txt", 2, "b")

	reports := c.Check(th)
	assert.Equal(t, 1, reads)
	for _, r := range reports {
		assert.Equal(t, StatusOK, r.Status)
	}
}

func TestNearestPrefersCloserLine(t *testing.T) {
	lines := []string{"x", "target", "y", "z", "target"}
	assert.Equal(t, 4, nearest(lines, 3, "target"))
	assert.Equal(t, 1, nearest(lines, 2, "target"))
	assert.Equal(t, -1, nearest(lines, 2, "absent"))
	assert.Equal(t, 4, nearest(lines, 10, "target"))
}

func TestCheckLinePastEndOfFile(t *testing.T) {
	c := Checker{ReadFile: func(string) ([]byte, error) { return []byte(source), nil }}
	th := thread.New("t")
	far := linked(th, "cache.go", 40, "lookup(k)")
	huge := linked(th, "cache.go", math.MaxInt, "lookup(k)")
	absent := linked(th, "cache.go", math.MaxInt, "not in the file")

	done := make(chan []Report, 1)
	go func() { done <- c.Check(th) }()
	var reports []Report
	select {
	case reports = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Check did not return for a huge line number")
	}
	require.Len(t, reports, 3)

	byID := map[int]Report{}
	for _, r := range reports {
		byID[r.NodeID] = r
	}
	assert.Equal(t, StatusMoved, byID[far.ID].Status)
	assert.Equal(t, 4, byID[far.ID].SuggestedLine)
	assert.Equal(t, StatusMoved, byID[huge.ID].Status)
	assert.Equal(t, 4, byID[huge.ID].SuggestedLine)
	assert.Equal(t, StatusMissing, byID[absent.ID].Status)
}
