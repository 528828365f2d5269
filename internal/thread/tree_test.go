package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(nodes []*Node) []int {
	out := make([]int, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestAllocateID(t *testing.T) {
	th := New("T")
	assert.Equal(t, 1, th.AllocateID())

	th = Normalize(Record{"childs": []any{
		map[string]any{"id": float64(1)},
		map[string]any{"id": float64(3), "childs": []any{map[string]any{"id": float64(7)}}},
	}})
	assert.Equal(t, 8, th.AllocateID())

	th = Normalize(Record{"childs": []any{map[string]any{"id": float64(-5)}}})
	assert.Equal(t, 1, th.AllocateID(), "negative ids never push the count below 1")
}

func TestAllocateIDNeverReuses(t *testing.T) {
	th := sampleThread()
	n := th.CreateNode(nil)
	th.AppendChild(nil, n)
	require.Equal(t, 6, n.ID)

	require.NotNil(t, th.DeleteNode(6))
	assert.Equal(t, 7, th.AllocateID())
}

func TestFindByID(t *testing.T) {
	th := sampleThread()
	assert.Equal(t, "hit", th.FindByID(4).Caption)
	assert.Nil(t, th.FindByID(42))
}

func TestFindContainer(t *testing.T) {
	th := sampleThread()

	slot, ok := th.FindContainer(3)
	require.True(t, ok)
	assert.Equal(t, 1, slot.Index)
	assert.Equal(t, 1, slot.Parent.ID)
	assert.Same(t, th.FindByID(3), slot.Node())

	slot, ok = th.FindContainer(5)
	require.True(t, ok)
	assert.Nil(t, slot.Parent)
	assert.Equal(t, 1, slot.Index)

	_, ok = th.FindContainer(99)
	assert.False(t, ok)
}

func TestIsDescendantOf(t *testing.T) {
	th := sampleThread()
	entry, lookup, hit, wrapper := th.FindByID(1), th.FindByID(2), th.FindByID(4), th.FindByID(5)

	assert.True(t, IsDescendantOf(entry, entry))
	assert.True(t, IsDescendantOf(lookup, entry))
	assert.True(t, IsDescendantOf(hit, entry))
	assert.False(t, IsDescendantOf(entry, hit))
	assert.False(t, IsDescendantOf(wrapper, entry))
	assert.False(t, IsDescendantOf(nil, entry))
}

func TestCreateNode(t *testing.T) {
	th := sampleThread()
	n := th.CreateNode(intPtr(2))

	assert.Equal(t, 6, n.ID)
	assert.Equal(t, 2, *n.ParentID)
	assert.Empty(t, n.Caption)
	assert.Nil(t, n.SrcLink)
	assert.Empty(t, n.Comments)
	assert.Empty(t, n.Children)
	assert.Nil(t, th.FindByID(6), "created nodes are not inserted")
}

func TestInsertRelative(t *testing.T) {
	th := sampleThread()
	miss := th.FindByID(3)

	before := th.InsertRelative(miss, 0)
	require.NotNil(t, before)
	assert.Equal(t, []int{2, before.ID, 3}, ids(th.FindByID(1).Children))
	assert.Equal(t, 1, *before.ParentID)

	after := th.InsertRelative(miss, 1)
	require.NotNil(t, after)
	assert.Equal(t, []int{2, before.ID, 3, after.ID}, ids(th.FindByID(1).Children))
	assert.Equal(t, miss.ParentID, after.ParentID)

	top := th.InsertRelative(th.FindByID(1), 0)
	require.NotNil(t, top)
	assert.Equal(t, []int{top.ID, 1, 5}, ids(th.Children))
	assert.Nil(t, top.ParentID)
}

func TestInsertRelativeMissingAnchor(t *testing.T) {
	th := sampleThread()
	before := th.Count()

	assert.Nil(t, th.InsertRelative(&Node{ID: 1}, 0), "anchors are matched by identity")
	assert.Nil(t, th.InsertRelative(nil, 1))
	assert.Equal(t, before, th.Count())
}

func TestReparent(t *testing.T) {
	th := sampleThread()
	lookup := th.FindByID(2)

	require.True(t, th.Reparent(lookup, intPtr(5)))
	assert.Equal(t, []int{3}, ids(th.FindByID(1).Children))
	assert.Equal(t, []int{2}, ids(th.FindByID(5).Children))
	assert.Equal(t, 5, *lookup.ParentID)
	assert.Equal(t, []int{4}, ids(lookup.Children), "subtree moves along")

	require.True(t, th.Reparent(lookup, nil))
	assert.Equal(t, []int{1, 5, 2}, ids(th.Children))
	assert.Nil(t, lookup.ParentID)
}

func TestReparentCycleGuard(t *testing.T) {
	th := sampleThread()
	want := Serialize(th)
	entry := th.FindByID(1)

	assert.False(t, th.Reparent(entry, intPtr(4)), "into a grandchild")
	assert.False(t, th.Reparent(entry, intPtr(1)), "into itself")
	assert.False(t, th.Reparent(entry, intPtr(99)), "missing target")
	assert.False(t, th.Reparent(&Node{ID: 1}, nil), "node not in thread")
	assert.Equal(t, want, Serialize(th))
}

func TestMoveRelative(t *testing.T) {
	th := sampleThread()
	wrapper, miss := th.FindByID(5), th.FindByID(3)

	require.True(t, th.MoveRelative(wrapper, miss, 0))
	assert.Equal(t, []int{1}, ids(th.Children))
	assert.Equal(t, []int{2, 5, 3}, ids(th.FindByID(1).Children))
	assert.Equal(t, 1, *wrapper.ParentID)

	require.True(t, th.MoveRelative(th.FindByID(2), miss, 1))
	assert.Equal(t, []int{5, 3, 2}, ids(th.FindByID(1).Children))

	want := Serialize(th)
	assert.False(t, th.MoveRelative(th.FindByID(1), th.FindByID(4), 0))
	assert.False(t, th.MoveRelative(miss, miss, 1))
	assert.Equal(t, want, Serialize(th))
}

func TestDeleteNodeRemovesSubtree(t *testing.T) {
	th := sampleThread()

	removed := th.DeleteNode(1)
	require.NotNil(t, removed)
	for _, id := range []int{1, 2, 3, 4} {
		assert.Nil(t, th.FindByID(id), "id %d", id)
	}
	assert.Equal(t, []int{5}, ids(th.Children))
	assert.Nil(t, th.DeleteNode(1))
}

func TestAppendChild(t *testing.T) {
	th := sampleThread()
	n := th.CreateNode(nil)

	require.True(t, th.AppendChild(th.FindByID(4), n))
	assert.Equal(t, 4, *n.ParentID)
	assert.Same(t, n, th.FindByID(n.ID))

	entry := th.FindByID(1)
	assert.False(t, th.AppendChild(n, entry), "ancestor under its own descendant")
}

func TestWalkDepthAndCount(t *testing.T) {
	th := sampleThread()
	depths := map[int]int{}
	th.Walk(func(n *Node, depth int) bool {
		depths[n.ID] = depth
		return true
	})
	assert.Equal(t, map[int]int{1: 0, 2: 1, 4: 2, 3: 1, 5: 0}, depths)
	assert.Equal(t, 5, th.Count())

	visited := 0
	th.Walk(func(*Node, int) bool {
		visited++
		return visited < 2
	})
	assert.Equal(t, 2, visited)
}

func TestToggleMark(t *testing.T) {
	n := &Node{}
	m, _ := LookupMark("bug")

	assert.True(t, n.ToggleMark(m))
	assert.True(t, n.HasMark("bug"))
	assert.False(t, n.ToggleMark(m))
	assert.False(t, n.HasMark("bug"))
}

func TestResolve(t *testing.T) {
	loc := Resolve(&SrcLink{Path: "functools.py", LineNum: 479}, "/usr/lib/python3.14")
	assert.Equal(t, Location{Path: "/usr/lib/python3.14/functools.py", Line: 478}, loc)

	loc = Resolve(&SrcLink{Path: "/abs/x.go", LineNum: 0}, "/root")
	assert.Equal(t, Location{Path: "/abs/x.go", Line: 0}, loc)
}
