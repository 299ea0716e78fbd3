package dag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChain(t *testing.T, ids ...string) *Graph[string] {
	t.Helper()
	g := New[string]()
	for _, id := range ids {
		g.AddVertex(id)
	}
	for i := 1; i < len(ids); i++ {
		require.NoError(t, g.AddEdge(ids[i-1], ids[i]))
	}
	return g
}

func TestAddEdge_RejectsCycleWithWitness(t *testing.T) {
	g := newChain(t, "a", "b", "c")

	err := g.AddEdge("c", "a")
	var cyc *CycleError[string]
	require.True(t, errors.As(err, &cyc))
	assert.Equal(t, "c", cyc.From)
	assert.Equal(t, "a", cyc.To)
	assert.Equal(t, []string{"a", "b", "c"}, cyc.Path)
	assert.False(t, g.HasEdge("c", "a"), "rejected edge must not be inserted")
}

func TestAddEdge_SelfLoop(t *testing.T) {
	g := New[string]()
	g.AddVertex("a")
	err := g.AddEdge("a", "a")
	var cyc *CycleError[string]
	require.True(t, errors.As(err, &cyc))
	assert.Equal(t, []string{"a"}, cyc.Path)
}

func TestAddEdge_MissingVertex(t *testing.T) {
	g := New[string]()
	g.AddVertex("a")
	assert.Error(t, g.AddEdge("a", "b"))
	assert.Error(t, g.AddEdge("b", "a"))
}

func TestAddEdge_DuplicateIsNoop(t *testing.T) {
	g := newChain(t, "a", "b")
	require.NoError(t, g.AddEdge("a", "b"))
	assert.Len(t, g.Edges(), 1)
}

func TestTopologicalOrder_TiesByInsertion(t *testing.T) {
	g := New[string]()
	for _, v := range []string{"d", "b", "a", "c"} {
		g.AddVertex(v)
	}
	require.NoError(t, g.AddEdge("a", "c"))
	require.NoError(t, g.AddEdge("b", "c"))

	assert.Equal(t, []string{"d", "b", "a", "c"}, g.TopologicalOrder())
}

func TestRemoveVertex_DropsIncidentEdges(t *testing.T) {
	g := newChain(t, "a", "b", "c")
	g.RemoveVertex("b")

	assert.False(t, g.HasVertex("b"))
	assert.Empty(t, g.Successors("a"))
	assert.Empty(t, g.Predecessors("c"))
	assert.Equal(t, []string{"a", "c"}, g.Vertices())
}

func TestClone_IsIndependent(t *testing.T) {
	g := newChain(t, "a", "b")
	c := g.Clone()
	c.RemoveEdge("a", "b")

	assert.True(t, g.HasEdge("a", "b"))
	assert.False(t, c.HasEdge("a", "b"))
}

func TestWeaklyConnectedComponents(t *testing.T) {
	g := New[int]()
	for i := range 6 {
		g.AddVertex(i)
	}
	require.NoError(t, g.AddEdge(0, 2))
	require.NoError(t, g.AddEdge(3, 2))
	require.NoError(t, g.AddEdge(4, 5))

	assert.Equal(t, [][]int{{0, 2, 3}, {1}, {4, 5}}, g.WeaklyConnectedComponents())
}

func TestPath(t *testing.T) {
	g := newChain(t, "a", "b", "c")
	g.AddVertex("x")

	assert.Equal(t, []string{"a", "b", "c"}, g.Path("a", "c"))
	assert.Nil(t, g.Path("c", "a"))
	assert.Nil(t, g.Path("a", "x"))
}
