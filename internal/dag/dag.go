// Package dag provides a small directed acyclic graph keyed by comparable
// vertex identifiers.
//
// Vertices and edges are kept in insertion order so that every traversal
// (edge listing, topological order, connected components) is deterministic
// for a given sequence of mutations. Acyclicity is enforced when an edge is
// inserted: AddEdge refuses an edge whose target already reaches its source
// and reports the existing path as the cycle witness.
package dag

import (
	"container/heap"
	"fmt"
	"slices"
)

// Graph is an insertion-ordered adjacency-list DAG.
type Graph[K comparable] struct {
	order []K
	index map[K]uint64
	seq   uint64
	succ  map[K][]K
	pred  map[K][]K
}

// Edge is a directed edge between two vertices.
type Edge[K comparable] struct {
	From K `json:"from"`
	To   K `json:"to"`
}

// CycleError reports an edge that would close a cycle. Path is the existing
// path from To back to From.
type CycleError[K comparable] struct {
	From K
	To   K
	Path []K
}

func (e *CycleError[K]) Error() string {
	return fmt.Sprintf("edge %v -> %v closes cycle through %v", e.From, e.To, e.Path)
}

// New returns an empty graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		index: make(map[K]uint64),
		succ:  make(map[K][]K),
		pred:  make(map[K][]K),
	}
}

// AddVertex adds k and reports whether it was not already present.
func (g *Graph[K]) AddVertex(k K) bool {
	if _, ok := g.index[k]; ok {
		return false
	}
	g.index[k] = g.seq
	g.seq++
	g.order = append(g.order, k)
	return true
}

// HasVertex reports whether k is a vertex of g.
func (g *Graph[K]) HasVertex(k K) bool {
	_, ok := g.index[k]
	return ok
}

// Len returns the number of vertices.
func (g *Graph[K]) Len() int { return len(g.order) }

// Vertices returns the vertices in insertion order.
func (g *Graph[K]) Vertices() []K { return slices.Clone(g.order) }

// RemoveVertex removes k together with all incident edges.
func (g *Graph[K]) RemoveVertex(k K) {
	if !g.HasVertex(k) {
		return
	}
	for _, s := range g.succ[k] {
		g.pred[s] = remove(g.pred[s], k)
	}
	for _, p := range g.pred[k] {
		g.succ[p] = remove(g.succ[p], k)
	}
	delete(g.succ, k)
	delete(g.pred, k)
	delete(g.index, k)
	g.order = remove(g.order, k)
}

// AddEdge inserts from -> to. Both vertices must exist. Inserting an edge that
// already exists is a no-op. If to already reaches from, the edge is rejected
// with a *CycleError and the graph is left unchanged.
func (g *Graph[K]) AddEdge(from, to K) error {
	if !g.HasVertex(from) {
		return fmt.Errorf("dag: source vertex %v not found", from)
	}
	if !g.HasVertex(to) {
		return fmt.Errorf("dag: target vertex %v not found", to)
	}
	if g.HasEdge(from, to) {
		return nil
	}
	if path := g.Path(to, from); path != nil {
		return &CycleError[K]{From: from, To: to, Path: path}
	}
	g.succ[from] = append(g.succ[from], to)
	g.pred[to] = append(g.pred[to], from)
	return nil
}

// RemoveEdge deletes from -> to if present.
func (g *Graph[K]) RemoveEdge(from, to K) {
	g.succ[from] = remove(g.succ[from], to)
	g.pred[to] = remove(g.pred[to], from)
}

// HasEdge reports whether from -> to exists.
func (g *Graph[K]) HasEdge(from, to K) bool {
	return slices.Contains(g.succ[from], to)
}

// Successors returns the direct successors of k in edge insertion order.
func (g *Graph[K]) Successors(k K) []K { return slices.Clone(g.succ[k]) }

// Predecessors returns the direct predecessors of k in edge insertion order.
func (g *Graph[K]) Predecessors(k K) []K { return slices.Clone(g.pred[k]) }

func (g *Graph[K]) InDegree(k K) int  { return len(g.pred[k]) }
func (g *Graph[K]) OutDegree(k K) int { return len(g.succ[k]) }

// Edges lists every edge, grouped by source vertex in insertion order.
func (g *Graph[K]) Edges() []Edge[K] {
	var edges []Edge[K]
	for _, from := range g.order {
		for _, to := range g.succ[from] {
			edges = append(edges, Edge[K]{From: from, To: to})
		}
	}
	return edges
}

// Path returns a path from -> ... -> to, or nil when to is not reachable.
// A vertex trivially reaches itself.
func (g *Graph[K]) Path(from, to K) []K {
	if !g.HasVertex(from) || !g.HasVertex(to) {
		return nil
	}
	parent := map[K]K{}
	seen := map[K]bool{from: true}
	queue := []K{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			path := []K{cur}
			for cur != from {
				cur = parent[cur]
				path = append(path, cur)
			}
			slices.Reverse(path)
			return path
		}
		for _, next := range g.succ[cur] {
			if seen[next] {
				continue
			}
			seen[next] = true
			parent[next] = cur
			queue = append(queue, next)
		}
	}
	return nil
}

// TopologicalOrder returns the vertices in dependency order. Among vertices
// that are ready at the same time the earliest inserted comes first.
func (g *Graph[K]) TopologicalOrder() []K {
	indeg := make(map[K]int, len(g.order))
	ready := &readyQueue[K]{index: g.index}
	for _, k := range g.order {
		indeg[k] = len(g.pred[k])
		if indeg[k] == 0 {
			heap.Push(ready, k)
		}
	}
	out := make([]K, 0, len(g.order))
	for ready.Len() > 0 {
		k := heap.Pop(ready).(K)
		out = append(out, k)
		for _, s := range g.succ[k] {
			indeg[s]--
			if indeg[s] == 0 {
				heap.Push(ready, s)
			}
		}
	}
	return out
}

// Clone returns a deep copy of the graph structure.
func (g *Graph[K]) Clone() *Graph[K] {
	c := &Graph[K]{
		order: slices.Clone(g.order),
		index: make(map[K]uint64, len(g.index)),
		seq:   g.seq,
		succ:  make(map[K][]K, len(g.succ)),
		pred:  make(map[K][]K, len(g.pred)),
	}
	for k, v := range g.index {
		c.index[k] = v
	}
	for k, v := range g.succ {
		c.succ[k] = slices.Clone(v)
	}
	for k, v := range g.pred {
		c.pred[k] = slices.Clone(v)
	}
	return c
}

// WeaklyConnectedComponents partitions the vertices into components of the
// underlying undirected graph. Components are ordered by their earliest
// inserted vertex and list their members in insertion order.
func (g *Graph[K]) WeaklyConnectedComponents() [][]K {
	comp := make(map[K]int, len(g.order))
	var sizes []int
	for _, root := range g.order {
		if _, ok := comp[root]; ok {
			continue
		}
		id := len(sizes)
		sizes = append(sizes, 0)
		stack := []K{root}
		comp[root] = id
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			sizes[id]++
			for _, adj := range [][]K{g.succ[cur], g.pred[cur]} {
				for _, n := range adj {
					if _, ok := comp[n]; !ok {
						comp[n] = id
						stack = append(stack, n)
					}
				}
			}
		}
	}
	out := make([][]K, len(sizes))
	for i, n := range sizes {
		out[i] = make([]K, 0, n)
	}
	for _, k := range g.order {
		out[comp[k]] = append(out[comp[k]], k)
	}
	return out
}

func remove[K comparable](s []K, k K) []K {
	if i := slices.Index(s, k); i >= 0 {
		return slices.Delete(s, i, i+1)
	}
	return s
}

type readyQueue[K comparable] struct {
	items []K
	index map[K]uint64
}

func (q *readyQueue[K]) Len() int           { return len(q.items) }
func (q *readyQueue[K]) Less(i, j int) bool { return q.index[q.items[i]] < q.index[q.items[j]] }
func (q *readyQueue[K]) Swap(i, j int)      { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *readyQueue[K]) Push(x any)         { q.items = append(q.items, x.(K)) }
func (q *readyQueue[K]) Pop() any {
	n := len(q.items)
	x := q.items[n-1]
	q.items = q.items[:n-1]
	return x
}
