package ch

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chrouter/pkg/apperror"
	"chrouter/pkg/levelgraph"
)

func buildGraph(nodes int, edges [][3]float64) *levelgraph.Graph {
	g := levelgraph.New()
	for i := 0; i < nodes; i++ {
		g.AddNode(int64(i))
	}
	for _, e := range edges {
		g.AddEdge(int64(e[0]), int64(e[1]), e[2], levelgraph.RoadTypeLocal)
	}
	return g
}

func TestContractor_EmptyGraph(t *testing.T) {
	g := levelgraph.New()
	g.AddNode(0)

	c := NewContractor(g, ShortestWeight{}, nil)
	stats, err := c.Run()

	require.Nil(t, stats)
	require.True(t, apperror.Is(err, apperror.CodeEmptyGraph))
}

func TestContractor_EmptyPriorityQueue(t *testing.T) {
	g := levelgraph.New()

	c := NewContractor(g, ShortestWeight{}, nil)
	stats, err := c.Run()

	require.Nil(t, stats)
	require.True(t, apperror.Is(err, apperror.CodeEmptyPriorityQueue))
}

// TestContractor_SingleEdge covers spec scenario 2: one edge, no shortcuts,
// both nodes get distinct positive levels.
func TestContractor_SingleEdge(t *testing.T) {
	g := buildGraph(2, [][3]float64{{0, 1, 1.0}})

	c := NewContractor(g, ShortestWeight{}, nil)
	stats, err := c.Run()
	require.NoError(t, err)

	assert.Equal(t, 0, stats.ShortcutsAdded)
	assert.NotEqual(t, g.GetLevel(0), g.GetLevel(1))
	assert.Greater(t, g.GetLevel(0), 0)
	assert.Greater(t, g.GetLevel(1), 0)

	q := NewCHQuery(g, ShortestWeight{})
	res, err := q.Route(0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Weight, levelgraph.Epsilon)
}

// TestContractor_Chain covers spec scenario 5: a five-node chain, queried
// end to end, must reconstruct every intermediate node even though the
// hierarchy may route through shortcut edges.
func TestContractor_Chain(t *testing.T) {
	g := buildGraph(5, [][3]float64{
		{0, 1, 1.0},
		{1, 2, 1.0},
		{2, 3, 1.0},
		{3, 4, 1.0},
	})

	c := NewContractor(g, ShortestWeight{}, nil)
	_, err := c.Run()
	require.NoError(t, err)

	q := NewCHQuery(g, ShortestWeight{})
	res, err := q.Route(0, 4)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, res.Weight, levelgraph.Epsilon)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, res.Nodes)
}

// TestContractor_MonotoneLevels verifies every contracted node gets a
// strictly larger level than every previously contracted node.
func TestContractor_MonotoneLevels(t *testing.T) {
	g := buildGraph(6, [][3]float64{
		{0, 1, 2.0}, {1, 2, 1.0}, {2, 3, 4.0},
		{3, 4, 1.0}, {4, 5, 2.0}, {0, 5, 20.0},
	})

	c := NewContractor(g, ShortestWeight{}, nil)
	_, err := c.Run()
	require.NoError(t, err)

	seen := map[int]bool{}
	for i := 0; i < 6; i++ {
		lvl := g.GetLevel(int64(i))
		require.Greater(t, lvl, 0)
		require.False(t, seen[lvl], "duplicate level %d", lvl)
		seen[lvl] = true
	}
}

// TestContractor_Idempotent verifies running the contractor again on an
// already-preprocessed graph is a no-op.
func TestContractor_Idempotent(t *testing.T) {
	g := buildGraph(4, [][3]float64{
		{0, 1, 1.0}, {1, 2, 1.0}, {2, 3, 1.0}, {0, 3, 10.0},
	})

	c := NewContractor(g, ShortestWeight{}, nil)
	_, err := c.Run()
	require.NoError(t, err)

	levelsBefore := map[int64]int{}
	for _, n := range g.Nodes() {
		levelsBefore[n] = g.GetLevel(n)
	}
	edgesBefore := g.EdgeCount()

	c2 := NewContractor(g, ShortestWeight{}, nil)
	stats2, err := c2.Run()
	require.NoError(t, err)

	assert.Equal(t, 0, stats2.ShortcutsAdded)
	assert.Equal(t, edgesBefore, g.EdgeCount())
	for _, n := range g.Nodes() {
		assert.Equal(t, levelsBefore[n], g.GetLevel(n))
	}
}

// TestContractor_WeightOverlay verifies prepareEdges rewrites Distance to
// the configured WeightCalc's output.
func TestContractor_WeightOverlay(t *testing.T) {
	g := buildGraph(2, [][3]float64{{0, 1, 10.0}})
	g.GetOutgoing(0)[0].RoadType = levelgraph.RoadTypeHighway

	fw := NewFastestWeight()
	c := NewContractor(g, fw, nil)
	_, err := c.Run()
	require.NoError(t, err)

	e := g.GetOutgoing(0)[0]
	want := fw.Weight(&levelgraph.Edge{Length: 10.0, RoadType: levelgraph.RoadTypeHighway})
	assert.InDelta(t, want, e.Distance, levelgraph.Epsilon)
}

// TestContractor_NoSelfWitness verifies no shortcut is ever installed with
// From == To.
func TestContractor_NoSelfWitness(t *testing.T) {
	g := buildGraph(3, [][3]float64{
		{0, 1, 1.0}, {1, 0, 1.0}, {1, 2, 1.0}, {2, 1, 1.0},
	})

	c := NewContractor(g, ShortestWeight{}, nil)
	_, err := c.Run()
	require.NoError(t, err)

	for _, e := range g.Edges() {
		assert.NotEqual(t, e.From, e.To)
	}
}

// TestContractor_ShortcutTriangle verifies the shortcut-triangle invariant:
// every installed shortcut's weight equals the sum of the two edges it
// skips.
func TestContractor_ShortcutTriangle(t *testing.T) {
	g := buildGraph(4, [][3]float64{
		{0, 1, 1.0}, {1, 2, 1.0}, {2, 3, 1.0}, {0, 3, 100.0},
	})

	c := NewContractor(g, ShortestWeight{}, nil)
	_, err := c.Run()
	require.NoError(t, err)

	for _, e := range g.Edges() {
		if !e.IsShortcut() {
			continue
		}
		v := e.SkippedNode
		var left, right *levelgraph.Edge
		for _, cand := range g.GetOutgoing(e.From) {
			if cand != e && cand.Other(e.From) == v {
				left = cand
			}
		}
		for _, cand := range g.GetOutgoing(v) {
			if cand != e && cand.Other(v) == e.To {
				right = cand
			}
		}
		require.NotNil(t, left)
		require.NotNil(t, right)
		assert.InDelta(t, e.Distance, left.Distance+right.Distance, levelgraph.Epsilon)
	}
}

// TestContractor_Equivalence is the foundational correctness property
// (spec §8): for every pair in the original graph, the weight CHQuery
// reports must equal a vanilla Dijkstra's over the same graph/weighting.
func TestContractor_Equivalence(t *testing.T) {
	g := buildGraph(8, [][3]float64{
		{0, 1, 4}, {0, 2, 1}, {2, 1, 2}, {1, 3, 1},
		{2, 3, 5}, {3, 4, 3}, {4, 5, 1}, {3, 5, 7},
		{5, 6, 2}, {4, 6, 6}, {6, 7, 1}, {5, 7, 9},
		{7, 0, 10},
	})

	original := g.Edges()
	originalSnapshot := make([][3]float64, len(original))
	for i, e := range original {
		originalSnapshot[i] = [3]float64{float64(e.From), float64(e.To), e.Distance}
	}

	c := NewContractor(g, ShortestWeight{}, nil)
	_, err := c.Run()
	require.NoError(t, err)

	q := NewCHQuery(g, ShortestWeight{})

	for s := int64(0); s < 8; s++ {
		want := plainDijkstra(originalSnapshot, 8, s)
		for tgt := int64(0); tgt < 8; tgt++ {
			if s == tgt {
				continue
			}
			res, err := q.Route(s, tgt)
			wantDist, reachable := want[tgt]
			if !reachable {
				assert.Error(t, err, "expected no path %d->%d", s, tgt)
				continue
			}
			require.NoError(t, err, "%d->%d", s, tgt)
			assert.InDelta(t, wantDist, res.Weight, 1e-6, "%d->%d", s, tgt)
		}
	}
}

type plainHeapItem struct {
	node int64
	dist float64
}
type plainHeap []*plainHeapItem

func (h plainHeap) Len() int            { return len(h) }
func (h plainHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h plainHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *plainHeap) Push(x any)         { *h = append(*h, x.(*plainHeapItem)) }
func (h *plainHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// plainDijkstra runs a textbook Dijkstra over edges (ignoring CH
// bookkeeping entirely) as the reference implementation for the
// equivalence property.
func plainDijkstra(edges [][3]float64, nodeCount int, source int64) map[int64]float64 {
	adj := make(map[int64][][2]float64, nodeCount)
	for _, e := range edges {
		from, to, w := int64(e[0]), int64(e[1]), e[2]
		adj[from] = append(adj[from], [2]float64{float64(to), w})
	}

	dist := map[int64]float64{source: 0}
	h := &plainHeap{{node: source, dist: 0}}
	heap.Init(h)

	for h.Len() > 0 {
		top := heap.Pop(h).(*plainHeapItem)
		if top.dist > dist[top.node]+1e-9 {
			continue
		}
		for _, nb := range adj[top.node] {
			to, w := int64(nb[0]), nb[1]
			nd := top.dist + w
			if existing, ok := dist[to]; !ok || nd < existing-1e-9 {
				dist[to] = nd
				heap.Push(h, &plainHeapItem{node: to, dist: nd})
			}
		}
	}
	delete(dist, source)
	return dist
}
