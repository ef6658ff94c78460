package ch

import (
	"container/heap"
	"math"

	"chrouter/pkg/apperror"
	"chrouter/pkg/levelgraph"
)

// RouteResult is the outcome of a single CHQuery route request.
type RouteResult struct {
	// Nodes is the full node sequence from source to target, with every
	// shortcut edge unrolled back to its constituent original edges.
	Nodes []int64
	// Weight is the total overlay weight of the route, under the
	// WeightCalc the hierarchy was built with.
	Weight float64
	// Distance is Weight reverted to physical units via WeightCalc.Revert,
	// summed edge by edge over the unrolled original edges.
	Distance float64
	// Edges is the unrolled sequence of original edges making up the route.
	Edges []*levelgraph.Edge
}

// CHQuery answers shortest-path requests against a graph that has already
// been preprocessed by a Contractor. It runs a bidirectional Dijkstra
// restricted to each node's upward subgraph (edges into strictly higher
// levels), which is the only search shape a contraction hierarchy
// guarantees to be complete.
type CHQuery struct {
	graph  *levelgraph.Graph
	weight WeightCalc
}

// NewCHQuery returns a query engine over graph, using weight to interpret
// edge Distance fields and to revert overlay weights back to physical
// distances when reporting results. weight must be the same WeightCalc
// (or an equivalent one) the hierarchy was contracted with.
func NewCHQuery(graph *levelgraph.Graph, weight WeightCalc) *CHQuery {
	return &CHQuery{graph: graph, weight: weight}
}

// SetWeighting is a deliberate no-op that fails loudly: a contraction
// hierarchy is only valid for the weighting it was built with, so
// re-weighting an existing CHQuery is not supported. Callers that need a
// different weighting must re-run the Contractor and construct a new
// CHQuery.
func (q *CHQuery) SetWeighting(WeightCalc) error {
	return apperror.New(apperror.CodeUnsupportedReconfiguration,
		"CHQuery weighting is fixed at construction; re-run the contractor to change it")
}

// searchSide holds one direction's working state for the bidirectional
// search: settled distances, parent pointers (for path reconstruction),
// and its own min-heap frontier.
type searchSide struct {
	dist    map[int64]float64
	parent  map[int64]*levelgraph.Edge // edge used to reach node, in this side's direction of travel
	settled map[int64]struct{}
	pq      dijkstraHeap
}

func newSearchSide(start int64) *searchSide {
	s := &searchSide{
		dist:    map[int64]float64{start: 0},
		parent:  make(map[int64]*levelgraph.Edge),
		settled: make(map[int64]struct{}),
		pq:      make(dijkstraHeap, 0, 16),
	}
	heap.Push(&s.pq, &dijkstraItem{node: start, dist: 0})
	return s
}

func (s *searchSide) topDist() float64 {
	if len(s.pq) == 0 {
		return math.Inf(1)
	}
	return s.pq[0].dist
}

type dijkstraItem struct {
	node int64
	dist float64
}

type dijkstraHeap []*dijkstraItem

func (h dijkstraHeap) Len() int { return len(h) }
func (h dijkstraHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist < h[j].dist
	}
	return h[i].node < h[j].node
}
func (h dijkstraHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *dijkstraHeap) Push(x any)   { *h = append(*h, x.(*dijkstraItem)) }
func (h *dijkstraHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return item
}

// Route answers a shortest-path query between source and target using the
// hierarchy already installed on the graph. It returns an *apperror.Error
// with CodeNoPath (carrying source and target as details) if no route
// exists.
func (q *CHQuery) Route(source, target int64) (*RouteResult, error) {
	if source == target {
		return &RouteResult{Nodes: []int64{source}, Weight: 0, Distance: 0}, nil
	}

	fwd := newSearchSide(source)
	bwd := newSearchSide(target)

	best := math.Inf(1)
	var meet int64 = -1

	for len(fwd.pq) > 0 || len(bwd.pq) > 0 {
		// CH stopping rule: the search ends only once both frontiers'
		// minimum keys have reached the best meeting weight found so far
		// (an exhausted side counts as +Inf). The sum-of-frontiers bound of
		// a plain bidirectional Dijkstra does not hold here, because the
		// two directions search different upward subgraphs.
		if fwd.topDist() >= best && bwd.topDist() >= best {
			break
		}

		if len(bwd.pq) == 0 || (len(fwd.pq) > 0 && fwd.topDist() <= bwd.topDist()) {
			meet = q.stepSide(fwd, bwd, true, meet, &best)
		} else {
			meet = q.stepSide(bwd, fwd, false, meet, &best)
		}
	}

	if meet < 0 || math.IsInf(best, 1) {
		return nil, apperror.New(apperror.CodeNoPath, "no path between source and target").
			WithDetails("source", source).WithDetails("target", target)
	}

	return q.buildResult(fwd, bwd, meet, best, source)
}

// stepSide pops the minimum entry off side's frontier, settles it,
// updates best/meet if it closes a path with other (the opposite
// direction's state), and relaxes its upward edges. forward selects
// GetOutgoing vs GetIncoming as the direction of travel.
func (q *CHQuery) stepSide(side, other *searchSide, forward bool, meet int64, best *float64) int64 {
	top := heap.Pop(&side.pq).(*dijkstraItem)
	u := top.node

	if top.dist > side.dist[u]+levelgraph.Epsilon {
		return meet // stale entry
	}
	if _, done := side.settled[u]; done {
		return meet
	}
	side.settled[u] = struct{}{}

	if od, ok := other.dist[u]; ok {
		if cand := side.dist[u] + od; cand < *best {
			*best = cand
			meet = u
		}
	}

	levelU := q.graph.GetLevel(u)

	var incident []*levelgraph.Edge
	if forward {
		incident = q.graph.GetOutgoing(u)
	} else {
		incident = q.graph.GetIncoming(u)
	}

	for _, e := range incident {
		n := e.Other(u)
		if q.graph.GetLevel(n) <= levelU {
			continue // CH upward-search restriction
		}
		nd := side.dist[u] + e.Distance
		if existing, ok := side.dist[n]; !ok || nd < existing-levelgraph.Epsilon {
			side.dist[n] = nd
			side.parent[n] = e
			heap.Push(&side.pq, &dijkstraItem{node: n, dist: nd})
		}
	}

	return meet
}

// buildResult walks both sides' parent chains from meet back to their
// respective starts, unrolls every shortcut edge back to original edges,
// and reverts overlay weight to physical distance hop by hop.
func (q *CHQuery) buildResult(fwd, bwd *searchSide, meet int64, weight float64, source int64) (*RouteResult, error) {
	forwardEdges := tracePath(fwd, meet)  // source -> meet, in travel order
	backwardEdges := tracePath(bwd, meet) // target -> meet, reversed below

	var edges []*levelgraph.Edge
	edges = append(edges, forwardEdges...)
	for i := len(backwardEdges) - 1; i >= 0; i-- {
		edges = append(edges, backwardEdges[i])
	}

	var original []*levelgraph.Edge
	cursor := source
	for _, e := range edges {
		next := e.Other(cursor)
		original = append(original, q.unrollDirected(e, cursor)...)
		cursor = next
	}

	nodes := make([]int64, 0, len(original)+1)
	var distance float64
	cursor = source
	nodes = append(nodes, cursor)
	for _, e := range original {
		next := e.Other(cursor)
		distance += q.weight.Revert(e, e.Distance)
		nodes = append(nodes, next)
		cursor = next
	}

	return &RouteResult{Nodes: nodes, Weight: weight, Distance: distance, Edges: original}, nil
}

// tracePath walks side.parent from node back to its search root,
// returning the edges traversed in travel order (root -> node).
func tracePath(side *searchSide, node int64) []*levelgraph.Edge {
	var rev []*levelgraph.Edge
	cur := node
	for {
		e, ok := side.parent[cur]
		if !ok {
			break
		}
		rev = append(rev, e)
		cur = e.Other(cur)
	}
	out := make([]*levelgraph.Edge, len(rev))
	for i, e := range rev {
		out[len(rev)-1-i] = e
	}
	return out
}

// unrollDirected expands e, traveled from node from towards e.Other(from),
// into its constituent original edges in travel order, recursing through
// nested shortcuts. An original edge (SkippedNode == NoSkip) unrolls to
// itself.
func (q *CHQuery) unrollDirected(e *levelgraph.Edge, from int64) []*levelgraph.Edge {
	if !e.IsShortcut() {
		return []*levelgraph.Edge{e}
	}
	v := e.SkippedNode
	to := e.Other(from)
	left := q.findConnecting(from, v, e)
	right := q.findConnecting(v, to, e)
	if left == nil || right == nil {
		// Graph invariant violated (no shortcut-triangle edges survive);
		// fall back to the shortcut itself rather than dropping the hop.
		return []*levelgraph.Edge{e}
	}
	out := q.unrollDirected(left, from)
	out = append(out, q.unrollDirected(right, v)...)
	return out
}

// findConnecting returns an edge incident to a that reaches b, excluding
// exclude itself.
func (q *CHQuery) findConnecting(a, b int64, exclude *levelgraph.Edge) *levelgraph.Edge {
	for _, e := range q.graph.GetOutgoing(a) {
		if e == exclude {
			continue
		}
		if e.Other(a) == b {
			return e
		}
	}
	return nil
}
