package ch

import (
	"container/heap"

	"chrouter/pkg/levelgraph"
)

// Goal is one target of a one-to-many witness search: the endpoint of a
// candidate shortcut, the number of original edges the other half of
// that shortcut represents, and the weight the shortcut-via-the-candidate
// path would have.
type Goal struct {
	Node          int64
	OriginalEdges int32
	ViaWeight     float64
}

// witnessQueueItem is an entry in the witness search's own min-heap.
type witnessQueueItem struct {
	node   int64
	weight float64
}

type witnessHeap []*witnessQueueItem

func (h witnessHeap) Len() int { return len(h) }
func (h witnessHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	return h[i].node < h[j].node
}
func (h witnessHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *witnessHeap) Push(x any)        { *h = append(*h, x.(*witnessQueueItem)) }
func (h *witnessHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return item
}

// RunWitnessSearch runs a one-to-many Dijkstra from source over the
// uncontracted subgraph (excluding skip), stopping once every goal has
// been settled at least once or the next settle would exceed the
// largest ViaWeight among goals. It returns the settled weight for every
// goal that was actually reached; a goal absent from the result has no
// witness path.
//
// The search reads edge weight directly from each edge's Distance field,
// which prepareEdges has already overwritten with the configured
// WeightCalc's output - recomputing it here would be redundant and
// would silently diverge if a caller mutated Distance between calls.
func RunWitnessSearch(g *levelgraph.Graph, source int64, goals []Goal, skip int64) map[int64]float64 {
	result := make(map[int64]float64, len(goals))
	if len(goals) == 0 {
		return result
	}

	goalSet := make(map[int64]struct{}, len(goals))
	limit := 0.0
	for _, gl := range goals {
		goalSet[gl.Node] = struct{}{}
		if gl.ViaWeight > limit {
			limit = gl.ViaWeight
		}
	}

	filter := NewLevelFilter(g).WithSkip(skip)

	dist := map[int64]float64{source: 0}
	settled := make(map[int64]struct{}, len(goalSet))

	pq := make(witnessHeap, 0, 16)
	heap.Init(&pq)
	heap.Push(&pq, &witnessQueueItem{node: source, weight: 0})

	for pq.Len() > 0 {
		cur := heap.Pop(&pq).(*witnessQueueItem)
		u := cur.node

		if cur.weight > dist[u]+levelgraph.Epsilon {
			continue // stale entry, a better distance already settled u
		}
		if cur.weight > limit+levelgraph.Epsilon {
			break
		}

		if _, isGoal := goalSet[u]; isGoal {
			if _, already := settled[u]; !already {
				settled[u] = struct{}{}
				result[u] = cur.weight
				if len(settled) == len(goalSet) {
					break
				}
			}
		}

		for _, e := range g.GetOutgoing(u) {
			if !filter.Accept(u, e) {
				continue
			}
			v := e.Other(u)
			nd := dist[u] + e.Distance
			if existing, ok := dist[v]; !ok || nd < existing-levelgraph.Epsilon {
				dist[v] = nd
				heap.Push(&pq, &witnessQueueItem{node: v, weight: nd})
			}
		}
	}

	return result
}
