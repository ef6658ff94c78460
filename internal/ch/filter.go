package ch

import "chrouter/pkg/levelgraph"

// LevelFilter wraps edge iteration over the uncontracted subgraph: it
// accepts an edge only when its far endpoint has not yet been contracted
// (level 0), and optionally rejects one additional "skip" node - the
// candidate currently being contracted, which witness search must route
// around.
type LevelFilter struct {
	graph *levelgraph.Graph
	skip  int64
}

// NewLevelFilter returns a filter with no skip node set.
func NewLevelFilter(g *levelgraph.Graph) *LevelFilter {
	return &LevelFilter{graph: g, skip: levelgraph.NoSkip}
}

// WithSkip returns a copy of the filter that additionally rejects node.
func (f *LevelFilter) WithSkip(node int64) *LevelFilter {
	return &LevelFilter{graph: f.graph, skip: node}
}

// Accept reports whether edge e may be traversed away from node v: the
// neighbour (e.Other(v)) must not be the skip node and must still be
// uncontracted.
func (f *LevelFilter) Accept(v int64, e *levelgraph.Edge) bool {
	other := e.Other(v)
	if other == f.skip {
		return false
	}
	return f.graph.GetLevel(other) == 0
}

// Filter returns the subset of edges incident to v that Accept admits.
func (f *LevelFilter) Filter(v int64, edges []*levelgraph.Edge) []*levelgraph.Edge {
	out := make([]*levelgraph.Edge, 0, len(edges))
	for _, e := range edges {
		if f.Accept(v, e) {
			out = append(out, e)
		}
	}
	return out
}
