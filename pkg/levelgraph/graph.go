// Package levelgraph provides a concrete, in-memory LevelGraph: a mutable
// weighted directed graph whose nodes carry a contraction level and whose
// edges carry the bookkeeping a contraction hierarchy preprocessor needs
// (original-edge counts, skipped-node pointers, direction flags).
package levelgraph

import (
	"sort"
	"sync"
)

// Flags is a small bitset describing the travel directions a (shortcut)
// edge is valid for.
type Flags uint8

const (
	// FlagForward marks an edge usable from From to To.
	FlagForward Flags = 1 << iota
	// FlagBackward marks an edge usable from To to From.
	FlagBackward
)

const (
	// ShortcutOneDirection is the flag set for a shortcut discovered in a
	// single direction only.
	ShortcutOneDirection = FlagForward
	// ShortcutBothDirections is the flag set once a shortcut is confirmed
	// to hold in both directions with equal weight.
	ShortcutBothDirections = FlagForward | FlagBackward
)

// Forward reports whether the forward direction is enabled.
func (f Flags) Forward() bool { return f&FlagForward != 0 }

// Backward reports whether the backward direction is enabled.
func (f Flags) Backward() bool { return f&FlagBackward != 0 }

// Merge returns the flags resulting from a bidirectional witness merge.
func (f Flags) Merge(other Flags) Flags { return f | other }

// RoadType classifies the physical road an original edge represents.
// Shortcuts are installed with RoadTypeUnspecified. The core reads it only
// through a WeightCalc (FastestWeight derives its assumed speed from it).
type RoadType int

const (
	RoadTypeUnspecified RoadType = iota
	RoadTypeHighway
	RoadTypePrimary
	RoadTypeSecondary
	RoadTypeLocal
	RoadTypeUrban
)

// NoSkip is the sentinel SkippedNode value for an original (non-shortcut) edge.
const NoSkip int64 = -1

// Epsilon is the floating-point comparison tolerance used throughout
// weight and distance comparisons.
const Epsilon = 1e-9

// Node is a graph vertex. Level is 0 until the node is contracted; it is
// then a strictly increasing contraction rank.
type Node struct {
	ID    int64
	Level int
}

// Edge is a directed arc. Distance is overloaded: before preprocessing
// begins it holds a caller-supplied weight-calculator input (commonly
// physical length); during and after preprocessing it holds the overlay
// weight produced by a WeightCalc. OriginalEdges counts how many original
// edges this arc represents (1 for a real edge, summed for shortcuts).
// SkippedNode is NoSkip for real edges, or the id of the contracted node
// that produced this edge as a shortcut.
type Edge struct {
	From          int64
	To            int64
	Distance      float64
	Flags         Flags
	OriginalEdges int32
	SkippedNode   int64
	Length        float64
	RoadType      RoadType
}

// IsShortcut reports whether this edge was produced by contracting a node.
func (e *Edge) IsShortcut() bool { return e.SkippedNode != NoSkip }

// Other returns the endpoint of e that is not v. It lets traversal code
// stay endpoint-agnostic: a bidirectional shortcut is reachable from
// either of its two adjacency slots, and the "neighbour" is always
// whichever field does not equal the node the caller is standing on.
func (e *Edge) Other(v int64) int64 {
	if e.From == v {
		return e.To
	}
	return e.From
}

// CanBeOverwritten reports whether an existing shortcut edge may be
// replaced in place by a newly discovered shortcut candidate with flags
// candidate. Only shortcuts (never original edges) are overwritable, and
// only when the candidate's direction set is compatible with (a superset
// of, or equal to) the existing one.
func (e *Edge) CanBeOverwritten(candidate Flags) bool {
	if !e.IsShortcut() {
		return false
	}
	return e.Flags&candidate == e.Flags || candidate&e.Flags == candidate
}

// Graph is a mutable, concurrency-safe implementation of the LevelGraph
// collaborator described in the specification's external-interfaces
// section. Adjacency is stored both as a map (for O(1) lookup by node id)
// and mirrored into deterministically ordered slices, so iteration order
// - and therefore contraction tie-breaking - is reproducible across runs.
type Graph struct {
	mu       sync.RWMutex
	nodes    map[int64]*Node
	outgoing map[int64][]*Edge
	incoming map[int64][]*Edge

	sortedMu    sync.Mutex
	sortedIDs   []int64
	sortedDirty bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:       make(map[int64]*Node),
		outgoing:    make(map[int64][]*Edge),
		incoming:    make(map[int64][]*Edge),
		sortedDirty: true,
	}
}

// AddNode registers a node with level 0 (uncontracted). Re-adding an
// existing id is a no-op.
func (g *Graph) AddNode(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &Node{ID: id, Level: 0}

	g.sortedMu.Lock()
	g.sortedDirty = true
	g.sortedMu.Unlock()
}

// AddEdge installs an original (non-shortcut) directed edge. length is the
// physical distance used by a WeightCalc to derive Distance during
// prepareEdges; until that happens Distance mirrors length.
func (g *Graph) AddEdge(from, to int64, length float64, roadType RoadType) *Edge {
	g.mu.Lock()
	defer g.mu.Unlock()

	edge := &Edge{
		From:          from,
		To:            to,
		Distance:      length,
		Flags:         FlagForward,
		OriginalEdges: 1,
		SkippedNode:   NoSkip,
		Length:        length,
		RoadType:      roadType,
	}
	g.outgoing[from] = append(g.outgoing[from], edge)
	g.incoming[to] = append(g.incoming[to], edge)
	return edge
}

// Shortcut installs a new shortcut edge (from -> to) with the given
// overlay distance, direction flags, original-edge count, and the node
// id whose contraction produced it. When flags include FlagBackward the
// same edge object is also linked into the reverse adjacency slots, so a
// single installed record serves both travel directions. It returns the
// installed edge handle.
func (g *Graph) Shortcut(from, to int64, distance float64, flags Flags, originalEdges int32, skippedNode int64) *Edge {
	g.mu.Lock()
	defer g.mu.Unlock()

	edge := &Edge{
		From:          from,
		To:            to,
		Distance:      distance,
		Flags:         flags,
		OriginalEdges: originalEdges,
		SkippedNode:   skippedNode,
	}
	g.outgoing[from] = append(g.outgoing[from], edge)
	g.incoming[to] = append(g.incoming[to], edge)
	if flags.Backward() {
		g.outgoing[to] = append(g.outgoing[to], edge)
		g.incoming[from] = append(g.incoming[from], edge)
	}
	return edge
}

// Nodes returns every node id in ascending order.
func (g *Graph) Nodes() []int64 {
	g.mu.RLock()
	n := len(g.nodes)
	g.mu.RUnlock()
	return g.sortedNodeIDs(n)
}

func (g *Graph) sortedNodeIDs(hint int) []int64 {
	g.sortedMu.Lock()
	defer g.sortedMu.Unlock()

	if !g.sortedDirty && g.sortedIDs != nil {
		out := make([]int64, len(g.sortedIDs))
		copy(out, g.sortedIDs)
		return out
	}

	g.mu.RLock()
	ids := make([]int64, 0, hint)
	for id := range g.nodes {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	g.sortedIDs = ids
	g.sortedDirty = false

	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of directed edges (shortcuts included).
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	total := 0
	for _, edges := range g.outgoing {
		total += len(edges)
	}
	return total
}

// Edges returns every directed edge in the graph. Order is not
// deterministic across map-iteration boundaries at the top level, but
// each node's own edge list (returned by GetOutgoing/GetIncoming) is.
func (g *Graph) Edges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Edge, 0, len(g.outgoing))
	for _, edges := range g.outgoing {
		out = append(out, edges...)
	}
	return out
}

// GetOutgoing returns the edges leaving v, in insertion order.
func (g *Graph) GetOutgoing(v int64) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.outgoing[v]
}

// GetIncoming returns the edges entering v, in insertion order.
func (g *Graph) GetIncoming(v int64) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.incoming[v]
}

// GetEdges returns every edge incident to v (outgoing followed by
// incoming), used by the priority heuristic's degree computation.
func (g *Graph) GetEdges(v int64) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Edge, 0, len(g.outgoing[v])+len(g.incoming[v]))
	out = append(out, g.outgoing[v]...)
	out = append(out, g.incoming[v]...)
	return out
}

// GetLevel returns the contraction level of v (0 if uncontracted or unknown).
func (g *Graph) GetLevel(v int64) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n, ok := g.nodes[v]; ok {
		return n.Level
	}
	return 0
}

// SetLevel assigns the contraction level of v.
func (g *Graph) SetLevel(v int64, level int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[v]; ok {
		n.Level = level
	}
}

// IsContracted reports whether v already has a non-zero level.
func (g *Graph) IsContracted(v int64) bool {
	return g.GetLevel(v) != 0
}
