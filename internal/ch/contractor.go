package ch

import (
	"log/slog"

	"chrouter/pkg/apperror"
	"chrouter/pkg/levelgraph"
)

// Stats summarizes one contraction run, reported back to the caller and
// mirrored into Prometheus by the orchestration layer.
type Stats struct {
	Nodes            int
	OriginalEdges    int
	ShortcutsAdded   int
	ShortcutsMerged  int
	Iterations       int
	FullRefreshes    int
}

// pendingShortcut is a candidate shortcut discovered while simulating or
// performing the contraction of one node. It lives only for the duration
// of a single findShortcuts call.
type pendingShortcut struct {
	from, to      int64
	distance      float64
	flags         levelgraph.Flags
	originalEdges int32
}

// Contractor runs the contraction hierarchies preprocessing algorithm
// over a levelgraph.Graph: it rewrites edge weights, seeds a priority
// queue with the node-ordering heuristic, and repeatedly contracts the
// cheapest node, inserting shortcuts that preserve shortest-path weights.
type Contractor struct {
	graph  *levelgraph.Graph
	weight WeightCalc
	log    *slog.Logger

	nodeBound int64 // used to encode an ordered node pair as a single map key
}

// NewContractor returns a Contractor over graph using the given weight
// calculator. If log is nil, logging is suppressed.
func NewContractor(graph *levelgraph.Graph, weight WeightCalc, log *slog.Logger) *Contractor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Contractor{graph: graph, weight: weight, log: log}
}

// Run executes the full contraction loop and returns run statistics, or
// an *apperror.Error for EmptyGraph, EmptyPriorityQueue, or an internal
// DuplicateShortcut inconsistency.
func (c *Contractor) Run() (*Stats, error) {
	nodes := c.graph.Nodes()
	if len(nodes) == 0 {
		return nil, apperror.ErrEmptyPriorityQueue
	}

	if c.graph.EdgeCount() == 0 {
		return nil, apperror.ErrEmptyGraph
	}

	c.nodeBound = int64(len(nodes))
	for _, id := range nodes {
		if id >= c.nodeBound {
			c.nodeBound = id + 1
		}
	}

	stats := &Stats{Nodes: len(nodes)}
	c.prepareEdges(stats)

	pq := NewPrioQueue(len(nodes))
	if err := c.prepareNodes(pq, nodes); err != nil {
		return nil, err
	}

	updateSize := len(nodes) / 10
	if updateSize < 10 {
		updateSize = 10
	}

	level := 1
	iterations := 0
	tick := 0

	c.log.Info("contraction started", "nodes", len(nodes), "edges", stats.OriginalEdges, "update_size", updateSize)

	for !pq.IsEmpty() {
		if updateSize > 0 && iterations%updateSize == 0 && iterations > 0 {
			tick++
			if tick%2 == 0 {
				if err := c.refreshAll(pq); err != nil {
					return nil, err
				}
				stats.FullRefreshes++
			}
		}
		iterations++

		v, _, ok := pq.PollMin()
		if !ok {
			break
		}

		newPriority, err := c.calculatePriority(v)
		if err != nil {
			return nil, err
		}

		if minVal, hasMin := pq.PeekValue(); hasMin && newPriority > minVal {
			pq.Insert(v, newPriority)
			continue
		}

		added, merged, err := c.addShortcuts(v)
		if err != nil {
			return nil, err
		}
		stats.ShortcutsAdded += added
		stats.ShortcutsMerged += merged

		c.graph.SetLevel(v, level)
		level++

		for _, e := range c.graph.GetEdges(v) {
			n := e.Other(v)
			if c.graph.GetLevel(n) != 0 {
				continue
			}
			np, err := c.calculatePriority(n)
			if err != nil {
				return nil, err
			}
			pq.Insert(n, np)
		}
	}

	stats.Iterations = iterations
	c.log.Info("contraction finished", "shortcuts_added", stats.ShortcutsAdded, "shortcuts_merged", stats.ShortcutsMerged, "iterations", iterations)

	return stats, nil
}

// prepareEdges rewrites every original edge's stored Distance to the
// configured WeightCalc's output and sets its OriginalEdges to 1 where it
// is unset. Shortcuts installed by an earlier run are left untouched.
func (c *Contractor) prepareEdges(stats *Stats) {
	for _, e := range c.graph.Edges() {
		if e.IsShortcut() {
			continue
		}
		e.Distance = c.weight.Weight(e)
		if e.OriginalEdges == 0 {
			e.OriginalEdges = 1
		}
		stats.OriginalEdges++
	}
}

// prepareNodes seeds pq with the initial priority of every node that is
// not yet contracted.
func (c *Contractor) prepareNodes(pq *PrioQueue, nodes []int64) error {
	for _, v := range nodes {
		if c.graph.GetLevel(v) != 0 {
			continue
		}
		priority, err := c.calculatePriority(v)
		if err != nil {
			return err
		}
		pq.Insert(v, priority)
	}
	return nil
}

// refreshAll recomputes the priority of every still-uncontracted node.
// Run periodically (every second updateSize-sized tick) to compensate for
// lazy-update drift over long contraction runs.
func (c *Contractor) refreshAll(pq *PrioQueue) error {
	for _, v := range c.graph.Nodes() {
		if c.graph.GetLevel(v) != 0 {
			continue
		}
		priority, err := c.calculatePriority(v)
		if err != nil {
			return err
		}
		pq.Insert(v, priority)
	}
	return nil
}

// calculatePriority computes the node-ordering heuristic for v:
//
//	2*edgeDifference + 4*originalEdges + contractedNeighbours
//
// by simulating v's contraction (via findShortcuts) without mutating the
// graph.
func (c *Contractor) calculatePriority(v int64) (int, error) {
	shortcuts, err := c.findShortcuts(v)
	if err != nil {
		return 0, err
	}

	incident := c.graph.GetEdges(v)
	degree := len(incident)

	edgeDifference := len(shortcuts) - degree

	var originalEdges int32
	for _, s := range shortcuts {
		originalEdges += s.originalEdges
	}

	contractedNeighbours := 0
	for _, e := range incident {
		if e.IsShortcut() {
			contractedNeighbours++
		}
	}

	return 2*edgeDifference + 4*int(originalEdges) + contractedNeighbours, nil
}

// findShortcuts simulates contracting v: for every uncontracted
// predecessor u, it runs a witness search against every uncontracted
// successor w (w != u) to decide whether the path u -> v -> w is the
// unique shortest path. Surviving candidates are deduplicated against
// their reverse direction per the specification's pending-shortcut
// merge rule, and returned without touching the graph.
func (c *Contractor) findShortcuts(v int64) ([]*pendingShortcut, error) {
	pending := make(map[int64]*pendingShortcut)

	filter := NewLevelFilter(c.graph)

	for _, inEdge := range c.graph.GetIncoming(v) {
		u := inEdge.Other(v)
		if u == v || !filter.Accept(v, inEdge) {
			continue
		}

		var goals []Goal
		maxWeight := 0.0
		for _, outEdge := range c.graph.GetOutgoing(v) {
			w := outEdge.Other(v)
			if w == u || !filter.Accept(v, outEdge) {
				continue
			}
			via := inEdge.Distance + outEdge.Distance
			goals = append(goals, Goal{Node: w, OriginalEdges: outEdge.OriginalEdges, ViaWeight: via})
			if via > maxWeight {
				maxWeight = via
			}
		}
		if len(goals) == 0 {
			continue
		}

		reached := RunWitnessSearch(c.graph, u, goals, v)

		for _, g := range goals {
			if d, ok := reached[g.Node]; ok && d <= g.ViaWeight+levelgraph.Epsilon {
				continue // witness path exists, no shortcut needed
			}
			origEdges := inEdge.OriginalEdges + g.OriginalEdges
			if err := registerPending(pending, c.nodeBound, u, g.Node, g.ViaWeight, origEdges); err != nil {
				return nil, err
			}
		}
	}

	out := make([]*pendingShortcut, 0, len(pending))
	for _, s := range pending {
		out = append(out, s)
	}
	return out, nil
}

// registerPending inserts or merges a candidate shortcut (u -> w, dist)
// into pending, applying the specification's deduplication rule: a
// matching reverse-direction candidate with equal weight is merged into
// one bidirectional record; a same-direction candidate with a different
// weight is overwritten by the newer finding; a pair already present in
// both directions is an internal-consistency failure.
func registerPending(pending map[int64]*pendingShortcut, bound, u, w int64, dist float64, originalEdges int32) error {
	kFwd := u*bound + w
	kRev := w*bound + u

	_, hasFwd := pending[kFwd]
	rev, hasRev := pending[kRev]

	switch {
	case hasFwd && hasRev:
		return apperror.New(apperror.CodeDuplicateShortcut, "shortcut pending in both directions").
			WithDetails("from", u).
			WithDetails("to", w)

	case hasRev && floatEquals(rev.distance, dist):
		rev.flags = rev.flags.Merge(levelgraph.FlagBackward | levelgraph.FlagForward)
		return nil

	default:
		pending[kFwd] = &pendingShortcut{
			from:          u,
			to:            w,
			distance:      dist,
			flags:         levelgraph.ShortcutOneDirection,
			originalEdges: originalEdges,
		}
		return nil
	}
}

// addShortcuts performs findShortcuts(v) for real and installs every
// surviving candidate: an existing overwritable shortcut with a strictly
// greater distance is updated in place, otherwise a fresh shortcut edge
// is installed. Returns the number of freshly installed and
// in-place-merged-or-overwritten shortcuts.
func (c *Contractor) addShortcuts(v int64) (added, merged int, err error) {
	shortcuts, err := c.findShortcuts(v)
	if err != nil {
		return 0, 0, err
	}

	for _, s := range shortcuts {
		if existing := c.findOverwritable(s); existing != nil {
			existing.Flags = s.flags
			existing.Distance = s.distance
			existing.OriginalEdges = s.originalEdges
			existing.SkippedNode = v
			merged++
			continue
		}
		c.graph.Shortcut(s.from, s.to, s.distance, s.flags, s.originalEdges, v)
		added++
	}

	return added, merged, nil
}

// findOverwritable looks for an existing shortcut edge from s.from to
// s.to that CanBeOverwritten by s's flags and has a strictly greater
// stored distance than the candidate.
func (c *Contractor) findOverwritable(s *pendingShortcut) *levelgraph.Edge {
	for _, e := range c.graph.GetOutgoing(s.from) {
		if e.Other(s.from) != s.to {
			continue
		}
		if !e.IsShortcut() || !e.CanBeOverwritten(s.flags) {
			continue
		}
		if e.Distance > s.distance+levelgraph.Epsilon {
			return e
		}
	}
	return nil
}

func floatEquals(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < levelgraph.Epsilon
}
