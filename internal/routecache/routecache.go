// Package routecache caches CHQuery route results behind the generic
// pkg/cache.Cache interface. It replaces the teacher's SolverCache
// (which hashed a protobuf Graph + Algorithm pair): the cache key here
// hashes a canonicalised levelgraph.Graph plus (weighting, source,
// target), since a contraction hierarchy's answer for a given node pair
// is fixed once both the graph and the weighting it was built with are
// fixed.
package routecache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"chrouter/internal/ch"
	"chrouter/pkg/cache"
	"chrouter/pkg/levelgraph"
)

// Store caches *ch.RouteResult values. Grounded on
// services/solver-svc/internal/service/solver.go's checkCache pattern: a
// cache miss is never an error, only a signal to fall through to a real
// computation.
type Store struct {
	cache cache.Cache
	ttl   time.Duration
}

// New returns a Store backed by c. A nil c makes every Get report a miss
// and every Set a no-op, so callers can wire routecache unconditionally
// and simply omit the cache in configurations that disable it.
func New(c cache.Cache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

// cachedEdge is the wire-safe projection of a levelgraph.Edge: enough to
// rebuild an itinerary report without needing to dereference back into
// the live graph (which may have been rebuilt since the value was
// cached).
type cachedEdge struct {
	From          int64            `json:"from"`
	To            int64            `json:"to"`
	Distance      float64          `json:"distance"`
	Flags         levelgraph.Flags `json:"flags"`
	OriginalEdges int32            `json:"original_edges"`
	SkippedNode   int64            `json:"skipped_node"`
	Length        float64          `json:"length"`
	RoadType      levelgraph.RoadType `json:"road_type"`
}

type cachedResult struct {
	Nodes    []int64      `json:"nodes"`
	Weight   float64      `json:"weight"`
	Distance float64      `json:"distance"`
	Edges    []cachedEdge `json:"edges"`
}

// Get looks up the cached route for (graph, weighting, source, target).
// A miss - including a nil Store, a nil underlying cache, or a
// deserialization failure - returns (nil, false, nil): the caller should
// always be prepared to compute the route itself.
func (s *Store) Get(ctx context.Context, graph *levelgraph.Graph, weighting string, source, target int64) (*ch.RouteResult, bool, error) {
	if s == nil || s.cache == nil {
		return nil, false, nil
	}

	raw, err := s.cache.Get(ctx, Key(graph, weighting, source, target))
	if err != nil {
		if err == cache.ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cr cachedResult
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, false, nil
	}

	edges := make([]*levelgraph.Edge, len(cr.Edges))
	for i, e := range cr.Edges {
		edges[i] = &levelgraph.Edge{
			From:          e.From,
			To:            e.To,
			Distance:      e.Distance,
			Flags:         e.Flags,
			OriginalEdges: e.OriginalEdges,
			SkippedNode:   e.SkippedNode,
			Length:        e.Length,
			RoadType:      e.RoadType,
		}
	}

	return &ch.RouteResult{Nodes: cr.Nodes, Weight: cr.Weight, Distance: cr.Distance, Edges: edges}, true, nil
}

// Set stores result under the key derived from (graph, weighting,
// source, target). A nil Store or underlying cache makes this a no-op.
func (s *Store) Set(ctx context.Context, graph *levelgraph.Graph, weighting string, source, target int64, result *ch.RouteResult) error {
	if s == nil || s.cache == nil || result == nil {
		return nil
	}

	cr := cachedResult{Nodes: result.Nodes, Weight: result.Weight, Distance: result.Distance}
	cr.Edges = make([]cachedEdge, len(result.Edges))
	for i, e := range result.Edges {
		cr.Edges[i] = cachedEdge{
			From:          e.From,
			To:            e.To,
			Distance:      e.Distance,
			Flags:         e.Flags,
			OriginalEdges: e.OriginalEdges,
			SkippedNode:   e.SkippedNode,
			Length:        e.Length,
			RoadType:      e.RoadType,
		}
	}

	raw, err := json.Marshal(cr)
	if err != nil {
		return err
	}

	return s.cache.Set(ctx, Key(graph, weighting, source, target), raw, s.ttl)
}

// Key canonicalises graph (sorted node ids, each node's sorted outgoing
// edges) and hashes it together with weighting/source/target into a
// single cache key. Grounded on the teacher's BuildSolveKey /
// graphToCanonical sort-then-concatenate idiom, retargeted from a
// protobuf Graph to a levelgraph.Graph.
func Key(graph *levelgraph.Graph, weighting string, source, target int64) string {
	var buf bytes.Buffer

	nodes := graph.Nodes()
	for _, id := range nodes {
		fmt.Fprintf(&buf, "n%d;", id)
		edges := append([]*levelgraph.Edge(nil), graph.GetOutgoing(id)...)
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].To != edges[j].To {
				return edges[i].To < edges[j].To
			}
			return edges[i].Distance < edges[j].Distance
		})
		for _, e := range edges {
			fmt.Fprintf(&buf, "e%d>%d:%g:%d;", e.From, e.To, e.Distance, e.Flags)
		}
	}
	fmt.Fprintf(&buf, "|w=%s|s=%d|t=%d", weighting, source, target)

	return "route:" + cache.QuickHash(buf.Bytes())
}
