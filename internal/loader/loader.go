// Package loader builds a levelgraph.Graph from an external road-network
// source: a Postgres nodes/edges schema or a JSON/CSV fixture file. Nodes
// and edges are always consumed in id order so the resulting graph's
// adjacency lists - and therefore downstream contraction tie-breaking -
// are reproducible across runs and across sources.
package loader

import "chrouter/pkg/levelgraph"

// NodeGeo carries the geographic position of a node. The core LevelGraph
// never reads it; it exists solely so the PDF report can plot an
// itinerary's physical route.
type NodeGeo struct {
	X float64
	Y float64
}

// GeoIndex maps a node id to its geographic position. Populated by every
// loader alongside the returned graph, kept as a side table per the
// layout described for the levelgraph collaborator.
type GeoIndex map[int64]NodeGeo

// roadTypeFromString maps the schema's/fixture's lowercase road_type
// string to a levelgraph.RoadType, defaulting to RoadTypeUnspecified for
// anything unrecognised rather than failing the load.
func roadTypeFromString(s string) levelgraph.RoadType {
	switch s {
	case "highway":
		return levelgraph.RoadTypeHighway
	case "primary":
		return levelgraph.RoadTypePrimary
	case "secondary":
		return levelgraph.RoadTypeSecondary
	case "local":
		return levelgraph.RoadTypeLocal
	case "urban":
		return levelgraph.RoadTypeUrban
	default:
		return levelgraph.RoadTypeUnspecified
	}
}

// addEdge installs edge into graph, adding the reverse direction too when
// bidirectional is set. Mirrors the teacher's ToResidualGraph handling of
// commonv1.Edge.Bidirectional, retargeted from a residual-capacity graph
// to a levelgraph.Graph.
func addEdge(graph *levelgraph.Graph, from, to int64, lengthM float64, roadType levelgraph.RoadType, bidirectional bool) {
	graph.AddEdge(from, to, lengthM, roadType)
	if bidirectional {
		graph.AddEdge(to, from, lengthM, roadType)
	}
}
