// Package ch implements the contraction hierarchies preprocessor and its
// bidirectional CH-aware query: edge weight rewriting, the node priority
// heuristic, witness search, the lazy-update contraction loop, and the
// upward-search query that exploits the resulting hierarchy.
package ch

import "chrouter/pkg/levelgraph"

// WeightCalc maps an edge to a scalar weight used for contraction and
// query, and reverses that mapping to recover a physical distance when
// reporting results. Shortest and Fastest are the two concrete variants
// the preprocessor ships with; a caller may supply any other
// implementation as long as Weight is non-negative and monotone in the
// edge's physical length.
type WeightCalc interface {
	// Weight returns the overlay weight for edge e.
	Weight(e *levelgraph.Edge) float64
	// Revert recovers a physical distance (metres) for an original edge
	// given a previously computed weight. It is only ever called on
	// original edges (SkippedNode == levelgraph.NoSkip), after CHQuery has
	// unrolled every shortcut back to its constituent original edges.
	Revert(e *levelgraph.Edge, weight float64) float64
}

// ShortestWeight treats the edge's physical length as its weight
// verbatim, so contracting and querying under it yields the
// geographically shortest route.
type ShortestWeight struct{}

// Weight returns e.Length unchanged.
func (ShortestWeight) Weight(e *levelgraph.Edge) float64 { return e.Length }

// Revert is the identity function: the weight already is the distance.
func (ShortestWeight) Revert(_ *levelgraph.Edge, weight float64) float64 { return weight }

// defaultSpeedKPH gives a plausible average travel speed, in km/h, per
// road classification. Used only by FastestWeight.
var defaultSpeedKPH = map[levelgraph.RoadType]float64{
	levelgraph.RoadTypeHighway:   110,
	levelgraph.RoadTypePrimary:   80,
	levelgraph.RoadTypeSecondary: 60,
	levelgraph.RoadTypeLocal:     40,
	levelgraph.RoadTypeUrban:     30,
	levelgraph.RoadTypeUnspecified: 50,
}

// FastestWeight derives a travel-time weight from an edge's physical
// length and its road type's assumed speed, so contracting and querying
// under it yields the quickest route rather than the shortest.
type FastestWeight struct {
	speedKPH map[levelgraph.RoadType]float64
}

// NewFastestWeight returns a FastestWeight using the package's default
// per-road-type speed table.
func NewFastestWeight() *FastestWeight {
	speeds := make(map[levelgraph.RoadType]float64, len(defaultSpeedKPH))
	for k, v := range defaultSpeedKPH {
		speeds[k] = v
	}
	return &FastestWeight{speedKPH: speeds}
}

// WithSpeed overrides the assumed speed for a road type and returns the
// receiver for chaining.
func (f *FastestWeight) WithSpeed(roadType levelgraph.RoadType, kph float64) *FastestWeight {
	f.speedKPH[roadType] = kph
	return f
}

func (f *FastestWeight) speedFor(roadType levelgraph.RoadType) float64 {
	if speed, ok := f.speedKPH[roadType]; ok && speed > 0 {
		return speed
	}
	return defaultSpeedKPH[levelgraph.RoadTypeUnspecified]
}

// Weight returns e.Length divided by its road type's assumed speed in
// km/h: a travel time in hours when Length is given in kilometres.
func (f *FastestWeight) Weight(e *levelgraph.Edge) float64 {
	return e.Length / f.speedFor(e.RoadType)
}

// Revert multiplies weight by the assumed speed for e's road type,
// recovering the physical length in the same unit as e.Length.
func (f *FastestWeight) Revert(e *levelgraph.Edge, weight float64) float64 {
	return weight * f.speedFor(e.RoadType)
}
