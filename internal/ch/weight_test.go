package ch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chrouter/pkg/levelgraph"
)

func TestShortestWeight_WeightAndRevert(t *testing.T) {
	sw := ShortestWeight{}
	e := &levelgraph.Edge{Length: 42.5}

	w := sw.Weight(e)
	assert.InDelta(t, 42.5, w, levelgraph.Epsilon)
	assert.InDelta(t, 42.5, sw.Revert(e, w), levelgraph.Epsilon)
}

func TestFastestWeight_DefaultSpeeds(t *testing.T) {
	fw := NewFastestWeight()

	highway := &levelgraph.Edge{Length: 110, RoadType: levelgraph.RoadTypeHighway}
	w := fw.Weight(highway)
	assert.InDelta(t, 1.0, w, 1e-6) // 110km at 110km/h = 1h

	got := fw.Revert(highway, w)
	assert.InDelta(t, 110.0, got, 1e-6)
}

func TestFastestWeight_WithSpeedOverride(t *testing.T) {
	fw := NewFastestWeight().WithSpeed(levelgraph.RoadTypeLocal, 20)

	e := &levelgraph.Edge{Length: 10, RoadType: levelgraph.RoadTypeLocal}
	w := fw.Weight(e)
	assert.InDelta(t, 0.5, w, 1e-6)
}

func TestFastestWeight_UnknownRoadTypeFallsBackToDefault(t *testing.T) {
	fw := NewFastestWeight()
	fw.speedKPH = map[levelgraph.RoadType]float64{} // drop every entry

	e := &levelgraph.Edge{Length: 50, RoadType: levelgraph.RoadTypeHighway}
	w := fw.Weight(e)
	assert.InDelta(t, 1.0, w, 1e-6) // 50 / 50 (unspecified default)
}
