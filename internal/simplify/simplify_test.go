package simplify

import (
	"testing"

	"agrarkarte/internal/geom"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareWithMidpoint() orb.Ring {
	return orb.Ring{{0, 0}, {5, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
}

func TestRingRemovesCollinearMidpoint(t *testing.T) {
	in := squareWithMidpoint()
	out := Ring(in, 1e-6)
	assert.Len(t, out, len(in)-1)
	assert.Equal(t, orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}, out)
	assert.Equal(t, out[0], out[len(out)-1])
}

func TestRingIdempotent(t *testing.T) {
	for _, in := range []orb.Ring{
		squareWithMidpoint(),
		{{0, 0}, {3, 0.01}, {6, 0}, {9, 0.02}, {12, 0}, {12, 8}, {6, 8.01}, {0, 8}, {0, 0}},
	} {
		once := Ring(in, 1)
		twice := Ring(once, 1)
		assert.Equal(t, once, twice)
		assert.LessOrEqual(t, len(once), len(in))
	}
}

func TestRingKeepsFloor(t *testing.T) {
	in := orb.Ring{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {0, 0}}
	assert.Equal(t, in, Ring(in, 1000))

	tri := orb.Ring{{0, 0}, {10, 0}, {0, 10}, {0, 0}}
	assert.Equal(t, tri, Ring(tri, 1e9))
}

func TestRingNoCollinearVerticesUnchanged(t *testing.T) {
	in := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	assert.Equal(t, in, Ring(in, 1e-6))
}

func TestLayersCountsAndSkips(t *testing.T) {
	good := &geom.SourceFeature{Geometry: geom.NewMultiPolygon(orb.MultiPolygon{
		{squareWithMidpoint()},
		{squareWithMidpoint(), orb.Ring{{2, 2}, {3, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}}},
	})}
	bad := &geom.SourceFeature{Geometry: geom.NewPolygon(orb.Polygon{{{0, 0}, {1, 1}}})}
	inactive := &geom.SourceFeature{Geometry: geom.NewPolygon(orb.Polygon{squareWithMidpoint()})}

	layers := []*geom.Layer{
		{Name: "a", Active: true, Features: []*geom.SourceFeature{good, bad}},
		{Name: "b", Active: false, Features: []*geom.SourceFeature{inactive}},
	}
	res := Layers(layers, 1e-6)
	assert.Equal(t, 3, res.Removed)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, inactive.Geometry.Parts[0][0], 6)
	require.Len(t, bad.Geometry.Parts[0][0], 2)
}
