package geom

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y, s float64) orb.Ring {
	return orb.Ring{{x, y}, {x + s, y}, {x + s, y + s}, {x, y + s}, {x, y}}
}

func TestFeatureNamePriority(t *testing.T) {
	f := &SourceFeature{Properties: map[string]any{"FLUR": "Flur 3", "Name": "", "BEZEICHNUNG": "x"}}
	assert.Equal(t, "Flur 3", f.Name())

	f.Properties["NAME"] = "Acker Nord"
	assert.Equal(t, "Acker Nord", f.Name())

	f.Properties["name"] = "acker"
	assert.Equal(t, "acker", f.Name())

	assert.Equal(t, "", (&SourceFeature{}).Name())
	assert.Equal(t, "12", (&SourceFeature{Properties: map[string]any{"FLUR": 12.0}}).Name())
}

func TestFeatureKeyFallback(t *testing.T) {
	f := &SourceFeature{Geometry: NewPolygon(orb.Polygon{square(1000.5, 2000, 10)})}
	assert.Equal(t, "[1000.5,2000]", f.Key())

	f.ID = "field-7"
	assert.Equal(t, "field-7", f.Key())
}

func TestMatchKeyScopedByLayer(t *testing.T) {
	r := NewRegistry()
	a := r.Add("a.geojson", []*SourceFeature{{ID: "0", Geometry: NewPolygon(orb.Polygon{square(0, 0, 10)})}})
	b := r.Add("b.geojson", []*SourceFeature{{ID: "0", Geometry: NewPolygon(orb.Polygon{square(0, 0, 10)})}})
	assert.Equal(t, a.ID+"/0", a.MatchKey(a.Features[0]))
	assert.NotEqual(t, a.MatchKey(a.Features[0]), b.MatchKey(b.Features[0]))

	// 共用角点的无 id 要素
	a.Features[0].ID, b.Features[0].ID = "", ""
	assert.NotEqual(t, a.MatchKey(a.Features[0]), b.MatchKey(b.Features[0]))
}

func TestFromOrb(t *testing.T) {
	g, err := FromOrb(orb.Polygon{square(0, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, KindPolygon, g.Kind)
	assert.Len(t, g.Parts, 1)

	g, err = FromOrb(orb.MultiPolygon{{square(0, 0, 1)}, {square(5, 5, 1)}})
	require.NoError(t, err)
	assert.Equal(t, KindMultiPolygon, g.Kind)
	assert.Len(t, g.Parts, 2)
	_, isMulti := g.Orb().(orb.MultiPolygon)
	assert.True(t, isMulti)

	_, err = FromOrb(orb.LineString{{0, 0}, {1, 1}})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestCloneIsIndependent(t *testing.T) {
	g := NewPolygon(orb.Polygon{square(0, 0, 1)})
	c := g.Clone()
	c.Parts[0][0][0] = orb.Point{9, 9}
	assert.Equal(t, orb.Point{0, 0}, g.Parts[0][0][0])
}

func TestCloseRing(t *testing.T) {
	r := Close(orb.Ring{{0, 0}, {1, 0}, {1, 1}})
	assert.Len(t, r, 4)
	assert.True(t, ValidRing(r))
	assert.Len(t, Close(r), 4)
	assert.False(t, ValidRing(orb.Ring{{0, 0}, {1, 0}, {0, 0}}))
}

func TestContainsHonoursHoles(t *testing.T) {
	g := NewPolygon(orb.Polygon{square(0, 0, 100), square(40, 40, 20)})
	assert.True(t, g.Contains(orb.Point{10, 10}))
	assert.False(t, g.Contains(orb.Point{50, 50}))
	assert.False(t, g.Contains(orb.Point{150, 50}))

	mp := NewMultiPolygon(orb.MultiPolygon{{square(0, 0, 10)}, {square(100, 0, 10)}})
	i, ok := mp.PartAt(orb.Point{105, 5})
	require.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = mp.PartAt(orb.Point{50, 5})
	assert.False(t, ok)
}

func TestRegistryHitTests(t *testing.T) {
	reg := NewRegistry()
	l := reg.Add("felder.geojson", []*SourceFeature{
		{Geometry: NewPolygon(orb.Polygon{square(0, 0, 100)})},
		{Geometry: NewMultiPolygon(orb.MultiPolygon{{square(500, 0, 50)}, {square(700, 0, 50), square(710, 10, 10)}})},
	})

	hit, ok := reg.VertexAt(orb.Point{711, 11}, 3)
	require.True(t, ok)
	assert.Equal(t, l.ID, hit.Layer)
	assert.Equal(t, 1, hit.Feature)
	assert.Equal(t, VertexRef{Part: 1, Ring: 1, Vertex: 0}, hit.VertexRef)

	_, ok = reg.VertexAt(orb.Point{50, 50}, 3)
	assert.False(t, ok)

	ref, ok := reg.FeatureAt(orb.Point{520, 20})
	require.True(t, ok)
	assert.Equal(t, 1, ref.Feature)

	l.Active = false
	_, ok = reg.FeatureAt(orb.Point{520, 20})
	assert.False(t, ok)
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	a := reg.Add("a", nil)
	b := reg.Add("b", nil)
	removed, ok := reg.Remove(a.ID)
	require.True(t, ok)
	assert.Equal(t, "a", removed.Name)
	assert.Equal(t, []*Layer{b}, reg.All())
	_, ok = reg.Remove(a.ID)
	assert.False(t, ok)
}
