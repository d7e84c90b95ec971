package display

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestMemoryOrdersByZIndex(t *testing.T) {
	m := NewMemory()
	m.Show(Layer{ID: "cv", ZIndex: ZContingency})
	m.Show(Layer{ID: "markers", ZIndex: ZVertexMarkers})
	m.Show(Layer{ID: "grb", ZIndex: ZGroundRisk})
	m.Show(Layer{ID: "cv", ZIndex: ZContingency, Name: "CV_acker"})

	ls := m.Layers()
	assert.Len(t, ls, 3)
	assert.Equal(t, []string{"grb", "cv", "markers"}, []string{ls[0].ID, ls[1].ID, ls[2].ID})
	assert.Equal(t, "CV_acker", ls[1].Name)

	m.Remove("cv")
	_, ok := m.Layer("cv")
	assert.False(t, ok)
}

func TestMemoryFit(t *testing.T) {
	m := NewMemory()
	_, ok := m.View()
	assert.False(t, ok)
	b := orb.Bound{Min: orb.Point{1, 2}, Max: orb.Point{3, 4}}
	m.Fit(b)
	got, ok := m.View()
	assert.True(t, ok)
	assert.Equal(t, b, got)
}
