package ingest

import (
	"testing"

	"agrarkarte/internal/geom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fields = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 7, "properties": {"FLUR": "Flur 12"},
     "geometry": {"type": "Polygon", "coordinates": [
       [[10.0, 53.5], [10.01, 53.5], [10.01, 53.51], [10.0, 53.51]],
       [[10.002, 53.502], [10.003, 53.502], [10.002, 53.502]]
     ]}},
    {"type": "Feature", "properties": {"name": "Weg"},
     "geometry": {"type": "LineString", "coordinates": [[10, 53], [11, 54]]}},
    {"type": "Feature", "properties": null,
     "geometry": {"type": "MultiPolygon", "coordinates": [
       [[[10.1, 53.5], [10.11, 53.5], [10.11, 53.51], [10.1, 53.5]]],
       [[[10.2, 53.5], [10.21, 53.5], [10.2, 53.5]]]
     ]}},
    {"type": "Feature", "properties": {}, "geometry": null}
  ]
}`

func TestLoadConvertsAndCleans(t *testing.T) {
	res, err := Load(Upload{Name: "felder.geojson", Data: []byte(fields)})
	require.NoError(t, err)
	assert.Equal(t, CRSWGS84, res.CRS)
	require.Len(t, res.Features, 2)
	assert.Equal(t, 2, res.Skipped)

	f := res.Features[0]
	assert.Equal(t, "7", f.ID)
	assert.Equal(t, "Flur 12", f.Name())
	assert.Equal(t, geom.KindPolygon, f.Geometry.Kind)
	require.Len(t, f.Geometry.Parts[0], 1, "degenerate hole dropped")
	ext := f.Geometry.Parts[0][0]
	assert.Len(t, ext, 5)
	assert.Equal(t, ext[0], ext[4])
	assert.InDelta(t, 1113194.9, ext[0][0], 0.1)
	assert.InDelta(t, 7076025.3, ext[0][1], 1)

	m := res.Features[1]
	assert.Equal(t, geom.KindMultiPolygon, m.Geometry.Kind)
	assert.Len(t, m.Geometry.Parts, 1)
	assert.NotNil(t, m.Properties)
	assert.Equal(t, "", m.Name())
}

func TestLoadWebMercatorPassthrough(t *testing.T) {
	data := `{"type": "Feature", "properties": {"name": "A"}, "geometry": {"type": "Polygon",
	  "coordinates": [[[1000, 2000], [1100, 2000], [1100, 2100], [1000, 2000]]]}}`
	res, err := Load(Upload{Data: []byte(data), CRS: "EPSG:3857"})
	require.NoError(t, err)
	require.Len(t, res.Features, 1)
	assert.Equal(t, 1000.0, res.Features[0].Geometry.Parts[0][0][0][0])
}

func TestLoadDeclaredCRSMember(t *testing.T) {
	data := `{"type": "FeatureCollection",
	  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::3857"}},
	  "features": [{"type": "Feature", "properties": {}, "geometry": {"type": "Polygon",
	    "coordinates": [[[1000, 2000], [1100, 2000], [1100, 2100], [1000, 2000]]]}}]}`
	res, err := Load(Upload{Data: []byte(data)})
	require.NoError(t, err)
	assert.Equal(t, CRSWebMercator, res.CRS)
}

func TestLoadRejects(t *testing.T) {
	_, err := Load(Upload{Data: []byte(`{"type": "Topology"}`)})
	assert.ErrorIs(t, err, ErrSchema)

	_, err = Load(Upload{Data: []byte(`{"type": "FeatureCollection", "features": [
	  {"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [1, 2]}}]}`)})
	assert.ErrorIs(t, err, ErrNoPolygons)

	_, err = Load(Upload{Data: []byte(fields), CRS: "EPSG:25832"})
	assert.ErrorIs(t, err, ErrCRS)
}
