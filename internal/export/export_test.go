package export

import (
	"encoding/xml"
	"strings"
	"testing"

	"agrarkarte/internal/geom"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y, s float64) geom.Geometry {
	return geom.NewPolygon(orb.Polygon{{{x, y}, {x + s, y}, {x + s, y + s}, {x, y + s}, {x, y}}})
}

func fixture(withBuffers bool) []*geom.Layer {
	named := &geom.SourceFeature{ID: "1", Geometry: square(0, 0, 1000), Properties: map[string]any{"name": "Große Wiese"}}
	unnamed := &geom.SourceFeature{ID: "2", Geometry: square(5000, 0, 1000), Properties: map[string]any{}}
	if withBuffers {
		cv := square(-100, -100, 1200)
		grb := square(-200, -200, 1400)
		named.ContingencyVolume = &cv
		named.GroundRiskBuffer = &grb
	}
	return []*geom.Layer{{ID: "l1", Name: "felder.geojson", Active: true, Features: []*geom.SourceFeature{named, unnamed}}}
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "felder", NormalizePrefix(""))
	assert.Equal(t, "felder", NormalizePrefix("   "))
	assert.Equal(t, "hof", NormalizePrefix("hof"))
	assert.Equal(t, "abcdefghijklmno", NormalizePrefix("abcdefghijklmno"))
	assert.Equal(t, "abcdefghijklmn", NormalizePrefix("abcdefghijklmnop"))
	assert.Equal(t, "äöüäöüäöüäöüäö", NormalizePrefix("äöüäöüäöüäöüäöü1"))
}

func TestReplaceUmlauts(t *testing.T) {
	assert.Equal(t, "Grosse Wiese Aeoeue", ReplaceUmlauts("Große Wiese Äöü"))
}

func TestGeoJSONNamesAndCategories(t *testing.T) {
	out, err := GeoJSON(fixture(true), GeoJSONOptions{Prefix: "Hof_", IncludeBuffers: true})
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(out)
	require.NoError(t, err)
	require.Len(t, fc.Features, 4)

	names := make([]string, 0, len(fc.Features))
	cats := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		names = append(names, f.Properties.MustString("name"))
		cats = append(cats, f.Properties.MustString("category"))
		assert.Equal(t, "felder.geojson", f.Properties.MustString("layer"))
	}
	assert.Equal(t, []string{"Hof_Grosse Wiese", "Hof_Grosse Wiese_CV", "Hof_Grosse Wiese_GRB", "Hof_2"}, names)
	assert.Equal(t, []string{"field", "contingency_volume", "ground_risk_buffer", "field"}, cats)

	poly, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.InDelta(t, 0, poly[0][0][0], 1e-9)
	assert.InDelta(t, 0.008983, poly[0][1][0], 1e-5, "meters converted back to degrees")
}

func TestGeoJSONWithoutBuffers(t *testing.T) {
	out, err := GeoJSON(fixture(true), GeoJSONOptions{})
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(out)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestGeoJSONEmpty(t *testing.T) {
	_, err := GeoJSON(nil, GeoJSONOptions{})
	assert.ErrorIs(t, err, ErrNoFeatures)
}

func TestKMLPreconditions(t *testing.T) {
	_, err := KML(nil, "")
	assert.ErrorIs(t, err, ErrNoFeatures)

	_, err = KML(fixture(false), "")
	assert.ErrorIs(t, err, ErrNoBuffers)
}

func TestKMLDocument(t *testing.T) {
	out, err := KML(fixture(true), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), xml.Header))

	var doc kmlRoot
	require.NoError(t, xml.Unmarshal(out, &doc))
	assert.Equal(t, "Agrarkarte felder with GRB/CV", doc.Document.Name)
	assert.Len(t, doc.Document.Styles, 6)

	var names []string
	for _, pm := range doc.Document.Placemarks {
		names = append(names, pm.Name+"|"+pm.StyleURL)
	}
	assert.Equal(t, []string{
		"Grosse Wiese_Field|#fieldStyle",
		"Grosse Wiese_Field|#fieldLabelStyle",
		"Grosse Wiese_CV|#cvStyle",
		"Grosse Wiese_CV|#cvLabelStyle",
		"Grosse Wiese_GRB|#grbStyle",
		"Grosse Wiese_GRB|#grbLabelStyle",
		"Unnamed Field_Field|#fieldStyle",
		"Unnamed Field_Field|#fieldLabelStyle",
	}, names)

	field := doc.Document.Placemarks[0]
	require.NotNil(t, field.Polygon)
	assert.Equal(t, "Original field: Große Wiese", field.Description)
	assert.Len(t, strings.Fields(field.Polygon.Outer.Coordinates), 5)
	assert.NotNil(t, doc.Document.Placemarks[1].Point)
}

func TestKMLPrefixedNames(t *testing.T) {
	out, err := KML(fixture(true), "Müller")
	require.NoError(t, err)
	var doc kmlRoot
	require.NoError(t, xml.Unmarshal(out, &doc))
	assert.Equal(t, "Agrarkarte Müller with GRB/CV", doc.Document.Name)
	assert.Equal(t, "Mueller_Grosse Wiese_Field", doc.Document.Placemarks[0].Name)
	assert.Equal(t, "agrarkarte_Müller_GRB-CV.kml", KMLFileName("Müller"))
	assert.Equal(t, "agrarkarte_felder_GRB-CV.kml", KMLFileName(""))
}
