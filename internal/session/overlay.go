package session

import (
	"agrarkarte/internal/display"
	"agrarkarte/internal/geom"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const pinsLayerID = "zone_pins"

func fieldHandle(id string) string  { return "field:" + id }
func vertexHandle(id string) string { return "vertices:" + id }
func cvHandle(id string) string     { return "cv:" + id }
func grbHandle(id string) string    { return "grb:" + id }

func displayName(prefix, name string) string {
	if name == "" {
		name = "unnamed"
	}
	return prefix + name
}

// fieldOverlay：图层地块面（模型坐标）
func fieldOverlay(l *geom.Layer) display.Layer {
	fc := geojson.NewFeatureCollection()
	for i, f := range l.Features {
		gf := geojson.NewFeature(f.Geometry.Orb())
		gf.Properties["index"] = i
		gf.Properties["key"] = l.MatchKey(f)
		gf.Properties["name"] = f.Name()
		fc.Append(gf)
	}
	return display.Layer{ID: fieldHandle(l.ID), Name: l.Name, ZIndex: display.ZField, Style: display.FieldStyle, Features: fc}
}

// vertexOverlay：每个要素一个 MultiPoint，闭合重复点不显示
func vertexOverlay(l *geom.Layer) display.Layer {
	fc := geojson.NewFeatureCollection()
	for i, f := range l.Features {
		var mp orb.MultiPoint
		for _, p := range f.Geometry.Parts {
			for _, r := range p {
				if len(r) > 1 {
					mp = append(mp, r[:len(r)-1]...)
				}
			}
		}
		gf := geojson.NewFeature(mp)
		gf.Properties["index"] = i
		fc.Append(gf)
	}
	return display.Layer{ID: vertexHandle(l.ID), Name: displayName("Vertices_", l.Name), ZIndex: display.ZVertexMarkers, Style: display.VertexStyle, Features: fc}
}

// bufferOverlays：CV 与 GRB 两个叠加层；没有任何结果时返回 false
func bufferOverlays(l *geom.Layer) (cv, grb display.Layer, ok bool) {
	cvFC := geojson.NewFeatureCollection()
	grbFC := geojson.NewFeatureCollection()
	for i, f := range l.Features {
		if f.ContingencyVolume != nil {
			gf := geojson.NewFeature(f.ContingencyVolume.Orb())
			gf.Properties["index"] = i
			cvFC.Append(gf)
		}
		if f.GroundRiskBuffer != nil {
			gf := geojson.NewFeature(f.GroundRiskBuffer.Orb())
			gf.Properties["index"] = i
			grbFC.Append(gf)
		}
	}
	if len(cvFC.Features) == 0 && len(grbFC.Features) == 0 {
		return display.Layer{}, display.Layer{}, false
	}
	cv = display.Layer{ID: cvHandle(l.ID), Name: displayName("CV_", l.Name), ZIndex: display.ZContingency, Style: display.ContingencyStyle, Features: cvFC}
	grb = display.Layer{ID: grbHandle(l.ID), Name: displayName("GRB_", l.Name), ZIndex: display.ZGroundRisk, Style: display.GroundRiskStyle, Features: grbFC}
	return cv, grb, true
}

func pinsOverlay(markers []orb.Point) display.Layer {
	fc := geojson.NewFeatureCollection()
	for _, m := range markers {
		fc.Append(geojson.NewFeature(m))
	}
	return display.Layer{ID: pinsLayerID, Name: "Zone lookups", ZIndex: display.ZPins, Style: display.PinStyle, Features: fc}
}
