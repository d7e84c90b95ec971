package export

import (
	"strconv"

	"agrarkarte/internal/geom"

	"github.com/paulmach/orb/geojson"
)

// GeoJSONOptions：GeoJSON 导出选项
type GeoJSONOptions struct {
	Prefix         string
	IncludeBuffers bool
}

// 文档注释：导出 GeoJSON 要素集合
// 背景：地块名称为“前缀 + 显示名称（缺省为序号）”并做变音转写；属性只保留 name 与类别标签。
// 约束：无地块时返回 ErrNoFeatures；IncludeBuffers 时附带已计算的 CV/GRB。
func GeoJSON(layers []*geom.Layer, opts GeoJSONOptions) ([]byte, error) {
	es := collect(layers)
	if len(es) == 0 {
		return nil, ErrNoFeatures
	}
	fc := geojson.NewFeatureCollection()
	for i, e := range es {
		name := e.name
		if name == "" {
			name = strconv.Itoa(i + 1)
		}
		name = ReplaceUmlauts(opts.Prefix + name)
		fc.Append(feature(e.feature.Geometry, name, CategoryField, e.layer))
		if !opts.IncludeBuffers {
			continue
		}
		if cv := e.feature.ContingencyVolume; cv != nil {
			fc.Append(feature(*cv, name+"_CV", CategoryContingencyVolume, e.layer))
		}
		if grb := e.feature.GroundRiskBuffer; grb != nil {
			fc.Append(feature(*grb, name+"_GRB", CategoryGroundRiskBuffer, e.layer))
		}
	}
	return fc.MarshalJSON()
}

func feature(g geom.Geometry, name string, cat Category, layer string) *geojson.Feature {
	f := geojson.NewFeature(toWGS84(g))
	f.Properties["name"] = name
	f.Properties["category"] = string(cat)
	f.Properties["layer"] = layer
	return f
}
