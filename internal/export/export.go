// 包 export：地块与缓冲结果导出（GeoJSON、KML）
// 约束：输出坐标为 EPSG:4326；每个要素带显示名称与类别标签（field / contingency_volume / ground_risk_buffer）。
package export

import (
	"errors"
	"strings"

	"agrarkarte/internal/geom"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

var (
	ErrNoFeatures = errors.New("export: no fields loaded")
	ErrNoBuffers  = errors.New("export: no contingency volume or ground risk buffer computed")
)

// Category：导出要素类别
type Category string

const (
	CategoryField             Category = "field"
	CategoryContingencyVolume Category = "contingency_volume"
	CategoryGroundRiskBuffer  Category = "ground_risk_buffer"
)

const (
	defaultPrefix = "felder"
	unnamedField  = "Unnamed Field"
)

var umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "Ä", "Ae", "Ö", "Oe", "Ü", "Ue", "ß", "ss")

// ReplaceUmlauts：德语变音字母转写，兼容只支持 ASCII 名称的下游软件
func ReplaceUmlauts(s string) string { return umlauts.Replace(s) }

// NormalizePrefix：空前缀回退为 felder；超过 15 个字符时截断为 14 个
func NormalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return defaultPrefix
	}
	if r := []rune(p); len(r) > 15 {
		return string(r[:14])
	}
	return p
}

// entry：导出的单个地块
type entry struct {
	name    string
	layer   string
	feature *geom.SourceFeature
}

func collect(layers []*geom.Layer) []entry {
	var out []entry
	for _, l := range layers {
		for _, f := range l.Features {
			out = append(out, entry{name: f.Name(), layer: l.Name, feature: f})
		}
	}
	return out
}

// toWGS84：模型坐标（EPSG:3857）转经纬度，不修改输入
func toWGS84(g geom.Geometry) orb.Geometry {
	return project.Geometry(g.Clone().Orb(), project.Mercator.ToWGS84)
}
