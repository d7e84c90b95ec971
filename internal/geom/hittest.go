package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// FeatureRef：图层内要素的定位
type FeatureRef struct {
	Layer   string `json:"layer"`
	Feature int    `json:"feature"`
}

// VertexHit：指针命中的顶点
type VertexHit struct {
	FeatureRef
	VertexRef
	Distance float64 `json:"distance"`
}

// 文档注释：点入多边形判定（Even-Odd，洞内不算命中）
// 背景：用于选取插入洞的目标地块；先做包围盒过滤再逐部件判定。
func (g Geometry) Contains(pt orb.Point) bool {
	if !g.Bound().Contains(pt) {
		return false
	}
	for _, p := range g.Parts {
		if len(p) == 0 {
			continue
		}
		if planar.PolygonContains(p, pt) {
			return true
		}
	}
	return false
}

// PartAt：包含 pt 的部件下标
func (g Geometry) PartAt(pt orb.Point) (int, bool) {
	for i, p := range g.Parts {
		if len(p) > 0 && planar.PolygonContains(p, pt) {
			return i, true
		}
	}
	return 0, false
}

// FeatureAt：激活图层中包含 pt 的第一个要素（后上传的优先）
func (r *Registry) FeatureAt(pt orb.Point) (FeatureRef, bool) {
	for i := len(r.layers) - 1; i >= 0; i-- {
		l := r.layers[i]
		if !l.Active {
			continue
		}
		for fi, f := range l.Features {
			if f.Geometry.Contains(pt) {
				return FeatureRef{Layer: l.ID, Feature: fi}, true
			}
		}
	}
	return FeatureRef{}, false
}

// 文档注释：最近顶点命中
// 背景：指针点击/拖拽只携带地图坐标，需要换算为 (部件, 环, 顶点) 地址。
// 约束：tolerance 为地图单位（米）；闭合重复点不参与命中，统一映射到顶点 0。
func (r *Registry) VertexAt(pt orb.Point, tolerance float64) (VertexHit, bool) {
	best := VertexHit{Distance: math.Inf(1)}
	found := false
	for _, l := range r.layers {
		if !l.Active {
			continue
		}
		for fi, f := range l.Features {
			b := f.Geometry.Bound().Pad(tolerance)
			if !b.Contains(pt) {
				continue
			}
			for pi, p := range f.Geometry.Parts {
				for ri, ring := range p {
					for vi := 0; vi < len(ring)-1; vi++ {
						d := planar.Distance(pt, ring[vi])
						if d <= tolerance && d < best.Distance {
							best = VertexHit{
								FeatureRef: FeatureRef{Layer: l.ID, Feature: fi},
								VertexRef:  VertexRef{Part: pi, Ring: ri, Vertex: vi},
								Distance:   d,
							}
							found = true
						}
					}
				}
			}
		}
	}
	return best, found
}

// Feature：按定位取要素
func (r *Registry) Feature(ref FeatureRef) (*SourceFeature, bool) {
	l, ok := r.Get(ref.Layer)
	if !ok || ref.Feature < 0 || ref.Feature >= len(l.Features) {
		return nil, false
	}
	return l.Features[ref.Feature], true
}
