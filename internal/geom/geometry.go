// 包 geom：地块几何模型（Polygon/MultiPolygon 标签联合、要素、图层登记）
// 约束：所有坐标均位于同一平面投影参考系（EPSG:3857，单位米）；经纬度转换只发生在导入/导出边界。
package geom

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// MinRingLen：闭合环的最小长度（3 个不同顶点 + 闭合重复点）
const MinRingLen = 4

var (
	ErrUnsupported = errors.New("geom: unsupported geometry type")
	ErrDegenerate  = errors.New("geom: degenerate ring")
)

// Kind：几何类型标签
type Kind uint8

const (
	KindPolygon Kind = iota + 1
	KindMultiPolygon
)

func (k Kind) String() string {
	switch k {
	case KindPolygon:
		return "Polygon"
	case KindMultiPolygon:
		return "MultiPolygon"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// 文档注释：几何标签联合 {Polygon, MultiPolygon}
// 背景：统一以 Parts 承载环数组，Polygon 恰好一个部件；调用方对 Kind 做穷举分支。
// 约束：每个环只属于一个部件，每个部件只属于一个几何；环 0 为外环，其余为洞。
type Geometry struct {
	Kind  Kind
	Parts []orb.Polygon
}

// NewPolygon：单部件几何
func NewPolygon(p orb.Polygon) Geometry {
	return Geometry{Kind: KindPolygon, Parts: []orb.Polygon{p}}
}

// NewMultiPolygon：多部件几何
func NewMultiPolygon(mp orb.MultiPolygon) Geometry {
	return Geometry{Kind: KindMultiPolygon, Parts: []orb.Polygon(mp)}
}

// FromOrb：从 orb 几何构造标签联合；非面状类型返回 ErrUnsupported
func FromOrb(g orb.Geometry) (Geometry, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return NewPolygon(v), nil
	case orb.MultiPolygon:
		return NewMultiPolygon(v), nil
	case nil:
		return Geometry{}, fmt.Errorf("%w: nil", ErrUnsupported)
	default:
		return Geometry{}, fmt.Errorf("%w: %s", ErrUnsupported, g.GeoJSONType())
	}
}

// Orb：转回 orb 几何，供缓冲、导出与显示使用
func (g Geometry) Orb() orb.Geometry {
	switch g.Kind {
	case KindPolygon:
		if len(g.Parts) == 0 {
			return orb.Polygon{}
		}
		return g.Parts[0]
	case KindMultiPolygon:
		return orb.MultiPolygon(g.Parts)
	}
	return nil
}

// IsZero：未赋值的几何（Kind 为 0）
func (g Geometry) IsZero() bool { return g.Kind == 0 }

func (g Geometry) Bound() orb.Bound {
	switch g.Kind {
	case KindPolygon, KindMultiPolygon:
		return orb.MultiPolygon(g.Parts).Bound()
	}
	return orb.Bound{}
}

// Clone：深拷贝，编辑与缓冲结果互不共享底层数组
func (g Geometry) Clone() Geometry {
	out := Geometry{Kind: g.Kind, Parts: make([]orb.Polygon, len(g.Parts))}
	for i, p := range g.Parts {
		out.Parts[i] = p.Clone()
	}
	return out
}

// Ring：按 (part, ring) 取环；越界返回 false
func (g Geometry) Ring(part, ring int) (orb.Ring, bool) {
	if part < 0 || part >= len(g.Parts) {
		return nil, false
	}
	p := g.Parts[part]
	if ring < 0 || ring >= len(p) {
		return nil, false
	}
	return p[ring], true
}

// VertexCount：所有环的顶点数之和（含闭合点）
func (g Geometry) VertexCount() int {
	n := 0
	for _, p := range g.Parts {
		for _, r := range p {
			n += len(r)
		}
	}
	return n
}

// FirstCoordinate：首部件外环的首点；空几何返回 false
func (g Geometry) FirstCoordinate() (orb.Point, bool) {
	if len(g.Parts) == 0 || len(g.Parts[0]) == 0 || len(g.Parts[0][0]) == 0 {
		return orb.Point{}, false
	}
	return g.Parts[0][0][0], true
}

// Close：补齐闭合点；已闭合时原样返回
func Close(r orb.Ring) orb.Ring {
	if len(r) == 0 {
		return r
	}
	if r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}

// ValidRing：闭合且长度不低于下限
func ValidRing(r orb.Ring) bool {
	return len(r) >= MinRingLen && r[0] == r[len(r)-1]
}

// VertexRef：统一的 (部件, 环, 顶点) 寻址
type VertexRef struct {
	Part   int `json:"part"`
	Ring   int `json:"ring"`
	Vertex int `json:"vertex"`
}
