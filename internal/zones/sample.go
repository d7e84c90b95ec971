package zones

import (
	"agrarkarte/internal/geom"

	"github.com/paulmach/orb"
)

// DefaultStride：默认采样步长
const DefaultStride = 5

// SampleMode：参与采样的环
type SampleMode int

const (
	// ExteriorRings：每个部件只取外环
	ExteriorRings SampleMode = iota
	// AllRings：所有部件的所有环（含洞）
	AllRings
)

// 文档注释：按步长采样几何顶点
// 背景：每个参与采样的环取索引为步长整数倍的顶点，索引 0 总是包含；闭合重复点与顶点 0 相同，不重复采样。
// 约束：stride < 1 时按 1 处理。
func Sample(g geom.Geometry, stride int, mode SampleMode) []orb.Point {
	if stride < 1 {
		stride = 1
	}
	var out []orb.Point
	switch g.Kind {
	case geom.KindPolygon, geom.KindMultiPolygon:
		for _, p := range g.Parts {
			for ri, r := range p {
				if ri > 0 && mode == ExteriorRings {
					break
				}
				out = appendStride(out, r, stride)
			}
		}
	}
	return out
}

func appendStride(out []orb.Point, r orb.Ring, stride int) []orb.Point {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}
	for i := 0; i < n; i += stride {
		out = append(out, r[i])
	}
	return out
}
