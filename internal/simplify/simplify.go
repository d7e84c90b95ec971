// 包 simplify：基于共线容差的环简化
// 约束：逐环独立处理；结果保持闭合且不少于 4 个点，否则保留原环。
package simplify

import (
	"fmt"
	"math"

	"agrarkarte/internal/geom"
	"agrarkarte/internal/logger"
	"agrarkarte/internal/metrics"

	"github.com/paulmach/orb"
)

// DefaultTolerance：三角形两倍面积阈值（平方米）
const DefaultTolerance = 25.0

// Result：一次简化遍历的统计
type Result struct {
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`
}

// cross2：(b-a)×(c-a)，即三角形有向面积的两倍
func cross2(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// 文档注释：简化单个环
// 背景：从顶点 0 开始，对每个内部顶点与“上一个保留点、下一个原始点（回绕）”构成三角形，两倍面积低于容差即丢弃。
// 约束：总是追加原始末点；结果不足 4 点时返回原环；成功时以首点覆盖末点。
func Ring(r orb.Ring, tolerance float64) orb.Ring {
	n := len(r)
	if n <= geom.MinRingLen {
		return r
	}
	out := make(orb.Ring, 0, n)
	out = append(out, r[0])
	for i := 1; i < n-1; i++ {
		prev := out[len(out)-1]
		next := r[(i+1)%n]
		if math.Abs(cross2(prev, r[i], next)) < tolerance {
			continue
		}
		out = append(out, r[i])
	}
	out = append(out, r[n-1])
	if len(out) < geom.MinRingLen {
		return r
	}
	out[len(out)-1] = out[0]
	return out
}

// Geometry：简化几何的全部环，返回移除的顶点数；存在退化环时不做任何修改
func Geometry(g *geom.Geometry, tolerance float64) (int, error) {
	for pi, p := range g.Parts {
		for ri, r := range p {
			if !geom.ValidRing(r) {
				return 0, fmt.Errorf("%w: part %d ring %d", geom.ErrDegenerate, pi, ri)
			}
		}
	}
	removed := 0
	for pi, p := range g.Parts {
		for ri, r := range p {
			s := Ring(r, tolerance)
			removed += len(r) - len(s)
			g.Parts[pi][ri] = s
		}
	}
	return removed, nil
}

// 文档注释：简化所有激活图层
// 背景：单个要素失败只跳过该要素并记录日志；移除数在整个遍历内累加。
func Layers(layers []*geom.Layer, tolerance float64) Result {
	var res Result
	for _, l := range layers {
		if !l.Active {
			continue
		}
		for i, f := range l.Features {
			n, err := Geometry(&f.Geometry, tolerance)
			if err != nil {
				res.Skipped++
				logger.L().Warn("simplify_feature_skip", "layer", l.Name, "feature", i, "err", err)
				continue
			}
			res.Removed += n
		}
	}
	metrics.SimplifyRemovedTotal.Add(float64(res.Removed))
	logger.L().Debug("simplify_done", "tolerance", tolerance, "removed", res.Removed, "skipped", res.Skipped)
	return res
}
