package buffer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"agrarkarte/internal/geom"
	"agrarkarte/internal/logger"
	"agrarkarte/internal/metrics"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

var ErrEmptyResult = errors.New("buffer: empty result")

// 文档注释：不透明的平面缓冲能力 buffer(geometry, distance) -> geometry | failure
// 约束：实现方负责自交修复等细节；返回非面状几何视为失败。
type Bufferer interface {
	Buffer(g orb.Geometry, distance float64) (orb.Geometry, error)
}

// BuffererFunc：函数适配
type BuffererFunc func(g orb.Geometry, distance float64) (orb.Geometry, error)

func (f BuffererFunc) Buffer(g orb.Geometry, distance float64) (orb.Geometry, error) {
	return f(g, distance)
}

// 文档注释：地面米到 Web Mercator 单位的换算包装
// 背景：EPSG:3857 在纬度 φ 处的比例因子为 1/cos φ；以几何质心纬度换算后交给平面缓冲。
// 约束：田块尺度下质心纬度足够代表整个几何；极区（|φ|≥85°）拒绝。
type Mercator struct {
	Plane Bufferer
}

func (m Mercator) Buffer(g orb.Geometry, meters float64) (orb.Geometry, error) {
	c, _ := planar.CentroidArea(g)
	ll := project.Mercator.ToWGS84(c)
	if math.IsNaN(ll.Lat()) || math.Abs(ll.Lat()) >= 85 {
		return nil, fmt.Errorf("buffer: latitude %v out of range", ll.Lat())
	}
	k := 1 / math.Cos(ll.Lat()*math.Pi/180)
	return m.Plane.Buffer(g, meters*k)
}

// Report：一次缓冲遍历的统计
type Report struct {
	Distances Distances `json:"distances"`
	Buffered  int       `json:"buffered"`
	Skipped   int       `json:"skipped"`
}

// Calculator：逐要素生成 CV/GRB 几何
type Calculator struct {
	buf Bufferer
	log *slog.Logger
}

func NewCalculator(b Bufferer) *Calculator {
	return &Calculator{buf: b, log: logger.Component("buffer")}
}

// 文档注释：为单个要素计算 CV 与 GRB
// 背景：CV 外扩 sCV；GRB 外扩 sCV+GRB（在 CV 基础上叠加，而非独立于源几何的另一段距离）。
// 约束：先清除旧结果；任一步失败时两者都保持为空。
func (c *Calculator) Feature(f *geom.SourceFeature, d Distances) error {
	f.ClearBuffers()
	cv, err := c.one(f.Geometry, d.ContingencyDistance())
	if err != nil {
		return fmt.Errorf("contingency volume: %w", err)
	}
	grb, err := c.one(f.Geometry, d.GroundRiskDistance())
	if err != nil {
		return fmt.Errorf("ground risk buffer: %w", err)
	}
	f.ContingencyVolume = &cv
	f.GroundRiskBuffer = &grb
	return nil
}

func (c *Calculator) one(g geom.Geometry, dist float64) (geom.Geometry, error) {
	if g.IsZero() || len(g.Parts) == 0 {
		return geom.Geometry{}, geom.ErrDegenerate
	}
	out, err := c.buf.Buffer(g.Orb(), dist)
	if err != nil {
		return geom.Geometry{}, err
	}
	res, err := geom.FromOrb(out)
	if err != nil {
		return geom.Geometry{}, err
	}
	if len(res.Parts) == 0 || len(res.Parts[0]) == 0 {
		return geom.Geometry{}, ErrEmptyResult
	}
	return res, nil
}

// 文档注释：对图层的所有要素执行缓冲
// 背景：单个要素失败只跳过该要素并记录日志；其余要素继续。
func (c *Calculator) Layer(l *geom.Layer, d Distances) Report {
	rep := Report{Distances: d}
	for i, f := range l.Features {
		if err := c.Feature(f, d); err != nil {
			rep.Skipped++
			metrics.BufferFeaturesTotal.WithLabelValues("skip").Inc()
			c.log.Warn("buffer_feature_skip", "layer", l.Name, "feature", i, "name", f.Name(), "err", err)
			continue
		}
		rep.Buffered++
		metrics.BufferFeaturesTotal.WithLabelValues("ok").Inc()
	}
	c.log.Debug("buffer_layer_done", "layer", l.Name, "buffered", rep.Buffered, "skipped", rep.Skipped,
		"cv_m", d.ContingencyDistance(), "grb_m", d.GroundRiskDistance())
	return rep
}
