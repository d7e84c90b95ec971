package session

import (
	"context"
	"fmt"

	"agrarkarte/internal/buffer"
	"agrarkarte/internal/export"
	"agrarkarte/internal/geom"
	"agrarkarte/internal/zones"

	"github.com/paulmach/orb"
)

// BufferParameters：当前缓冲参数与由其导出的距离
func (s *State) BufferParameters() (buffer.Parameters, buffer.Distances) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params, s.params.Distances()
}

// SetBufferParameters：校验并替换缓冲参数；已有缓冲结果不会自动重算
func (s *State) SetBufferParameters(p buffer.Parameters) (buffer.Distances, error) {
	if err := p.Validate(); err != nil {
		return buffer.Distances{}, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	d := p.Distances()
	s.log.Debug("buffer_params_set", "speed_kmh", p.SpeedKmh, "dimension_m", p.CharacteristicDimension, "height_m", p.FlightHeight,
		"scv", d.SCV, "sgrb", d.SGRB)
	s.publish(EventParameters, map[string]any{"parameters": p, "distances": d})
	return d, nil
}

// 文档注释：计算 CV/GRB
// 背景：距离按当前参数整体重算；layerID 为空时处理全部激活图层，否则只处理该图层（需为激活状态）。
// 约束：先移除该图层旧的缓冲显示再写入新结果；单个要素失败只跳过该要素。
func (s *State) ComputeBuffers(layerID string) (buffer.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var targets []*geom.Layer
	if layerID == "" {
		targets = s.reg.Active()
	} else {
		l, ok := s.reg.Get(layerID)
		if !ok || !l.Active {
			return buffer.Report{}, fmt.Errorf("%w: %s", ErrLayerNotFound, layerID)
		}
		targets = []*geom.Layer{l}
	}
	s.distances = s.params.Distances()
	total := buffer.Report{Distances: s.distances}
	for _, l := range targets {
		s.removeBuffersLocked(l)
		rep := s.calc.Layer(l, s.distances)
		total.Buffered += rep.Buffered
		total.Skipped += rep.Skipped
		s.showBuffersLocked(l)
	}
	s.publish(EventBuffers, total)
	return total, nil
}

// ClearBuffers：丢弃所有图层的缓冲结果与显示
func (s *State) ClearBuffers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.reg.All() {
		for _, f := range l.Features {
			f.ClearBuffers()
		}
		s.removeBuffersLocked(l)
	}
	s.publish(EventBuffers, buffer.Report{Distances: s.distances})
}

// QueryActive：区域查询开关
func (s *State) QueryActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryActive
}

// SetQueryActive：切换区域查询；关闭时立即清空结果与进度
func (s *State) SetQueryActive(on bool) *zones.Pass {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryActive = on
	return s.recomputeLocked()
}

// Stride：当前采样步长
func (s *State) Stride() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stride
}

// SetStride：修改采样步长并重新查询
func (s *State) SetStride(n int) (*zones.Pass, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: stride %d", ErrInvalidParameter, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stride = n
	return s.recomputeLocked(), nil
}

// ZoneCatalog：区域图层目录与当前启用集合
func (s *State) ZoneCatalog() (*zones.Catalog, []string) {
	return s.catalog, s.selection.Enabled()
}

// SetZoneLayer：启用或停用区域图层；集合变化时重新查询
func (s *State) SetZoneLayer(wmsName string, on bool) (*zones.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.selection.Set(wmsName, on)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, nil
	}
	return s.recomputeLocked(), nil
}

// ZoneProgress：当前查询进度
func (s *State) ZoneProgress() zones.Progress { return s.engine.Progress() }

// ZoneMatches：按地块键的区域记录表（最近一次完成的轮次）
func (s *State) ZoneMatches() map[string][]zones.Record { return s.engine.Results() }

// ZoneMarkers：当前轮次的采样点
func (s *State) ZoneMarkers() []orb.Point { return s.engine.Markers() }

// ZoneIndex：按区域类型与名称聚合的视图（基于当前激活图层）
func (s *State) ZoneIndex() zones.Index {
	s.mu.Lock()
	var sources []zones.Source
	for _, l := range s.reg.Active() {
		for i, f := range l.Features {
			sources = append(sources, zones.Source{
				Ref:      geom.FeatureRef{Layer: l.ID, Feature: i},
				Key:      l.MatchKey(f),
				Name:     f.Name(),
				Geometry: f.Geometry.Clone(),
			})
		}
	}
	s.mu.Unlock()
	return zones.Aggregate(sources, s.engine.Results())
}

// ZoneInfo：单点区域查询，使用当前启用的区域图层与调用方视图的分辨率（米/像素，≤ 0 时取轮次分辨率）
func (s *State) ZoneInfo(ctx context.Context, at orb.Point, resolution float64) ([]zones.Record, error) {
	return s.engine.Info(ctx, s.selection.Enabled(), at, resolution)
}

// ExportGeoJSON：导出全部图层
func (s *State) ExportGeoJSON(opts export.GeoJSONOptions) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return export.GeoJSON(s.reg.All(), opts)
}

// ExportKML：导出全部图层及其 CV/GRB
func (s *State) ExportKML(prefix string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return export.KML(s.reg.All(), prefix)
}
