// 包 session：会话级应用状态（图层、缓冲参数、区域查询开关与显示句柄）
// 背景：所有组件通过 State 协作；输入变化后由 Recompute 显式触发新一轮区域查询，状态变化以事件发布。
// 约束：State 内部加锁，可被多个 HTTP 请求并发调用；区域查询在后台执行，不持有 State 的锁。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"agrarkarte/internal/buffer"
	"agrarkarte/internal/display"
	"agrarkarte/internal/geom"
	"agrarkarte/internal/logger"
	"agrarkarte/internal/simplify"
	"agrarkarte/internal/zones"
)

var (
	ErrLayerNotFound    = errors.New("session: layer not found")
	ErrFeatureNotFound  = errors.New("session: feature not found")
	ErrNoVertexHit      = errors.New("session: no vertex near pointer")
	ErrNoFeatureHit     = errors.New("session: no field at hole position")
	ErrInvalidParameter = errors.New("session: invalid parameter")
)

// DefaultVertexTolerance：顶点命中容差（地图单位）
const DefaultVertexTolerance = 10.0

// Config：会话依赖与初始设置
type Config struct {
	Lookup          zones.Lookup
	Catalog         *zones.Catalog
	Bufferer        buffer.Bufferer
	Display         display.Sink
	ZoneOptions     zones.Options
	Stride          int
	SampleMode      zones.SampleMode
	Tolerance       float64
	VertexTolerance float64
}

// 文档注释：应用状态上下文
// 背景：取代全局可变状态；会话开始时创建，ClearAll 时重置。
type State struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	log     *slog.Logger
	events  *Broker
	sink    display.Sink
	catalog *zones.Catalog

	reg          *geom.Registry
	params       buffer.Parameters
	distances    buffer.Distances
	calc         *buffer.Calculator
	engine       *zones.Engine
	selection    *zones.Selection
	queryActive  bool
	stride       int
	mode         zones.SampleMode
	showVertices bool
	tolerance    float64
	vertexTol    float64
}

func New(cfg Config) (*State, error) {
	if cfg.Lookup == nil || cfg.Bufferer == nil {
		return nil, fmt.Errorf("%w: lookup and bufferer are required", ErrInvalidParameter)
	}
	if cfg.Catalog == nil {
		c, err := zones.LoadCatalog("")
		if err != nil {
			return nil, err
		}
		cfg.Catalog = c
	}
	if cfg.Display == nil {
		cfg.Display = display.Nop{}
	}
	if cfg.Stride < 1 {
		cfg.Stride = zones.DefaultStride
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = simplify.DefaultTolerance
	}
	if cfg.VertexTolerance <= 0 {
		cfg.VertexTolerance = DefaultVertexTolerance
	}
	ctx, cancel := context.WithCancel(context.Background())
	params := buffer.DefaultParameters()
	s := &State{
		ctx:         ctx,
		cancel:      cancel,
		log:         logger.Component("session"),
		events:      NewBroker(),
		sink:        cfg.Display,
		catalog:     cfg.Catalog,
		reg:         geom.NewRegistry(),
		params:      params,
		distances:   params.Distances(),
		calc:        buffer.NewCalculator(cfg.Bufferer),
		engine:      zones.NewEngine(cfg.Lookup, cfg.ZoneOptions),
		selection:   zones.NewSelection(cfg.Catalog),
		queryActive: true,
		stride:      cfg.Stride,
		mode:        cfg.SampleMode,
		tolerance:   cfg.Tolerance,
		vertexTol:   cfg.VertexTolerance,
	}
	s.engine.OnProgress(s.onProgress)
	return s, nil
}

// Close：取消进行中的区域查询
func (s *State) Close() {
	s.engine.Stop()
	s.cancel()
}

// Events：事件分发器
func (s *State) Events() *Broker { return s.events }

func (s *State) publish(t EventType, data any) { s.events.Publish(Event{Type: t, Data: data}) }

func (s *State) notice(msg string) {
	s.publish(EventNotice, Notice{Level: "warn", Message: msg})
}

func (s *State) onProgress(p zones.Progress) {
	s.publish(EventZoneProgress, p)
	if !p.InProgress && p.Total > 0 && p.Completed == p.Total {
		s.publish(EventZoneResults, map[string]any{"generation": s.engine.Generation(), "points": p.Total})
	}
}

// 文档注释：显式重算入口
// 背景：查询关闭时清空结果与进度；开启时按当前激活图层、步长与已启用区域图层启动新一轮，旧轮次被取代。
// 返回：新轮次；查询关闭时为 nil。
func (s *State) Recompute() *zones.Pass {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputeLocked()
}

func (s *State) recomputeLocked() *zones.Pass {
	s.sink.Remove(pinsLayerID)
	if !s.queryActive {
		s.engine.Stop()
		return nil
	}
	var targets []zones.Target
	for _, l := range s.reg.Active() {
		for _, f := range l.Features {
			targets = append(targets, zones.Target{Key: l.MatchKey(f), Points: zones.Sample(f.Geometry, s.stride, s.mode)})
		}
	}
	p := s.engine.Start(s.ctx, s.selection.Enabled(), targets)
	if m := s.engine.Markers(); len(m) > 0 {
		s.sink.Show(pinsOverlay(m))
	}
	return p
}

func (s *State) feature(ref geom.FeatureRef) (*geom.Layer, *geom.SourceFeature, error) {
	l, ok := s.reg.Get(ref.Layer)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrLayerNotFound, ref.Layer)
	}
	f, ok := s.reg.Feature(ref)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s#%d", ErrFeatureNotFound, ref.Layer, ref.Feature)
	}
	return l, f, nil
}

// showLayerLocked：按当前状态刷新图层的全部显示
func (s *State) showLayerLocked(l *geom.Layer) {
	if !l.Active {
		s.hideLayerLocked(l)
		return
	}
	fo := fieldOverlay(l)
	s.sink.Show(fo)
	l.Handles.Field = fo.ID
	if s.showVertices {
		vo := vertexOverlay(l)
		s.sink.Show(vo)
		l.Handles.VertexMarkers = vo.ID
	} else if l.Handles.VertexMarkers != "" {
		s.sink.Remove(l.Handles.VertexMarkers)
		l.Handles.VertexMarkers = ""
	}
	s.showBuffersLocked(l)
}

func (s *State) showBuffersLocked(l *geom.Layer) {
	s.removeBuffersLocked(l)
	cv, grb, ok := bufferOverlays(l)
	if !ok {
		return
	}
	s.sink.Show(cv)
	s.sink.Show(grb)
	l.Handles.ContingencyVolume = cv.ID
	l.Handles.GroundRiskBuffer = grb.ID
}

func (s *State) removeBuffersLocked(l *geom.Layer) {
	for _, h := range []*string{&l.Handles.ContingencyVolume, &l.Handles.GroundRiskBuffer} {
		if *h != "" {
			s.sink.Remove(*h)
			*h = ""
		}
	}
}

func (s *State) hideLayerLocked(l *geom.Layer) {
	for _, h := range l.Handles.All() {
		s.sink.Remove(h)
	}
	l.Handles = geom.Handles{}
}
