package zones

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"agrarkarte/internal/logger"
	"agrarkarte/internal/metrics"

	"github.com/paulmach/orb"
)

// Target：一个地块的采样点集合，Key 为区域匹配索引的键
type Target struct {
	Key    string
	Points []orb.Point
}

// Progress：当前查询轮次的进度
type Progress struct {
	Total      int  `json:"total"`
	Completed  int  `json:"completed"`
	InProgress bool `json:"in_progress"`
}

// Options：查询引擎参数
type Options struct {
	Resolution  float64
	Projection  string
	MaxInFlight int           // 0 表示不限制并发
	Timeout     time.Duration // 单点查询超时，0 表示不设
}

// Pass：一次已启动的查询轮次
type Pass struct {
	Gen  uint64
	done chan struct{}
}

// Done：轮次全部查询落定（无论结果是否被采纳）时关闭
func (p *Pass) Done() <-chan struct{} { return p.done }

// 文档注释：区域查询引擎
// 背景：每轮对所有地块的采样点并发查询，按地块聚合并按记录 id 去重；全部落定后整体替换结果表。
// 约束：每轮携带代数 gen，只有与当前 gen 一致的轮次才能推进进度与发布结果，旧轮次的迟到结果直接丢弃。
type Engine struct {
	lookup Lookup
	opts   Options
	log    *slog.Logger

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	progress Progress
	results  map[string][]Record
	markers  []orb.Point
	notify   func(Progress)

	// nmu 串行化进度回调；sent 为最近一次已发出的 (gen, completed)
	nmu           sync.Mutex
	sentGen       uint64
	sentCompleted int
}

func NewEngine(l Lookup, opts Options) *Engine {
	if opts.Resolution <= 0 {
		opts.Resolution = ResolutionForZoom(QueryZoom)
	}
	if opts.Projection == "" {
		opts.Projection = ProjectionWebMercator
	}
	return &Engine{lookup: l, opts: opts, log: logger.Component("zones"), results: map[string][]Record{}}
}

// OnProgress：进度变化回调；在引擎锁外串行调用，同一轮次内 Completed 单调不减
func (e *Engine) OnProgress(fn func(Progress)) {
	e.mu.Lock()
	e.notify = fn
	e.mu.Unlock()
}

// 文档注释：启动新一轮查询
// 背景：Counting 阶段统计采样点总数，Running 阶段为每个点发起一次查询；layers 为空时不发送请求，但点仍计入进度。
// 约束：上一轮被取代，其上下文被取消，迟到结果按 gen 丢弃。
func (e *Engine) Start(parent context.Context, layers []string, targets []Target) *Pass {
	total := 0
	var markers []orb.Point
	for _, t := range targets {
		total += len(t.Points)
		markers = append(markers, t.Points...)
	}
	ctx, cancel := context.WithCancel(parent)

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.gen++
	p := &Pass{Gen: e.gen, done: make(chan struct{})}
	e.cancel = cancel
	e.markers = markers
	e.progress = Progress{Total: total, InProgress: total > 0}
	if total == 0 {
		e.results = map[string][]Record{}
	}
	prog := e.progress
	e.mu.Unlock()

	metrics.ZoneSamplePoints.Observe(float64(total))
	e.log.Debug("zone_pass_start", "gen", p.Gen, "targets", len(targets), "points", total, "layers", len(layers))
	e.emit(p.Gen, prog)
	if total == 0 {
		cancel()
		close(p.done)
		return p
	}
	go e.run(ctx, p, append([]string(nil), layers...), targets)
	return p
}

// Stop：关闭查询，清空结果与进度；进行中的轮次结果将被丢弃
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
	gen := e.gen
	e.results = map[string][]Record{}
	e.markers = nil
	e.progress = Progress{}
	e.mu.Unlock()
	e.log.Debug("zone_pass_stop")
	e.emit(gen, Progress{})
}

type accumulator struct {
	mu   sync.Mutex
	recs map[string][]Record
	seen map[string]map[string]struct{}
}

// add：同一地块内按 id 去重
func (a *accumulator) add(key string, recs []Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.recs[key]; !ok {
		a.recs[key] = []Record{}
		a.seen[key] = make(map[string]struct{})
	}
	for _, r := range recs {
		if _, dup := a.seen[key][r.ID]; dup {
			continue
		}
		a.seen[key][r.ID] = struct{}{}
		a.recs[key] = append(a.recs[key], r)
	}
}

func (e *Engine) run(ctx context.Context, p *Pass, layers []string, targets []Target) {
	defer close(p.done)
	acc := &accumulator{recs: make(map[string][]Record), seen: make(map[string]map[string]struct{})}
	var sem chan struct{}
	if e.opts.MaxInFlight > 0 {
		sem = make(chan struct{}, e.opts.MaxInFlight)
	}
	var wg sync.WaitGroup
	for _, t := range targets {
		acc.add(t.Key, nil)
		for _, pt := range t.Points {
			wg.Add(1)
			go func(key string, pt orb.Point) {
				defer wg.Done()
				if sem != nil {
					sem <- struct{}{}
					defer func() { <-sem }()
				}
				acc.add(key, e.one(ctx, layers, pt))
				e.advance(p.Gen)
			}(t.Key, pt)
		}
	}
	wg.Wait()
	e.publish(p.Gen, acc.recs)
}

// one：单点查询；任何失败都视为零结果
func (e *Engine) one(ctx context.Context, layers []string, pt orb.Point) []Record {
	if len(layers) == 0 {
		metrics.ZoneLookupsTotal.WithLabelValues("skip").Inc()
		return nil
	}
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	recs, err := e.lookup.Lookup(ctx, Request{
		Coordinate: pt,
		Resolution: e.opts.Resolution,
		Projection: e.opts.Projection,
		Layers:     layers,
	})
	if err != nil {
		metrics.ZoneLookupsTotal.WithLabelValues("fail").Inc()
		if !errors.Is(err, context.Canceled) {
			e.log.Debug("zone_lookup_fail", "x", pt[0], "y", pt[1], "err", err)
		}
		return nil
	}
	metrics.ZoneLookupsTotal.WithLabelValues("ok").Inc()
	return recs
}

func (e *Engine) advance(gen uint64) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.progress.Completed++
	prog := e.progress
	e.mu.Unlock()
	e.emit(gen, prog)
}

// 文档注释：发出进度回调
// 背景：advance 在各查询协程中并发调用，解锁后到达这里的顺序不确定。
// 约束：旧轮次与同轮次中落后的进行中快照被丢弃；结束快照（InProgress=false）总是发出。
func (e *Engine) emit(gen uint64, prog Progress) {
	e.nmu.Lock()
	defer e.nmu.Unlock()
	if gen < e.sentGen {
		return
	}
	if gen == e.sentGen && prog.InProgress && prog.Completed <= e.sentCompleted {
		return
	}
	e.sentGen, e.sentCompleted = gen, prog.Completed
	e.mu.Lock()
	notify := e.notify
	e.mu.Unlock()
	if notify != nil {
		notify(prog)
	}
}

func (e *Engine) publish(gen uint64, recs map[string][]Record) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		metrics.ZonePassesTotal.WithLabelValues("stale").Inc()
		e.log.Debug("zone_pass_stale", "gen", gen)
		return
	}
	e.results = recs
	e.progress.InProgress = false
	prog := e.progress
	e.mu.Unlock()
	metrics.ZonePassesTotal.WithLabelValues("published").Inc()
	e.log.Info("zone_pass_done", "gen", gen, "polygons", len(recs), "points", prog.Total)
	e.emit(gen, prog)
}

// Progress：当前进度快照
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// Results：区域匹配索引快照（外层 map 为副本，记录切片只读共享）
func (e *Engine) Results() map[string][]Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string][]Record, len(e.results))
	for k, v := range e.results {
		out[k] = v
	}
	return out
}

// Markers：当前轮次的采样点（查询标记）
func (e *Engine) Markers() []orb.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]orb.Point(nil), e.markers...)
}

// Generation：当前轮次代数
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

// Info：单点查询（不参与轮次与进度），失败返回错误；resolution ≤ 0 时使用轮次分辨率
func (e *Engine) Info(ctx context.Context, layers []string, pt orb.Point, resolution float64) ([]Record, error) {
	if len(layers) == 0 {
		return nil, ErrNoLayers
	}
	if resolution <= 0 {
		resolution = e.opts.Resolution
	}
	return e.lookup.Lookup(ctx, Request{Coordinate: pt, Resolution: resolution, Projection: e.opts.Projection, Layers: layers})
}
