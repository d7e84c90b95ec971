package session

import (
	"errors"
	"fmt"

	"agrarkarte/internal/geom"
	"agrarkarte/internal/metrics"
	"agrarkarte/internal/ringedit"
	"agrarkarte/internal/simplify"

	"github.com/paulmach/orb"
)

// EditResult：一次编辑的结果
type EditResult struct {
	geom.FeatureRef
	geom.VertexRef
	Op      string `json:"op"`
	Outcome string `json:"outcome"`
}

// 文档注释：编辑的统一收尾
// 背景：成功时刷新图层显示并发布 edit 事件；被拒绝时发布面向用户的 notice，几何保持不变。
func (s *State) finishEdit(l *geom.Layer, res EditResult, err error) (EditResult, error) {
	if err != nil {
		outcome := "error"
		if errors.Is(err, ringedit.ErrExteriorFloor) || errors.Is(err, ringedit.ErrExteriorRing) || errors.Is(err, ringedit.ErrHoleTooSmall) {
			outcome = "refused"
			s.notice(err.Error())
		}
		metrics.EditsTotal.WithLabelValues(res.Op, outcome).Inc()
		s.log.Warn("edit_refused", "op", res.Op, "layer", res.Layer, "feature", res.Feature, "err", err)
		return res, err
	}
	metrics.EditsTotal.WithLabelValues(res.Op, "ok").Inc()
	s.showLayerLocked(l)
	s.publish(EventEdit, res)
	return res, nil
}

// DeleteVertex：删除 (部件, 环, 顶点) 处的顶点；洞在下限时整体删除
func (s *State) DeleteVertex(ref geom.FeatureRef, v geom.VertexRef) (EditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := EditResult{FeatureRef: ref, VertexRef: v, Op: "delete_vertex"}
	l, f, err := s.feature(ref)
	if err != nil {
		return res, err
	}
	outcome, err := ringedit.DeleteVertex(&f.Geometry, v)
	res.Outcome = outcome.String()
	return s.finishEdit(l, res, err)
}

// MoveVertex：移动顶点到 to
func (s *State) MoveVertex(ref geom.FeatureRef, v geom.VertexRef, to orb.Point) (EditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := EditResult{FeatureRef: ref, VertexRef: v, Op: "move_vertex", Outcome: "vertex_moved"}
	l, f, err := s.feature(ref)
	if err != nil {
		return res, err
	}
	return s.finishEdit(l, res, ringedit.MoveVertex(&f.Geometry, v, to))
}

// 文档注释：插入洞
// 背景：以洞的首点做点入多边形判定选取目标要素与部件（后上传的图层优先）。
func (s *State) InsertHole(hole orb.Ring) (EditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := EditResult{Op: "insert_hole"}
	if len(hole) == 0 {
		return res, ringedit.ErrHoleTooSmall
	}
	ref, ok := s.reg.FeatureAt(hole[0])
	if !ok {
		return res, ErrNoFeatureHit
	}
	res.FeatureRef = ref
	l, f, err := s.feature(ref)
	if err != nil {
		return res, err
	}
	part, ok := f.Geometry.PartAt(hole[0])
	if !ok {
		return res, ErrNoFeatureHit
	}
	ring, err := ringedit.InsertHole(&f.Geometry, part, hole)
	res.Part, res.Ring, res.Outcome = part, ring, "ring_inserted"
	return s.finishEdit(l, res, err)
}

// DeleteRing：删除洞环
func (s *State) DeleteRing(ref geom.FeatureRef, part, ring int) (EditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := EditResult{FeatureRef: ref, VertexRef: geom.VertexRef{Part: part, Ring: ring}, Op: "delete_ring", Outcome: "ring_removed"}
	l, f, err := s.feature(ref)
	if err != nil {
		return res, err
	}
	return s.finishEdit(l, res, ringedit.DeleteRing(&f.Geometry, part, ring))
}

// ClickVertex：指针点击，删除最近的顶点
func (s *State) ClickVertex(at orb.Point) (EditResult, error) {
	s.mu.Lock()
	hit, ok := s.reg.VertexAt(at, s.vertexTol)
	s.mu.Unlock()
	if !ok {
		return EditResult{Op: "delete_vertex"}, fmt.Errorf("%w: %v", ErrNoVertexHit, at)
	}
	return s.DeleteVertex(hit.FeatureRef, hit.VertexRef)
}

// DragVertex：指针拖拽，将 from 附近的顶点移动到 to
func (s *State) DragVertex(from, to orb.Point) (EditResult, error) {
	s.mu.Lock()
	hit, ok := s.reg.VertexAt(from, s.vertexTol)
	s.mu.Unlock()
	if !ok {
		return EditResult{Op: "move_vertex"}, fmt.Errorf("%w: %v", ErrNoVertexHit, from)
	}
	return s.MoveVertex(hit.FeatureRef, hit.VertexRef, to)
}

// Simplify：简化所有激活图层；tolerance ≤ 0 时使用会话默认容差
func (s *State) Simplify(tolerance float64) simplify.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tolerance <= 0 {
		tolerance = s.tolerance
	}
	res := simplify.Layers(s.reg.All(), tolerance)
	for _, l := range s.reg.Active() {
		s.showLayerLocked(l)
	}
	s.publish(EventEdit, map[string]any{"op": "simplify", "removed": res.Removed, "skipped": res.Skipped})
	return res
}
