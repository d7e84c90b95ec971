package session

import (
	"fmt"

	"agrarkarte/internal/buffer"
	"agrarkarte/internal/geom"
	"agrarkarte/internal/ingest"
	"agrarkarte/internal/metrics"
)

// FeatureInfo：要素概要
type FeatureInfo struct {
	Index      int    `json:"index"`
	Key        string `json:"key"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Parts      int    `json:"parts"`
	Vertices   int    `json:"vertices"`
	HasBuffers bool   `json:"has_buffers"`
}

// LayerInfo：图层概要
type LayerInfo struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Active   bool          `json:"active"`
	Handles  geom.Handles  `json:"handles"`
	Features []FeatureInfo `json:"features"`
	Skipped  int           `json:"skipped,omitempty"`
}

func layerInfo(l *geom.Layer) LayerInfo {
	info := LayerInfo{ID: l.ID, Name: l.Name, Active: l.Active, Handles: l.Handles, Features: make([]FeatureInfo, 0, len(l.Features))}
	for i, f := range l.Features {
		info.Features = append(info.Features, FeatureInfo{
			Index:      i,
			Key:        l.MatchKey(f),
			Name:       f.Name(),
			Kind:       f.Geometry.Kind.String(),
			Parts:      len(f.Geometry.Parts),
			Vertices:   f.Geometry.VertexCount(),
			HasBuffers: f.HasBuffers(),
		})
	}
	return info
}

// 文档注释：上传一个地块文件为新图层
// 背景：解析失败不改变任何状态；成功后显示地块、适配视野、清除旧查询标记并重新查询。
func (s *State) AddLayer(u ingest.Upload) (LayerInfo, error) {
	res, err := ingest.Load(u)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		s.log.Warn("upload_rejected", "name", u.Name, "err", err)
		return LayerInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.reg.Add(u.Name, res.Features)
	s.showLayerLocked(l)
	s.sink.Fit(l.Bound())
	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	s.log.Info("layer_added", "id", l.ID, "name", l.Name, "features", len(l.Features), "skipped", res.Skipped, "crs", res.CRS)
	info := layerInfo(l)
	info.Skipped = res.Skipped
	s.publish(EventLayers, info)
	s.recomputeLocked()
	return info, nil
}

// RemoveLayer：移除图层并级联清理其全部显示句柄与查询标记
func (s *State) RemoveLayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.reg.Remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	s.hideLayerLocked(l)
	s.log.Info("layer_removed", "id", id, "name", l.Name)
	s.publish(EventLayers, map[string]any{"removed": id})
	s.recomputeLocked()
	return nil
}

// SetLayerActive：切换激活/可见；停用的图层不参与编辑命中、简化、缓冲与查询
func (s *State) SetLayerActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if l.Active == active {
		return nil
	}
	l.Active = active
	s.showLayerLocked(l)
	s.publish(EventLayers, layerInfo(l))
	s.recomputeLocked()
	return nil
}

// Layers：全部图层概要（上传顺序）
func (s *State) Layers() []LayerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.reg.All()
	out := make([]LayerInfo, 0, len(all))
	for _, l := range all {
		out = append(out, layerInfo(l))
	}
	return out
}

// Layer：单个图层概要
func (s *State) Layer(id string) (LayerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.reg.Get(id)
	if !ok {
		return LayerInfo{}, fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	return layerInfo(l), nil
}

// ShowVertices：顶点标记显示开关，作用于所有激活图层
func (s *State) ShowVertices(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.showVertices == on {
		return
	}
	s.showVertices = on
	for _, l := range s.reg.Active() {
		s.showLayerLocked(l)
	}
}

// 文档注释：清空会话
// 背景：停止查询、移除全部图层与显示，缓冲参数与查询开关恢复初始值；步长与已启用区域图层保持不变。
func (s *State) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.reg.Clear() {
		s.hideLayerLocked(l)
	}
	s.sink.Remove(pinsLayerID)
	s.engine.Stop()
	s.params = buffer.DefaultParameters()
	s.distances = s.params.Distances()
	s.queryActive = true
	s.showVertices = false
	s.log.Info("session_cleared")
	s.publish(EventCleared, nil)
}
