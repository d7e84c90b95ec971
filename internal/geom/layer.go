package geom

import (
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Handles：图层派生显示层的句柄；空串表示未显示
type Handles struct {
	Field             string `json:"field,omitempty"`
	VertexMarkers     string `json:"vertex_markers,omitempty"`
	ContingencyVolume string `json:"contingency_volume,omitempty"`
	GroundRiskBuffer  string `json:"ground_risk_buffer,omitempty"`
}

// All：非空句柄列表
func (h Handles) All() []string {
	var out []string
	for _, s := range []string{h.Field, h.VertexMarkers, h.ContingencyVolume, h.GroundRiskBuffer} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// 文档注释：图层（一次上传的文件）
// 背景：持有有序要素集合、激活标志与派生显示句柄；删除时由调用方级联清理句柄。
type Layer struct {
	ID       string
	Name     string
	Active   bool
	Features []*SourceFeature
	Handles  Handles
}

// Bound：所有要素的包围盒
func (l *Layer) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, f := range l.Features {
		fb := f.Geometry.Bound()
		if first {
			b = fb
			first = false
			continue
		}
		b = b.Union(fb)
	}
	return b
}

// 文档注释：图层登记表
// 约束：非并发安全，由会话层加锁；顺序即上传顺序。
type Registry struct {
	layers []*Layer
}

func NewRegistry() *Registry { return &Registry{} }

// Add：登记新图层，默认激活
func (r *Registry) Add(name string, features []*SourceFeature) *Layer {
	l := &Layer{ID: uuid.NewString(), Name: name, Active: true, Features: features}
	r.layers = append(r.layers, l)
	return l
}

func (r *Registry) Get(id string) (*Layer, bool) {
	for _, l := range r.layers {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// Remove：移除并返回图层，句柄清理由调用方负责
func (r *Registry) Remove(id string) (*Layer, bool) {
	for i, l := range r.layers {
		if l.ID == id {
			r.layers = append(r.layers[:i:i], r.layers[i+1:]...)
			return l, true
		}
	}
	return nil, false
}

// All：全部图层（副本切片）
func (r *Registry) All() []*Layer {
	return append([]*Layer(nil), r.layers...)
}

// Active：激活图层
func (r *Registry) Active() []*Layer {
	var out []*Layer
	for _, l := range r.layers {
		if l.Active {
			out = append(out, l)
		}
	}
	return out
}

// Clear：清空并返回被移除的图层
func (r *Registry) Clear() []*Layer {
	old := r.layers
	r.layers = nil
	return old
}

func (r *Registry) Len() int { return len(r.layers) }

// MatchKey：区域匹配索引中要素的键，以图层 id 限定，不同上传文件中重复的要素 id 互不冲突
func (l *Layer) MatchKey(f *SourceFeature) string {
	return l.ID + "/" + f.Key()
}
