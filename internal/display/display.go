// 包 display：地图显示边界（叠加层的展示、移除与视野适配）
package display

import (
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 叠加层的 z 顺序
const (
	ZField         = 10
	ZGroundRisk    = 99
	ZPins          = 99
	ZContingency   = 100
	ZVertexMarkers = 200
)

// Style：叠加层样式
type Style struct {
	Stroke    string    `json:"stroke"`
	Fill      string    `json:"fill,omitempty"`
	Width     float64   `json:"width"`
	LineDash  []float64 `json:"line_dash,omitempty"`
	PointSize float64   `json:"point_size,omitempty"`
}

var (
	FieldStyle       = Style{Stroke: "#2563eb", Fill: "rgba(37, 99, 235, 0.2)", Width: 2}
	ContingencyStyle = Style{Stroke: "rgba(255, 165, 0, 0.8)", Fill: "rgba(255, 165, 0, 0.1)", Width: 2, LineDash: []float64{5, 5}}
	GroundRiskStyle  = Style{Stroke: "rgba(255, 0, 0, 0.8)", Fill: "rgba(255, 0, 0, 0.1)", Width: 2, LineDash: []float64{10, 5}}
	VertexStyle      = Style{Stroke: "#fff", Fill: "#db2777", Width: 2, PointSize: 6}
	PinStyle         = Style{Stroke: "#fff", Fill: "#0891b2", Width: 1, PointSize: 4}
)

// Layer：一个显示叠加层
type Layer struct {
	ID       string                     `json:"id"`
	Name     string                     `json:"name"`
	ZIndex   int                        `json:"z_index"`
	Style    Style                      `json:"style"`
	Features *geojson.FeatureCollection `json:"features"`
}

// Sink：显示端能力
type Sink interface {
	Show(l Layer)
	Remove(id string)
	Fit(b orb.Bound)
}

// Nop：丢弃所有显示调用
type Nop struct{}

func (Nop) Show(Layer)    {}
func (Nop) Remove(string) {}
func (Nop) Fit(orb.Bound) {}

// 文档注释：进程内显示端
// 背景：保存当前叠加层与视野，供 HTTP 接口输出给前端地图渲染；同 ID 的 Show 覆盖旧层。
type Memory struct {
	mu      sync.RWMutex
	layers  map[string]Layer
	view    orb.Bound
	hasView bool
}

func NewMemory() *Memory { return &Memory{layers: make(map[string]Layer)} }

func (m *Memory) Show(l Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers[l.ID] = l
}

func (m *Memory) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.layers, id)
}

func (m *Memory) Fit(b orb.Bound) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = b
	m.hasView = true
}

// Layers：按 z 顺序（同层按 ID）排列的叠加层
func (m *Memory) Layers() []Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Layer, 0, len(m.layers))
	for _, l := range m.layers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ZIndex != out[j].ZIndex {
			return out[i].ZIndex < out[j].ZIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) Layer(id string) (Layer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layers[id]
	return l, ok
}

// View：最近一次适配的视野
func (m *Memory) View() (orb.Bound, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view, m.hasView
}
