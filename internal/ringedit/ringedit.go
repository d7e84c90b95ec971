// 包 ringedit：环顶点编辑（删除/移动顶点、插入/删除洞）
// 约束：统一使用 (部件, 环, 顶点) 寻址；任何编辑后环保持闭合；外环不得低于 4 个点。
package ringedit

import (
	"errors"
	"fmt"

	"agrarkarte/internal/geom"

	"github.com/paulmach/orb"
)

var (
	// ErrExteriorFloor：外环已达最小点数，删除被拒绝
	ErrExteriorFloor = errors.New("ringedit: exterior ring is at the minimum vertex count")
	// ErrExteriorRing：外环不能作为整环删除
	ErrExteriorRing = errors.New("ringedit: exterior ring cannot be removed")
	ErrAddress      = errors.New("ringedit: address out of range")
	ErrHoleTooSmall = errors.New("ringedit: hole needs at least 3 distinct vertices")
)

// Outcome：删除顶点的实际效果
type Outcome int

const (
	VertexRemoved Outcome = iota + 1
	RingRemoved
)

func (o Outcome) String() string {
	switch o {
	case VertexRemoved:
		return "vertex_removed"
	case RingRemoved:
		return "ring_removed"
	}
	return "none"
}

// normalize：闭合点索引映射为 0
func normalize(ring orb.Ring, idx int) (int, error) {
	if idx < 0 || idx >= len(ring) {
		return 0, fmt.Errorf("%w: vertex %d of %d", ErrAddress, idx, len(ring))
	}
	if idx == len(ring)-1 {
		return 0, nil
	}
	return idx, nil
}

func locate(g *geom.Geometry, part, ring int) (orb.Ring, error) {
	r, ok := g.Ring(part, ring)
	if !ok {
		return nil, fmt.Errorf("%w: part %d ring %d", ErrAddress, part, ring)
	}
	return r, nil
}

// 文档注释：删除顶点
// 背景：闭合重复点不直接删除，按顶点 0 处理；删除后若首尾不同则以首点覆盖尾点恢复闭合。
// 约束：环已在下限时，洞整体删除（RingRemoved），外环拒绝（ErrExteriorFloor），两种失败都不改动几何。
func DeleteVertex(g *geom.Geometry, ref geom.VertexRef) (Outcome, error) {
	ring, err := locate(g, ref.Part, ref.Ring)
	if err != nil {
		return 0, err
	}
	idx, err := normalize(ring, ref.Vertex)
	if err != nil {
		return 0, err
	}
	if len(ring) <= geom.MinRingLen {
		if ref.Ring == 0 {
			return 0, ErrExteriorFloor
		}
		removeRing(g, ref.Part, ref.Ring)
		return RingRemoved, nil
	}
	out := make(orb.Ring, 0, len(ring)-1)
	out = append(out, ring[:idx]...)
	out = append(out, ring[idx+1:]...)
	if out[0] != out[len(out)-1] {
		out[len(out)-1] = out[0]
	}
	g.Parts[ref.Part][ref.Ring] = out
	return VertexRemoved, nil
}

// 文档注释：移动顶点
// 约束：不做自交或范围校验；移动后总是以首点重写尾点。
func MoveVertex(g *geom.Geometry, ref geom.VertexRef, to orb.Point) error {
	ring, err := locate(g, ref.Part, ref.Ring)
	if err != nil {
		return err
	}
	idx, err := normalize(ring, ref.Vertex)
	if err != nil {
		return err
	}
	out := ring.Clone()
	out[idx] = to
	out[len(out)-1] = out[0]
	g.Parts[ref.Part][ref.Ring] = out
	return nil
}

// InsertHole：向部件追加洞环，自动闭合；返回新环索引
func InsertHole(g *geom.Geometry, part int, hole orb.Ring) (int, error) {
	if part < 0 || part >= len(g.Parts) {
		return 0, fmt.Errorf("%w: part %d", ErrAddress, part)
	}
	r := geom.Close(hole.Clone())
	if !geom.ValidRing(r) {
		return 0, ErrHoleTooSmall
	}
	g.Parts[part] = append(g.Parts[part], r)
	return len(g.Parts[part]) - 1, nil
}

// DeleteRing：删除洞环；外环拒绝
func DeleteRing(g *geom.Geometry, part, ring int) error {
	if _, err := locate(g, part, ring); err != nil {
		return err
	}
	if ring == 0 {
		return ErrExteriorRing
	}
	removeRing(g, part, ring)
	return nil
}

func removeRing(g *geom.Geometry, part, ring int) {
	p := g.Parts[part]
	out := make(orb.Polygon, 0, len(p)-1)
	out = append(out, p[:ring]...)
	out = append(out, p[ring+1:]...)
	g.Parts[part] = out
}
