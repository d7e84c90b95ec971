package geom

import (
	"fmt"
	"strconv"
)

// NameKeys：显示名称的属性优先级
var NameKeys = []string{"name", "NAME", "Name", "FLUR", "BEZEICHNUNG"}

// 文档注释：源要素（一个地块）
// 背景：几何与任意属性来自上传文件；派生的 CV/GRB 几何在缓冲计算后回写。
// 约束：ID 为空时以首坐标生成位置键；派生几何为 nil 表示尚未计算或计算失败。
type SourceFeature struct {
	ID         string
	Geometry   Geometry
	Properties map[string]any

	ContingencyVolume *Geometry
	GroundRiskBuffer  *Geometry
}

// Name：按 NameKeys 取第一个非空属性，否则为空串
func (f *SourceFeature) Name() string {
	for _, k := range NameKeys {
		v, ok := f.Properties[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			s = fmt.Sprint(x)
		}
		if s != "" {
			return s
		}
	}
	return ""
}

// Key：区域匹配索引的键；无 ID 时退化为首坐标的 JSON 文本
func (f *SourceFeature) Key() string {
	if f.ID != "" {
		return f.ID
	}
	c, ok := f.Geometry.FirstCoordinate()
	if !ok {
		return "[]"
	}
	return "[" + strconv.FormatFloat(c[0], 'f', -1, 64) + "," + strconv.FormatFloat(c[1], 'f', -1, 64) + "]"
}

// HasBuffers：任一派生几何已存在
func (f *SourceFeature) HasBuffers() bool {
	return f.ContingencyVolume != nil || f.GroundRiskBuffer != nil
}

// ClearBuffers：丢弃派生几何
func (f *SourceFeature) ClearBuffers() {
	f.ContingencyVolume = nil
	f.GroundRiskBuffer = nil
}
