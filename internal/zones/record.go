// 包 zones：采样点区域查询、去重聚合与进度跟踪
package zones

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// 文档注释：区域记录（GetFeatureInfo 返回的单个 GeoJSON 要素）
// 背景：只解析 id、type_code、name；其余属性原样透传给前端展示。
// 约束：Properties 为 nil 表示响应中无属性，聚合时跳过；记录接收后不再修改。
type Record struct {
	ID         string
	TypeCode   string
	Name       string
	Properties map[string]any
}

type wireRecord struct {
	Type       string         `json:"type"`
	ID         any            `json:"id"`
	Properties map[string]any `json:"properties"`
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var w wireRecord
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Record{ID: idString(w.ID), Properties: w.Properties}
	if w.Properties != nil {
		r.TypeCode = propString(w.Properties["type_code"])
		r.Name = propString(w.Properties["name"])
	}
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRecord{Type: "Feature", ID: r.ID, Properties: r.Properties})
}

// Label：二级聚合键，名称优先，否则 id
func (r Record) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

func idString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func propString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// featureCollection：GetFeatureInfo 的 application/json 响应体
type featureCollection struct {
	Type     string   `json:"type"`
	Features []Record `json:"features"`
}
