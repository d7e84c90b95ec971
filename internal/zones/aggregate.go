package zones

import (
	"sort"
	"strings"

	"agrarkarte/internal/geom"
)

// Source：参与聚合的地块
type Source struct {
	Ref      geom.FeatureRef
	Key      string
	Name     string
	Geometry geom.Geometry
}

// Match：命中某区域的地块
type Match struct {
	Ref      geom.FeatureRef `json:"ref"`
	Key      string          `json:"key"`
	Name     string          `json:"name"`
	Geometry geom.Geometry   `json:"-"`
}

// Index：type_code → 区域名称（或 id）→ 命中地块列表
type Index map[string]map[string][]Match

// 文档注释：两级聚合视图
// 背景：地块按显示名称（不区分大小写）排序后遍历，叶子列表顺序因此稳定；不修改输入。
// 约束：无属性的记录跳过；结果表中不存在的地块视为无命中。
func Aggregate(sources []Source, results map[string][]Record) Index {
	ordered := append([]Source(nil), sources...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return strings.ToLower(ordered[i].Name) < strings.ToLower(ordered[j].Name)
	})
	idx := Index{}
	for _, s := range ordered {
		for _, r := range results[s.Key] {
			if r.Properties == nil {
				continue
			}
			byName, ok := idx[r.TypeCode]
			if !ok {
				byName = map[string][]Match{}
				idx[r.TypeCode] = byName
			}
			label := r.Label()
			byName[label] = append(byName[label], Match{Ref: s.Ref, Key: s.Key, Name: s.Name, Geometry: s.Geometry})
		}
	}
	return idx
}

// Count：命中条目总数
func (idx Index) Count() int {
	n := 0
	for _, byName := range idx {
		for _, ms := range byName {
			n += len(ms)
		}
	}
	return n
}
