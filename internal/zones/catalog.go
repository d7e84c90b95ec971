package zones

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var ErrUnknownLayer = errors.New("zones: unknown zone layer")

// CatalogLayer：单个可查询的区域图层
type CatalogLayer struct {
	Name    string `yaml:"name" json:"name"`
	WMSName string `yaml:"wms_name" json:"wms_name"`
	Checked bool   `yaml:"checked" json:"checked"`
}

// CatalogGroup：图层分组（航空、道路、自然保护等）
type CatalogGroup struct {
	Name   string         `yaml:"name" json:"name"`
	Layers []CatalogLayer `yaml:"layers" json:"layers"`
}

// Catalog：区域图层目录
type Catalog struct {
	WMSURL string         `yaml:"wms_url" json:"wms_url"`
	Groups []CatalogGroup `yaml:"groups" json:"groups"`
}

// 文档注释：加载区域图层目录
// 背景：默认目录内嵌在二进制中；ZONE_CATALOG_PATH 指向外部 YAML 时覆盖。
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("zones: read catalog: %w", err)
	}
	return ParseCatalog(b)
}

// ParseCatalog：解析 YAML 目录；WMS 图层名不得重复
func ParseCatalog(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("zones: parse catalog: %w", err)
	}
	seen := make(map[string]bool)
	for _, g := range c.Groups {
		for _, l := range g.Layers {
			if l.WMSName == "" {
				return nil, fmt.Errorf("zones: catalog layer %q has no wms_name", l.Name)
			}
			if seen[l.WMSName] {
				return nil, fmt.Errorf("zones: duplicate catalog layer %q", l.WMSName)
			}
			seen[l.WMSName] = true
		}
	}
	return &c, nil
}

// WMSNames：目录顺序的全部图层名
func (c *Catalog) WMSNames() []string {
	var out []string
	for _, g := range c.Groups {
		for _, l := range g.Layers {
			out = append(out, l.WMSName)
		}
	}
	return out
}

// 文档注释：已启用区域图层集合
// 约束：Enabled 按目录顺序输出，保证请求参数稳定（便于缓存命中）；并发安全。
type Selection struct {
	mu  sync.RWMutex
	cat *Catalog
	on  map[string]bool
}

// NewSelection：以目录中 checked 的图层为初始集合
func NewSelection(c *Catalog) *Selection {
	s := &Selection{cat: c, on: make(map[string]bool)}
	for _, g := range c.Groups {
		for _, l := range g.Layers {
			if l.Checked {
				s.on[l.WMSName] = true
			}
		}
	}
	return s
}

// Set：启用或停用图层，返回集合是否发生变化
func (s *Selection) Set(wmsName string, enabled bool) (bool, error) {
	known := false
	for _, n := range s.cat.WMSNames() {
		if n == wmsName {
			known = true
			break
		}
	}
	if !known {
		return false, fmt.Errorf("%w: %s", ErrUnknownLayer, wmsName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.on[wmsName] == enabled {
		return false, nil
	}
	if enabled {
		s.on[wmsName] = true
	} else {
		delete(s.on, wmsName)
	}
	return true, nil
}

func (s *Selection) Enabled() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	for _, n := range s.cat.WMSNames() {
		if s.on[n] {
			out = append(out, n)
		}
	}
	return out
}

func (s *Selection) Catalog() *Catalog { return s.cat }
