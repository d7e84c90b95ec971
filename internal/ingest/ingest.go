// 包 ingest：上传边界，将 GeoJSON 地块文件转换为模型中的图层要素
// 约束：输出坐标统一为 EPSG:3857；支持输入 EPSG:4326（默认）与 EPSG:3857。
package ingest

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"agrarkarte/internal/geom"
	"agrarkarte/internal/logger"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed upload.schema.json
var uploadSchema []byte

const (
	CRSWGS84       = "EPSG:4326"
	CRSWebMercator = "EPSG:3857"
)

var (
	ErrSchema     = errors.New("ingest: upload does not match schema")
	ErrCRS        = errors.New("ingest: unsupported coordinate reference system")
	ErrNoPolygons = errors.New("ingest: no polygon features")
)

var schemaLoader = gojsonschema.NewBytesLoader(uploadSchema)

// Upload：一次上传（文件名作为图层名）
type Upload struct {
	Name string
	CRS  string
	Data []byte
}

// Result：转换结果
type Result struct {
	Features []*geom.SourceFeature
	Skipped  int
	CRS      string
}

// Validate：按 JSON Schema 校验上传内容结构
func Validate(data []byte) error {
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
	}
	return nil
}

// Decode：校验并解码为要素集合；单个 Feature 包装为集合
func Decode(data []byte) (*geojson.FeatureCollection, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	if head.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	}
	return geojson.UnmarshalFeatureCollection(data)
}

// NormalizeCRS：规范化 CRS 标识；空串按 GeoJSON 默认的 WGS84 处理
func NormalizeCRS(s string) (string, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case u == "", u == "4326", u == CRSWGS84, strings.HasSuffix(u, "CRS84"), strings.HasSuffix(u, "EPSG::4326"):
		return CRSWGS84, nil
	case u == "3857", u == CRSWebMercator, u == "EPSG:900913", strings.HasSuffix(u, "EPSG::3857"):
		return CRSWebMercator, nil
	}
	return "", fmt.Errorf("%w: %s", ErrCRS, s)
}

// declaredCRS：旧版 GeoJSON 的 crs 成员
func declaredCRS(fc *geojson.FeatureCollection) string {
	raw, ok := fc.ExtraMembers["crs"].(map[string]any)
	if !ok {
		return ""
	}
	props, ok := raw["properties"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := props["name"].(string)
	return name
}

// Load：校验、解码并转换一次上传
func Load(u Upload) (Result, error) {
	fc, err := Decode(u.Data)
	if err != nil {
		return Result{}, err
	}
	crs := u.CRS
	if crs == "" {
		crs = declaredCRS(fc)
	}
	return Convert(fc, crs)
}

// 文档注释：要素集合转模型要素
// 背景：只保留 Polygon/MultiPolygon；未闭合的环自动闭合；点数不足的洞丢弃，外环不足时整个部件丢弃，无部件的要素跳过。
func Convert(fc *geojson.FeatureCollection, crs string) (Result, error) {
	norm, err := NormalizeCRS(crs)
	if err != nil {
		return Result{}, err
	}
	res := Result{CRS: norm}
	for i, f := range fc.Features {
		g, err := geom.FromOrb(f.Geometry)
		if err != nil {
			res.Skipped++
			logger.L().Debug("ingest_feature_skip", "index", i, "err", err)
			continue
		}
		if norm == CRSWGS84 {
			g = toMercator(g)
		}
		g = clean(g)
		if len(g.Parts) == 0 {
			res.Skipped++
			logger.L().Warn("ingest_feature_degenerate", "index", i)
			continue
		}
		props := map[string]any(f.Properties)
		if props == nil {
			props = map[string]any{}
		}
		res.Features = append(res.Features, &geom.SourceFeature{
			ID:         featureID(f.ID),
			Geometry:   g,
			Properties: props,
		})
	}
	if len(res.Features) == 0 {
		return res, ErrNoPolygons
	}
	return res, nil
}

func toMercator(g geom.Geometry) geom.Geometry {
	out := g.Clone()
	for _, p := range out.Parts {
		for _, r := range p {
			for k, pt := range r {
				r[k] = project.WGS84.ToMercator(pt)
			}
		}
	}
	return out
}

func clean(g geom.Geometry) geom.Geometry {
	out := geom.Geometry{Kind: g.Kind}
	for _, p := range g.Parts {
		var part orb.Polygon
		for ri, r := range p {
			r = geom.Close(r)
			if !geom.ValidRing(r) {
				if ri == 0 {
					break
				}
				continue
			}
			part = append(part, r)
		}
		if len(part) > 0 {
			out.Parts = append(out.Parts, part)
		}
	}
	return out
}

func featureID(v any) string {
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
