package zones

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"agrarkarte/internal/logger"
	"agrarkarte/internal/metrics"

	"github.com/paulmach/orb"
)

const (
	// ProjectionWebMercator：查询与模型统一使用的投影
	ProjectionWebMercator = "EPSG:3857"
	// QueryZoom：单点查询使用的固定缩放级别
	QueryZoom = 18
	// DefaultFeatureCount：单次查询返回的最大要素数
	DefaultFeatureCount = 100

	infoFormat = "application/json"
	pixelSize  = 101
)

var (
	ErrNoEndpoint = errors.New("zones: lookup endpoint not configured")
	ErrNoLayers   = errors.New("zones: no zone layers enabled")
	ErrHTTPStatus = errors.New("zones: unexpected http status")
)

// ResolutionForZoom：Web Mercator 256 像素瓦片金字塔在 z 级的分辨率（米/像素）
func ResolutionForZoom(z int) float64 {
	return 2 * math.Pi * 6378137 / 256 / math.Pow(2, float64(z))
}

// Request：单点查询请求
type Request struct {
	Coordinate orb.Point
	Resolution float64
	Projection string
	Layers     []string
}

// Lookup：区域查询边界
type Lookup interface {
	Lookup(ctx context.Context, req Request) ([]Record, error)
}

// LookupFunc：函数适配
type LookupFunc func(ctx context.Context, req Request) ([]Record, error)

func (f LookupFunc) Lookup(ctx context.Context, req Request) ([]Record, error) { return f(ctx, req) }

// WMSClient：WMS GetFeatureInfo 客户端
type WMSClient struct {
	Endpoint     string
	HTTP         *http.Client
	FeatureCount int
}

func NewWMSClient(endpoint string, hc *http.Client) *WMSClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &WMSClient{Endpoint: endpoint, HTTP: hc, FeatureCount: DefaultFeatureCount}
}

// 文档注释：构造 GetFeatureInfo URL
// 背景：以查询点为中心取 101×101 像素窗口，I/J 指向中心像素；WMS 1.3.0 下 EPSG:3857 轴序为 x,y。
func (c *WMSClient) URL(req Request) (string, error) {
	if c.Endpoint == "" {
		return "", ErrNoEndpoint
	}
	if len(req.Layers) == 0 {
		return "", ErrNoLayers
	}
	res := req.Resolution
	if res <= 0 {
		res = ResolutionForZoom(QueryZoom)
	}
	proj := req.Projection
	if proj == "" {
		proj = ProjectionWebMercator
	}
	half := float64(pixelSize) / 2 * res
	x, y := req.Coordinate[0], req.Coordinate[1]
	bbox := []string{ff(x - half), ff(y - half), ff(x + half), ff(y + half)}
	layers := strings.Join(req.Layers, ",")
	n := c.FeatureCount
	if n <= 0 {
		n = DefaultFeatureCount
	}

	q := url.Values{}
	q.Set("SERVICE", "WMS")
	q.Set("VERSION", "1.3.0")
	q.Set("REQUEST", "GetFeatureInfo")
	q.Set("FORMAT", "image/png")
	q.Set("TRANSPARENT", "true")
	q.Set("LAYERS", layers)
	q.Set("QUERY_LAYERS", layers)
	q.Set("STYLES", "")
	q.Set("CRS", proj)
	q.Set("BBOX", strings.Join(bbox, ","))
	q.Set("WIDTH", strconv.Itoa(pixelSize))
	q.Set("HEIGHT", strconv.Itoa(pixelSize))
	q.Set("I", strconv.Itoa(pixelSize/2))
	q.Set("J", strconv.Itoa(pixelSize/2))
	q.Set("INFO_FORMAT", infoFormat)
	q.Set("feature_count", strconv.Itoa(n))

	sep := "?"
	if strings.Contains(c.Endpoint, "?") {
		sep = "&"
	}
	return c.Endpoint + sep + q.Encode(), nil
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// 文档注释：执行单点查询
// 背景：非 2xx、传输错误与解码错误都返回 error，由查询引擎统一吸收为“零结果”。
func (c *WMSClient) Lookup(ctx context.Context, req Request) ([]Record, error) {
	u, err := c.URL(req)
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Accept", infoFormat)
	t0 := time.Now()
	resp, err := c.HTTP.Do(hreq)
	if err != nil {
		logger.L().Debug("zone_http_error", "err", err)
		return nil, err
	}
	defer resp.Body.Close()
	metrics.ZoneLookupDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}
	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		logger.L().Debug("zone_decode_error", "err", err)
		return nil, fmt.Errorf("zones: decode: %w", err)
	}
	logger.L().Debug("zone_resp", "x", req.Coordinate[0], "y", req.Coordinate[1], "features", len(fc.Features),
		"duration_ms", time.Since(t0).Milliseconds())
	return fc.Features, nil
}
