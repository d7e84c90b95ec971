package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ZoneLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrarkarte_zone_lookups_total",
		Help: "Zone lookups by outcome (ok, fail, skip)",
	}, []string{"outcome"})
	ZoneLookupDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agrarkarte_zone_lookup_duration_ms",
		Help:    "Zone WMS GetFeatureInfo duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	})
	ZoneCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrarkarte_zone_cache_hits_total",
		Help: "Zone lookup cache hits by tier",
	}, []string{"tier"})
	ZoneCacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrarkarte_zone_cache_misses_total",
		Help: "Zone lookup cache misses by tier",
	}, []string{"tier"})
	ZonePassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrarkarte_zone_passes_total",
		Help: "Zone query passes by result (published, stale)",
	}, []string{"result"})
	ZoneSamplePoints = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agrarkarte_zone_sample_points",
		Help:    "Sample points per zone query pass",
		Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 2500},
	})
	BufferFeaturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrarkarte_buffer_features_total",
		Help: "Buffered features by outcome (ok, skip)",
	}, []string{"outcome"})
	SimplifyRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agrarkarte_simplify_removed_vertices_total",
		Help: "Vertices removed by simplification",
	})
	EditsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrarkarte_edits_total",
		Help: "Ring edits by operation and outcome",
	}, []string{"op", "outcome"})
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrarkarte_uploads_total",
		Help: "Layer uploads by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(ZoneLookupsTotal)
	prometheus.MustRegister(ZoneLookupDurationMs)
	prometheus.MustRegister(ZoneCacheHitsTotal)
	prometheus.MustRegister(ZoneCacheMissesTotal)
	prometheus.MustRegister(ZonePassesTotal)
	prometheus.MustRegister(ZoneSamplePoints)
	prometheus.MustRegister(BufferFeaturesTotal)
	prometheus.MustRegister(SimplifyRemovedTotal)
	prometheus.MustRegister(EditsTotal)
	prometheus.MustRegister(UploadsTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
