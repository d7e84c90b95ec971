package session

import (
	"net/http"
	"time"

	"agrarkarte/internal/buffer"
	"agrarkarte/internal/buffer/geosbuf"
	"agrarkarte/internal/simplify"
	"agrarkarte/internal/utils"
	"agrarkarte/internal/zones"

	"github.com/redis/go-redis/v9"
)

// 文档注释：从环境变量组装会话依赖
// 背景：服务端与批处理命令共用同一套 ZONE_* / SIMPLIFY_* / BUFFER_* 配置。
// 约束：rc 为 nil 时只使用进程内缓存；Display 由调用方设置。
func ConfigFromEnv(rc *redis.Client) (Config, error) {
	cat, err := zones.LoadCatalog(utils.Env("ZONE_CATALOG_PATH", ""))
	if err != nil {
		return Config{}, err
	}
	timeout := utils.EnvSeconds("ZONE_LOOKUP_TIMEOUT_S", 10*time.Second)
	wms := zones.NewWMSClient(utils.Env("ZONE_WMS_URL", cat.WMSURL), &http.Client{Timeout: timeout})
	mode := zones.ExteriorRings
	if utils.EnvBool("ZONE_SAMPLE_HOLES", false) {
		mode = zones.AllRings
	}
	return Config{
		Lookup:   zones.NewCached(wms, utils.EnvSeconds("ZONE_CACHE_TTL_S", time.Hour), rc),
		Catalog:  cat,
		Bufferer: buffer.Mercator{Plane: geosbuf.Plane{QuadSegs: utils.EnvInt("BUFFER_QUADSEGS", geosbuf.DefaultQuadSegs)}},
		ZoneOptions: zones.Options{
			MaxInFlight: utils.EnvInt("ZONE_MAX_INFLIGHT", 16),
			Timeout:     timeout,
		},
		Stride:     utils.EnvInt("ZONE_SAMPLE_STRIDE", zones.DefaultStride),
		SampleMode: mode,
		Tolerance:  utils.EnvFloat("SIMPLIFY_TOLERANCE", simplify.DefaultTolerance),
	}, nil
}
