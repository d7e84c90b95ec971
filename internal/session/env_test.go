package session

import (
	"testing"
	"time"

	"agrarkarte/internal/buffer"
	"agrarkarte/internal/buffer/geosbuf"
	"agrarkarte/internal/zones"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ZONE_CATALOG_PATH", "")
	t.Setenv("ZONE_WMS_URL", "")
	t.Setenv("ZONE_SAMPLE_STRIDE", "3")
	t.Setenv("ZONE_SAMPLE_HOLES", "true")
	t.Setenv("ZONE_MAX_INFLIGHT", "0")
	t.Setenv("ZONE_LOOKUP_TIMEOUT_S", "4")
	t.Setenv("BUFFER_QUADSEGS", "")
	t.Setenv("SIMPLIFY_TOLERANCE", "40")

	cfg, err := ConfigFromEnv(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Stride)
	assert.Equal(t, zones.AllRings, cfg.SampleMode)
	assert.Equal(t, 0, cfg.ZoneOptions.MaxInFlight)
	assert.Equal(t, 4*time.Second, cfg.ZoneOptions.Timeout)
	assert.Equal(t, 40.0, cfg.Tolerance)
	assert.Equal(t, buffer.Mercator{Plane: geosbuf.Plane{QuadSegs: geosbuf.DefaultQuadSegs}}, cfg.Bufferer)

	cached, ok := cfg.Lookup.(*zones.Cached)
	require.True(t, ok)
	assert.Len(t, cached.Caches, 1)
	wms, ok := cached.Next.(*zones.WMSClient)
	require.True(t, ok)
	assert.Equal(t, cfg.Catalog.WMSURL, wms.Endpoint)

	st, err := New(cfg)
	require.NoError(t, err)
	st.Close()
}
