package zones

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "naturschutzgebiete.4711", "geometry": null,
     "properties": {"name": "Wittmoor", "type_code": "NATURE_RESERVE", "lower_limit_altitude": "0", "legal_ref": "§ 21h LuftVO"}},
    {"type": "Feature", "id": 42, "properties": null}
  ]
}`

func TestWMSClientLookup(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewWMSClient(srv.URL, srv.Client())
	recs, err := c.Lookup(context.Background(), Request{
		Coordinate: orb.Point{1113194.9, 7085000},
		Resolution: ResolutionForZoom(QueryZoom),
		Projection: ProjectionWebMercator,
		Layers:     []string{"dipul:naturschutzgebiete", "dipul:flugplaetze"},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "naturschutzgebiete.4711", recs[0].ID)
	assert.Equal(t, "NATURE_RESERVE", recs[0].TypeCode)
	assert.Equal(t, "Wittmoor", recs[0].Name)
	assert.Equal(t, "§ 21h LuftVO", recs[0].Properties["legal_ref"])
	assert.Equal(t, "42", recs[1].ID)
	assert.Nil(t, recs[1].Properties)

	assert.Equal(t, "GetFeatureInfo", query["REQUEST"][0])
	assert.Equal(t, "dipul:naturschutzgebiete,dipul:flugplaetze", query["QUERY_LAYERS"][0])
	assert.Equal(t, "application/json", query["INFO_FORMAT"][0])
	assert.Equal(t, "100", query["feature_count"][0])
	assert.Equal(t, "EPSG:3857", query["CRS"][0])
	assert.Equal(t, "50", query["I"][0])
	bbox := strings.Split(query["BBOX"][0], ",")
	require.Len(t, bbox, 4)
}

func TestWMSClientURLCentersPoint(t *testing.T) {
	c := NewWMSClient("https://example.test/wms?map=dipul", nil)
	u, err := c.URL(Request{Coordinate: orb.Point{1000, 2000}, Resolution: 2, Layers: []string{"dipul:a"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://example.test/wms?map=dipul&"))
	assert.Contains(t, u, "BBOX=899%2C1899%2C1101%2C2101")
}

func TestWMSClientFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("QUERY_LAYERS") == "dipul:broken" {
			_, _ = w.Write([]byte("<ServiceExceptionReport/>"))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := NewWMSClient(srv.URL, srv.Client())

	_, err := c.Lookup(context.Background(), Request{Layers: []string{"dipul:a"}})
	assert.ErrorIs(t, err, ErrHTTPStatus)

	_, err = c.Lookup(context.Background(), Request{Layers: []string{"dipul:broken"}})
	assert.Error(t, err)

	_, err = NewWMSClient("", nil).Lookup(context.Background(), Request{Layers: []string{"dipul:a"}})
	assert.ErrorIs(t, err, ErrNoEndpoint)

	_, err = c.Lookup(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoLayers)
}
