package zones

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, typeCode, name string) Record {
	return Record{ID: id, TypeCode: typeCode, Name: name, Properties: map[string]any{"name": name, "type_code": typeCode}}
}

func waitPass(t *testing.T, p *Pass) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pass did not settle")
	}
}

var layers = []string{"dipul:flugplaetze", "dipul:naturschutzgebiete"}

func TestEngineDedupPerPolygon(t *testing.T) {
	l := LookupFunc(func(ctx context.Context, req Request) ([]Record, error) {
		return []Record{rec("nsg.1", "NATURE_RESERVE", "Moor"), rec("nsg.1", "NATURE_RESERVE", "Moor"), rec("fp.9", "AIRPORT", "EDDH")}, nil
	})
	e := NewEngine(l, Options{})
	p := e.Start(context.Background(), layers, []Target{
		{Key: "a", Points: []orb.Point{{0, 0}, {1, 0}, {2, 0}}},
		{Key: "b", Points: []orb.Point{{5, 5}}},
	})
	waitPass(t, p)

	res := e.Results()
	require.Len(t, res["a"], 2)
	require.Len(t, res["b"], 2)
	ids := map[string]bool{}
	for _, r := range res["a"] {
		assert.False(t, ids[r.ID], "duplicate id %s", r.ID)
		ids[r.ID] = true
	}
	assert.Equal(t, Progress{Total: 4, Completed: 4, InProgress: false}, e.Progress())
	assert.Len(t, e.Markers(), 4)
}

func TestEngineFailuresStillComplete(t *testing.T) {
	var n atomic.Int32
	l := LookupFunc(func(ctx context.Context, req Request) ([]Record, error) {
		switch n.Add(1) % 3 {
		case 0:
			return nil, errors.New("connection reset")
		case 1:
			return nil, ErrHTTPStatus
		}
		return []Record{rec("x", "T", "Zone X")}, nil
	})
	e := NewEngine(l, Options{MaxInFlight: 2})
	pts := make([]orb.Point, 9)
	for i := range pts {
		pts[i] = orb.Point{float64(i), 0}
	}
	p := e.Start(context.Background(), layers, []Target{{Key: "a", Points: pts}})
	waitPass(t, p)

	assert.Equal(t, Progress{Total: 9, Completed: 9}, e.Progress())
	assert.Len(t, e.Results()["a"], 1)
}

func TestEngineAllFailEmptyResult(t *testing.T) {
	l := LookupFunc(func(ctx context.Context, req Request) ([]Record, error) {
		return nil, ErrNoEndpoint
	})
	e := NewEngine(l, Options{})
	p := e.Start(context.Background(), layers, []Target{{Key: "a", Points: []orb.Point{{0, 0}, {1, 1}}}})
	waitPass(t, p)
	assert.Equal(t, Progress{Total: 2, Completed: 2}, e.Progress())
	assert.Empty(t, e.Results()["a"])
}

func TestEngineEmptyLayersSkipsRequests(t *testing.T) {
	var calls atomic.Int32
	l := LookupFunc(func(ctx context.Context, req Request) ([]Record, error) {
		calls.Add(1)
		return nil, nil
	})
	e := NewEngine(l, Options{})
	p := e.Start(context.Background(), nil, []Target{{Key: "a", Points: []orb.Point{{0, 0}, {1, 1}, {2, 2}}}})
	waitPass(t, p)
	assert.Zero(t, calls.Load())
	assert.Equal(t, Progress{Total: 3, Completed: 3}, e.Progress())
	assert.Len(t, e.Markers(), 3)
}

func TestEngineRequestParameters(t *testing.T) {
	var mu sync.Mutex
	var got []Request
	l := LookupFunc(func(ctx context.Context, req Request) ([]Record, error) {
		mu.Lock()
		got = append(got, req)
		mu.Unlock()
		return nil, nil
	})
	e := NewEngine(l, Options{})
	waitPass(t, e.Start(context.Background(), layers, []Target{{Key: "a", Points: []orb.Point{{10, 20}}}}))
	require.Len(t, got, 1)
	assert.Equal(t, orb.Point{10, 20}, got[0].Coordinate)
	assert.Equal(t, ProjectionWebMercator, got[0].Projection)
	assert.InDelta(t, 0.5971642834779395, got[0].Resolution, 1e-12)
	assert.Equal(t, layers, got[0].Layers)
}

func TestEngineStalePassDiscarded(t *testing.T) {
	gate := make(chan struct{})
	l := LookupFunc(func(ctx context.Context, req Request) ([]Record, error) {
		if req.Coordinate[0] < 0 {
			<-gate
			return []Record{rec("old", "T", "Old")}, nil
		}
		return []Record{rec("new", "T", "New")}, nil
	})
	e := NewEngine(l, Options{})
	first := e.Start(context.Background(), layers, []Target{{Key: "old-field", Points: []orb.Point{{-1, 0}}}})
	second := e.Start(context.Background(), layers, []Target{{Key: "new-field", Points: []orb.Point{{1, 0}}}})
	waitPass(t, second)
	close(gate)
	waitPass(t, first)

	res := e.Results()
	assert.NotContains(t, res, "old-field")
	require.Len(t, res["new-field"], 1)
	assert.Equal(t, "new", res["new-field"][0].ID)
	assert.Equal(t, Progress{Total: 1, Completed: 1}, e.Progress())
	assert.Greater(t, second.Gen, first.Gen)
}

func TestEngineStopClearsAndDropsInFlight(t *testing.T) {
	gate := make(chan struct{})
	l := LookupFunc(func(ctx context.Context, req Request) ([]Record, error) {
		<-gate
		return []Record{rec("z", "T", "Z")}, nil
	})
	e := NewEngine(l, Options{})
	p := e.Start(context.Background(), layers, []Target{{Key: "a", Points: []orb.Point{{0, 0}}}})
	assert.True(t, e.Progress().InProgress)

	e.Stop()
	assert.Equal(t, Progress{}, e.Progress())
	close(gate)
	waitPass(t, p)

	assert.Empty(t, e.Results())
	assert.Equal(t, Progress{}, e.Progress())
	assert.Empty(t, e.Markers())
}

func TestEngineNoTargets(t *testing.T) {
	e := NewEngine(LookupFunc(func(ctx context.Context, req Request) ([]Record, error) { return nil, nil }), Options{})
	var seen []Progress
	var mu sync.Mutex
	e.OnProgress(func(p Progress) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})
	p := e.Start(context.Background(), layers, nil)
	waitPass(t, p)
	assert.Equal(t, Progress{}, e.Progress())
	assert.Empty(t, e.Results())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Progress{{}}, seen)
}

func TestInfoUsesViewResolution(t *testing.T) {
	var got []Request
	var mu sync.Mutex
	l := LookupFunc(func(ctx context.Context, req Request) ([]Record, error) {
		mu.Lock()
		got = append(got, req)
		mu.Unlock()
		return nil, nil
	})
	e := NewEngine(l, Options{})

	_, err := e.Info(context.Background(), nil, orb.Point{1, 2}, 0)
	assert.ErrorIs(t, err, ErrNoLayers)

	_, err = e.Info(context.Background(), layers, orb.Point{1, 2}, ResolutionForZoom(12))
	require.NoError(t, err)
	_, err = e.Info(context.Background(), layers, orb.Point{1, 2}, 0)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.InDelta(t, 38.21851414258813, got[0].Resolution, 1e-9)
	assert.InDelta(t, ResolutionForZoom(QueryZoom), got[1].Resolution, 1e-12)
}

func TestProgressEventsOrderedWithinPass(t *testing.T) {
	var n atomic.Int32
	l := LookupFunc(func(ctx context.Context, req Request) ([]Record, error) {
		time.Sleep(time.Duration(n.Add(1)%5) * time.Millisecond)
		return nil, nil
	})
	e := NewEngine(l, Options{MaxInFlight: 16})
	var seen []Progress
	var mu sync.Mutex
	e.OnProgress(func(p Progress) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})
	pts := make([]orb.Point, 200)
	for i := range pts {
		pts[i] = orb.Point{float64(i), 0}
	}
	waitPass(t, e.Start(context.Background(), layers, []Target{{Key: "a", Points: pts}}))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i].Completed, seen[i-1].Completed, "event %d went backwards", i)
	}
	assert.Equal(t, Progress{Total: 200, Completed: 200, InProgress: false}, seen[len(seen)-1])
}

func TestEmitDropsLateSnapshots(t *testing.T) {
	e := NewEngine(LookupFunc(func(ctx context.Context, req Request) ([]Record, error) { return nil, nil }), Options{})
	var seen []Progress
	e.OnProgress(func(p Progress) { seen = append(seen, p) })

	e.emit(1, Progress{Total: 3, Completed: 2, InProgress: true})
	e.emit(1, Progress{Total: 3, Completed: 1, InProgress: true})
	e.emit(1, Progress{Total: 3, Completed: 3, InProgress: false})
	e.emit(2, Progress{})
	e.emit(1, Progress{Total: 3, Completed: 3, InProgress: true})

	assert.Equal(t, []Progress{
		{Total: 3, Completed: 2, InProgress: true},
		{Total: 3, Completed: 3, InProgress: false},
		{},
	}, seen)
}
