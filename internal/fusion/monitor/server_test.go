package monitor

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l5rank"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
	"github.com/banshee-data/sensor.fusion/internal/fusion/storage/sqlite"
	"github.com/banshee-data/sensor.fusion/internal/fusion/synthetic"
	"github.com/banshee-data/sensor.fusion/internal/testutil"
	"github.com/banshee-data/sensor.fusion/internal/timeutil"
)

var testStamp = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func seededLatest(t *testing.T) *Latest {
	t.Helper()
	l := NewLatest()
	ctx := context.Background()
	require.NoError(t, l.PublishOverlay(ctx, pipeline.OverlayOutput{
		FrameID: "f1", CameraID: "cam0", Stamp: testStamp, Overlay: image.NewRGBA(image.Rect(0, 0, 8, 6)),
	}))
	require.NoError(t, l.PublishCloud(ctx, pipeline.CloudOutput{
		FrameID: "f1", CameraID: "cam0",
		Cloud: l1geom.PointCloud{Frame: "cam0", Points: []l1geom.Point{{X: 3, Y: -0.5, Z: 0.2}, {X: 4, Y: 1, Z: 0.1}}},
	}))
	require.NoError(t, l.PublishClusters(ctx, pipeline.ClusterReport{
		FrameID: "f1", CameraID: "cam0", Stamp: testStamp,
		Summaries: []l5rank.ClusterSummary{{ID: 0, X: 3, Y: -0.5, Z: 1, Distance: 3.04, Points: 400}},
	}))
	return l
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func TestLatest_NewFrameReplacesCamera(t *testing.T) {
	l := seededLatest(t)
	require.NoError(t, l.PublishClusters(context.Background(), pipeline.ClusterReport{FrameID: "f2", CameraID: "cam0"}))

	snap, ok := l.Camera("cam0")
	require.True(t, ok)
	assert.Equal(t, "f2", snap.FrameID)
	assert.Nil(t, snap.Overlay)
	assert.Empty(t, snap.Clusters)

	_, ok = l.Camera("cam9")
	assert.False(t, ok)
	assert.Equal(t, []string{"cam0"}, l.CameraIDs())
}

func TestHealth(t *testing.T) {
	clock := timeutil.NewMockClock(testStamp)
	l := NewLatest()
	l.ObserveFrame(&pipeline.FrameResult{FrameID: "f7"})
	s := newTestServer(t, Config{Latest: l, Clock: clock})
	clock.Advance(90 * time.Second)

	rec := testutil.Get(t, s.Handler(), "/health")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got map[string]interface{}
	testutil.DecodeJSON(t, rec, &got)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "1m30s", got["uptime"])
	assert.Equal(t, "f7", got["last_frame"])
	assert.Contains(t, got["version"], "sensor.fusion")
	assert.NotContains(t, got, "runner")
}

func TestHealth_RunnerStats(t *testing.T) {
	p, err := pipeline.New(pipeline.DefaultConfig(), synthetic.PlaneAndBox(synthetic.DefaultSceneOptions()), pipeline.Sinks{})
	require.NoError(t, err)
	r := pipeline.NewRunner(p, nil)
	r.Submit(pipeline.FrameInput{})
	r.Submit(pipeline.FrameInput{})

	s := newTestServer(t, Config{Runner: r})
	rec := testutil.Get(t, s.Handler(), "/health")
	var got struct {
		Runner pipeline.RunnerStats `json:"runner"`
	}
	testutil.DecodeJSON(t, rec, &got)
	assert.Equal(t, uint64(2), got.Runner.Submitted)
	assert.Equal(t, uint64(1), got.Runner.Dropped)
}

func TestLiveClustersAndOverlay(t *testing.T) {
	s := newTestServer(t, Config{Latest: seededLatest(t)})
	h := s.Handler()

	rec := testutil.Get(t, h, "/api/clusters?camera_id=cam0")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var rows []sqlite.ClusterRow
	testutil.DecodeJSON(t, rec, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "f1", rows[0].FrameID)
	assert.Equal(t, 400, rows[0].Points)

	rec = testutil.Get(t, h, "/api/overlay.png?camera_id=cam0")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())

	testutil.AssertStatusCode(t, testutil.Get(t, h, "/api/overlay.png").Code, http.StatusBadRequest)
	testutil.AssertStatusCode(t, testutil.Get(t, h, "/api/overlay.png?camera_id=nope").Code, http.StatusNotFound)
}

func TestStoredFramesAndClusters(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "fusion.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.RecordFrame(ctx, &pipeline.FrameResult{FrameID: "f1", Stamp: testStamp, LocalPoints: 10}))
	require.NoError(t, store.PublishClusters(ctx, pipeline.ClusterReport{
		FrameID: "f1", CameraID: "cam0", Stamp: testStamp,
		Summaries: []l5rank.ClusterSummary{{ID: 0, Points: 120}, {ID: 1, Points: 110}},
	}))

	h := newTestServer(t, Config{Store: store}).Handler()

	rec := testutil.Get(t, h, "/api/frames?limit=5")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var frames []sqlite.FrameRow
	testutil.DecodeJSON(t, rec, &frames)
	require.Len(t, frames, 1)
	assert.Equal(t, 10, frames[0].LocalPoints)

	rec = testutil.Get(t, h, "/api/clusters?frame_id=f1")
	var rows []sqlite.ClusterRow
	testutil.DecodeJSON(t, rec, &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[1].ID)

	rec = testutil.Get(t, h, "/api/clusters?frame_id=missing")
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	testutil.AssertStatusCode(t, testutil.Get(t, h, "/api/frames?limit=0").Code, http.StatusBadRequest)
}

func TestNoStore(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()
	testutil.AssertStatusCode(t, testutil.Get(t, h, "/api/frames").Code, http.StatusServiceUnavailable)
	testutil.AssertStatusCode(t, testutil.Get(t, h, "/api/clusters?frame_id=f1").Code, http.StatusServiceUnavailable)
	testutil.AssertStatusCode(t, testutil.Get(t, h, "/debug/clusters").Code, http.StatusNotFound)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, Config{}).Handler()
	for _, path := range []string{"/health", "/api/frames", "/api/clusters", "/api/overlay.png"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestClusterChart(t *testing.T) {
	h := newTestServer(t, Config{Latest: seededLatest(t)}).Handler()
	rec := testutil.Get(t, h, "/debug/clusters")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Ranked clusters")
	assert.Contains(t, body, "cam0")
	// 3 m ahead and 0.5 m to the right of the camera.
	assert.Contains(t, body, "[0.5,3,400]")
}

func TestTopDown(t *testing.T) {
	tests := []struct {
		name          string
		x, y          float64
		across, ahead float64
	}{
		{"straight ahead", 5, 0, 0, 5},
		{"left", 0, 2, -2, 0},
		{"ahead right", 2.5, -2.5, 2.5, 2.5},
		{"behind", -1, 0, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, f := topDown(tt.x, tt.y)
			assert.Equal(t, tt.across, a)
			assert.Equal(t, tt.ahead, f)
		})
	}
}

func TestScenePlot(t *testing.T) {
	h := newTestServer(t, Config{Latest: seededLatest(t)}).Handler()
	rec := testutil.Get(t, h, "/debug/scene.png?camera_id=cam0")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
}

func TestAdminRoutesAttachedWithStore(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "fusion.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := newTestServer(t, Config{Store: store}).Handler()
	req := httptest.NewRequest(http.MethodGet, "/debug/", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}

func TestStart_StopsOnCancel(t *testing.T) {
	s := newTestServer(t, Config{Address: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
