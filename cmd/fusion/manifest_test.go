package main

import (
	"bytes"
	"image/png"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sensor.fusion/internal/fusion/synthetic"
	"github.com/banshee-data/sensor.fusion/internal/testutil"
)

const zedInfo = `image_width: 640
image_height: 480
camera_name: zed_left
frame_id: zed0_left
camera_matrix:
  rows: 3
  cols: 3
  data: [200, 0, 320, 0, 200, 240, 0, 0, 1]
`

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, synthetic.Image(synthetic.Camera("zed0"))))
	return buf.Bytes()
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "cams/zed0.yaml", []byte(zedInfo))
	testutil.WriteFile(t, dir, "img/zed0.png", pngBytes(t))
	path := testutil.WriteFile(t, dir, "0001.json", []byte(`{
		"stamp": "2026-01-01T00:00:00Z",
		"sensor_pose": {"translation": [1, 2, 0], "rotation": [0, 0, 0.7071067811865476, 0.7071067811865476], "source": "laser", "target": "map"},
		"cameras": [
			{"id": "zed0", "camera_info": "cams/zed0.yaml", "image": "img/zed0.png",
			 "transform": {"translation": [0, 0, 0], "rotation": [0, 0, 0, 1], "source": "laser", "target": "zed0_left"}}
		]
	}`))

	in, camErrs, err := loadManifest(path)
	require.NoError(t, err)
	assert.Empty(t, camErrs)
	assert.True(t, in.Stamp.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	got := in.SensorPose.TransformPoint(r3.Vec{X: 1})
	assert.InDelta(t, 1.0, got.X, 1e-9)
	assert.InDelta(t, 3.0, got.Y, 1e-9)
	assert.Equal(t, "map", in.SensorPose.Target)

	require.Len(t, in.Cameras, 1)
	cam := in.Cameras[0]
	assert.Equal(t, "zed0", cam.ID)
	assert.Equal(t, "zed0", cam.Model.ID)
	assert.Equal(t, 200.0, cam.Model.Fx)
	assert.Equal(t, "zed0_left", cam.SensorToCamera.Target)
	assert.NotEmpty(t, cam.Encoded)
}

func TestLoadManifest_ZeroRotationIsIdentity(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "f.json", []byte(`{"sensor_pose": {"translation": [0, 0, 1]}}`))
	in, _, err := loadManifest(path)
	require.NoError(t, err)
	got := in.SensorPose.TransformPoint(r3.Vec{X: 2})
	assert.InDelta(t, 2.0, got.X, 1e-12)
	assert.InDelta(t, 1.0, got.Z, 1e-12)
	assert.False(t, math.IsNaN(got.Y))
}

func TestLoadManifest_BadCamerasAreSkipped(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "ok.yaml", []byte(zedInfo))
	path := testutil.WriteFile(t, dir, "frames/f.json", []byte(`{
		"cameras": [
			{"id": "escape", "camera_info": "../../etc/passwd"},
			{"id": "missing", "camera_info": "nope.yaml"},
			{"camera_info": "ok.yaml"},
			{"id": "abs", "camera_info": "/etc/hostname"}
		]
	}`))

	in, camErrs, err := loadManifest(path)
	require.NoError(t, err)
	assert.Empty(t, in.Cameras)
	assert.Len(t, camErrs, 4)
}

func TestLoadManifest_Errors(t *testing.T) {
	dir := t.TempDir()
	_, _, err := loadManifest(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)

	bad := testutil.WriteFile(t, dir, "bad.json", []byte(`{"cameras": [`))
	_, _, err = loadManifest(bad)
	assert.Error(t, err)

	big := testutil.WriteFile(t, dir, "big.json", bytes.Repeat([]byte(" "), maxManifestSize+1))
	_, _, err = loadManifest(big)
	assert.Error(t, err)
}

func TestLoadManifest_DuplicateCamera(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "zed0.yaml", []byte(zedInfo))
	path := testutil.WriteFile(t, dir, "f.json", []byte(`{"cameras": [
		{"id": "zed0", "camera_info": "zed0.yaml"},
		{"id": "zed0", "camera_info": "zed0.yaml"}
	]}`))
	in, camErrs, err := loadManifest(path)
	require.NoError(t, err)
	assert.Len(t, in.Cameras, 1)
	assert.Len(t, camErrs, 1)
}

func TestListManifests(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002.json", "0001.json", "notes.txt", "0010.json"} {
		testutil.WriteFile(t, dir, name, []byte("{}"))
	}
	got, err := listManifests(dir)
	require.NoError(t, err)
	want := []string{
		filepath.Join(dir, "0001.json"),
		filepath.Join(dir, "0002.json"),
		filepath.Join(dir, "0010.json"),
	}
	assert.Equal(t, want, got)

	_, err = listManifests(t.TempDir())
	assert.Error(t, err)
}
