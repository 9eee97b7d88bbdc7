package mqttpub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l5rank"
	"github.com/banshee-data/sensor.fusion/internal/fusion/mapio"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
	"github.com/banshee-data/sensor.fusion/internal/fusion/synthetic"
)

func TestPublishClusters(t *testing.T) {
	client := newMockClient()
	p := NewPublisher(client, DefaultConfig())
	stamp := time.UnixMilli(1767225600123)

	err := p.PublishClusters(context.Background(), pipeline.ClusterReport{
		FrameID: "f1", CameraID: "zed0", Stamp: stamp,
		Summaries: []l5rank.ClusterSummary{{ID: 0, X: 2.5, Y: 2.5, Distance: 3.54, Points: 1331}},
	})
	require.NoError(t, err)

	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "fusion/zed0/clusters", msgs[0].Topic)
	assert.True(t, msgs[0].Retain)
	assert.Equal(t, byte(0), msgs[0].QoS)

	var got ClusterMessage
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &got))
	assert.Equal(t, "f1", got.FrameID)
	assert.Equal(t, int64(1767225600123), got.Timestamp)
	require.Len(t, got.Clusters, 1)
	assert.Equal(t, 1331, got.Clusters[0].Points)
}

func TestPublishClusters_EmptyListIsArray(t *testing.T) {
	client := newMockClient()
	p := NewPublisher(client, DefaultConfig())
	require.NoError(t, p.PublishClusters(context.Background(), pipeline.ClusterReport{CameraID: "c"}))
	assert.Contains(t, string(client.messages()[0].Payload), `"clusters":[]`)
}

func TestPublishOverlayAndCloud(t *testing.T) {
	client := newMockClient()
	cfg := DefaultConfig()
	cfg.Prefix = "site/a"
	cfg.QoS = 1
	p := NewPublisher(client, cfg)
	ctx := context.Background()

	overlay := image.NewRGBA(image.Rect(0, 0, 4, 4))
	require.NoError(t, p.PublishOverlay(ctx, pipeline.OverlayOutput{CameraID: "/zed/left", Overlay: overlay}))
	cloud := l1geom.PointCloud{Frame: "zed", Points: []l1geom.Point{{X: 1, Y: 2, Z: 3}}}
	require.NoError(t, p.PublishCloud(ctx, pipeline.CloudOutput{CameraID: "/zed/left", Cloud: cloud}))

	msgs := client.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "site/a/zed_left/overlay", msgs[0].Topic)
	assert.Equal(t, byte(1), msgs[0].QoS)
	img, err := png.Decode(bytes.NewReader(msgs[0].Payload))
	require.NoError(t, err)
	assert.Equal(t, overlay.Bounds(), img.Bounds())

	assert.Equal(t, "site/a/zed_left/cloud", msgs[1].Topic)
	got, err := mapio.ReadPCD(bytes.NewReader(msgs[1].Payload))
	require.NoError(t, err)
	require.Len(t, got.Points, 1)
	assert.InDelta(t, 2.0, got.Points[0].Y, 1e-6)
}

func TestPublish_Errors(t *testing.T) {
	ctx := context.Background()
	report := pipeline.ClusterReport{CameraID: "c"}

	assert.Error(t, NewPublisher(nil, DefaultConfig()).PublishClusters(ctx, report))

	disconnected := newMockClient()
	disconnected.Disconnect(0)
	assert.Error(t, NewPublisher(disconnected, DefaultConfig()).PublishClusters(ctx, report))

	boom := errors.New("broker rejected")
	failing := newMockClient()
	failing.publishError = boom
	assert.ErrorIs(t, NewPublisher(failing, DefaultConfig()).PublishClusters(ctx, report), boom)

	stalled := newMockClient()
	stalled.stall = true
	err := NewPublisher(stalled, DefaultConfig()).PublishClusters(ctx, report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestNewPublisher_Defaults(t *testing.T) {
	p := NewPublisher(newMockClient(), Config{QoS: 7})
	assert.Equal(t, "fusion", p.cfg.Prefix)
	assert.Equal(t, byte(0), p.cfg.QoS)
	assert.Equal(t, 2*time.Second, p.cfg.PublishTimeout)
	assert.Equal(t, "fusion/cam/overlay", p.Topic("cam", "overlay"))
}

func TestConnect_RequiresBroker(t *testing.T) {
	_, err := Connect(Config{})
	assert.Error(t, err)
}

func TestPublisher_AsPipelineSinks(t *testing.T) {
	client := newMockClient()
	p := NewPublisher(client, DefaultConfig())
	pl, err := pipeline.New(pipeline.DefaultConfig(), synthetic.PlaneAndBox(synthetic.DefaultSceneOptions()), p.Sinks())
	require.NoError(t, err)

	cam := synthetic.Camera("cam0")
	res, err := pl.ProcessFrame(context.Background(), pipeline.FrameInput{
		SensorPose: l1geom.Identity("laser", "map"),
		Cameras: []pipeline.CameraInput{{
			ID: "cam0", SensorToCamera: l1geom.Identity("laser", "cam0"), Model: cam,
		}},
	})
	require.NoError(t, err)
	require.NoError(t, res.Err())

	var topics []string
	for _, m := range client.messages() {
		topics = append(topics, m.Topic)
	}
	assert.Equal(t, []string{"fusion/cam0/overlay", "fusion/cam0/cloud", "fusion/cam0/clusters"}, topics)

	p.Close()
	assert.False(t, client.IsConnected())
}
