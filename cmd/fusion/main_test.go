package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor.fusion/internal/fusion/monitor"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
	"github.com/banshee-data/sensor.fusion/internal/fusion/synthetic"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, ":8082", *listen)
	assert.Equal(t, "fusion", *mqttPrefix)
	assert.False(t, *useSynth)
	assert.False(t, *serve)
}

func TestCombineSinks_SkipsMissing(t *testing.T) {
	latest := monitor.NewLatest()
	s := combineSinks([]pipeline.Sinks{latest.Sinks(), {Clusters: latest}, {}})
	assert.Len(t, s.Overlay, 1)
	assert.Len(t, s.Cloud, 1)
	assert.Len(t, s.Clusters, 2)
}

func TestReplay_SyntheticFramesBackToBack(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	latest := monitor.NewLatest()
	p, err := pipeline.New(cfg, synthetic.PlaneAndBox(synthetic.DefaultSceneOptions()), latest.Sinks())
	require.NoError(t, err)

	var results []*pipeline.FrameResult
	r := pipeline.NewRunner(p, func(res *pipeline.FrameResult) { results = append(results, res) })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	frames := []frameSource{syntheticFrame(cfg), syntheticFrame(cfg), syntheticFrame(cfg)}
	require.NoError(t, replay(ctx, r, frames, 0))
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("runner did not stop")
	}

	st := r.Stats()
	assert.Equal(t, uint64(3), st.Processed)
	assert.Zero(t, st.Dropped)
	require.Len(t, results, 3)
	snap, ok := latest.Camera("cam0")
	require.True(t, ok)
	assert.Len(t, snap.Clusters, 1)
}
