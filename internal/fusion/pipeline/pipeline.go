package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l2camera"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l3grid"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l4perception"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l5rank"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l6overlay"
	"github.com/banshee-data/sensor.fusion/internal/fusion/parallel"
	"github.com/banshee-data/sensor.fusion/internal/timeutil"
)

// Pipeline processes frames against a fixed map. ProcessFrame calls are
// serialised; cameras within a frame run concurrently and share the
// sensor-frame map read-only.
type Pipeline struct {
	cfg       Config
	mapCloud  l1geom.PointCloud
	sinks     Sinks
	clusterer l4perception.Clusterer
	clock     timeutil.Clock

	mu sync.Mutex
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithClusterer replaces the default Euclidean clusterer.
func WithClusterer(c l4perception.Clusterer) Option {
	return func(p *Pipeline) { p.clusterer = c }
}

// WithClock sets the clock used for frame timing.
func WithClock(c timeutil.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New validates cfg and returns a pipeline over mapCloud, which must not
// be modified afterwards.
func New(cfg Config, mapCloud l1geom.PointCloud, sinks Sinks, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if len(mapCloud.Points) == 0 {
		return nil, fmt.Errorf("map %q has no points", mapCloud.Frame)
	}
	p := &Pipeline{
		cfg:       cfg,
		mapCloud:  mapCloud,
		sinks:     sinks,
		clusterer: l4perception.NewEuclideanClusterer(cfg.Cluster),
		clock:     timeutil.RealClock{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// ProcessFrame runs one full pass. Per-camera failures and sink errors are
// recorded in the result and never abort the frame; the returned error is
// non-nil only when ctx is cancelled before the frame completes.
func (p *Pipeline) ProcessFrame(ctx context.Context, in FrameInput) (*FrameResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fc := &FrameContext{
		FrameID: uuid.NewString(),
		Stamp:   in.Stamp,
		Started: p.clock.Now(),
		Config:  p.cfg,
	}
	res := &FrameResult{FrameID: fc.FrameID, Stamp: fc.Stamp}

	mapToSensor := l1geom.Invert(in.SensorPose)
	if mapToSensor.Target == "" {
		mapToSensor.Target = p.cfg.SensorFrame
	}
	local := l1geom.Apply(p.mapCloud, mapToSensor)
	local.Stamp = in.Stamp
	if p.cfg.CropLocalMap {
		local = l1geom.CropBox(local, p.cfg.MaxRange)
	}
	res.LocalPoints = len(local.Points)
	tracef("frame %s: local map %d of %d points", fc.FrameID, len(local.Points), len(p.mapCloud.Points))

	if s := p.sinks.LocalMap; !isNilInterface(s) {
		if err := s.PublishLocalMap(ctx, fc.FrameID, local); err != nil {
			res.SinkErrors = append(res.SinkErrors, fmt.Errorf("local map sink: %w", err))
		}
	}

	results := make([]*CameraResult, len(in.Cameras))
	camErrs := make([]*CameraError, len(in.Cameras))
	var g errgroup.Group
	g.SetLimit(parallel.Workers(p.cfg.CameraWorkers))
	for i, cam := range in.Cameras {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, err := p.processCamera(fc, local, cam)
			if err != nil {
				camErrs[i] = &CameraError{CameraID: cam.ID, Err: err}
				return nil
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return res, err
	}

	for i, r := range results {
		if e := camErrs[i]; e != nil {
			opsf("frame %s: skipping %v", fc.FrameID, e)
			res.CameraErrors = append(res.CameraErrors, e)
			continue
		}
		if r == nil {
			continue
		}
		res.Cameras = append(res.Cameras, *r)
		res.SinkErrors = append(res.SinkErrors, p.publish(ctx, fc, in.Cameras[i], r)...)
	}
	for _, err := range res.SinkErrors {
		opsf("frame %s: %v", fc.FrameID, err)
	}

	res.Duration = p.clock.Since(fc.Started)
	diagf("frame %s: %d cameras, %d skipped, %d sink errors in %v",
		fc.FrameID, len(res.Cameras), len(res.CameraErrors), len(res.SinkErrors), res.Duration)
	return res, nil
}

// processCamera runs projection through colouring for one camera. It has
// no side effects beyond its return values.
func (p *Pipeline) processCamera(fc *FrameContext, local l1geom.PointCloud, cam CameraInput) (*CameraResult, error) {
	start := p.clock.Now()
	if err := cam.Model.Validate(); err != nil {
		return nil, err
	}
	raw, err := cam.resolveImage()
	if err != nil {
		return nil, err
	}

	toCam := cam.SensorToCamera
	if toCam.Target == "" {
		toCam.Target = cam.ID
	}
	camCloud := l1geom.Apply(local, toCam)

	buf, visible := l2camera.BuildDepthBuffer(camCloud, cam.Model, fc.Config.depthOptions())
	nonGround, ground, _ := l3grid.SegmentWithOptions(visible.Points, fc.Config.groundOptions())
	ranked := l5rank.Rank(p.clusterer.Cluster(nonGround))
	summaries := l5rank.Summaries(ranked)
	overlay := l6overlay.ColorizeWithOptions(buf, fc.Config.MaxRange, fc.Config.overlayOptions())

	r := &CameraResult{
		CameraID:  cam.ID,
		Visible:   len(visible.Points),
		NonGround: len(nonGround),
		Ground:    len(ground),
		Filled:    buf.Filled(),
		Clusters:  ranked,
		Summaries: summaries,
		Overlay:   overlay,
		Image:     raw,
		Cloud:     visible.WithPoints(nonGround),
		Duration:  p.clock.Since(start),
	}
	l5rank.LogSummaries(summaries)
	tracef("frame %s camera %s: visible=%d non-ground=%d ground=%d clusters=%d in %v",
		fc.FrameID, cam.ID, r.Visible, r.NonGround, r.Ground, len(ranked), r.Duration)
	return r, nil
}

func (p *Pipeline) publish(ctx context.Context, fc *FrameContext, cam CameraInput, r *CameraResult) []error {
	var errs []error
	if s := p.sinks.Overlay; !isNilInterface(s) {
		out := OverlayOutput{FrameID: fc.FrameID, CameraID: cam.ID, Stamp: fc.Stamp, Overlay: r.Overlay, Raw: r.Image}
		if err := s.PublishOverlay(ctx, out); err != nil {
			errs = append(errs, fmt.Errorf("overlay sink (%s): %w", cam.ID, err))
		}
	}
	if s := p.sinks.Cloud; !isNilInterface(s) {
		out := CloudOutput{FrameID: fc.FrameID, CameraID: cam.ID, Cloud: r.Cloud}
		if err := s.PublishCloud(ctx, out); err != nil {
			errs = append(errs, fmt.Errorf("cloud sink (%s): %w", cam.ID, err))
		}
	}
	if s := p.sinks.Clusters; !isNilInterface(s) {
		report := ClusterReport{
			FrameID:   fc.FrameID,
			CameraID:  cam.ID,
			Stamp:     fc.Stamp,
			Clusters:  r.Clusters,
			Summaries: r.Summaries,
		}
		if err := s.PublishClusters(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("cluster sink (%s): %w", cam.ID, err))
		}
	}
	return errs
}
