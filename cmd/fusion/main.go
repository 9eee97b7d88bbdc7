// Command fusion projects a point-cloud map into one or more cameras frame
// by frame, writing depth overlays and ranked obstacle clusters to the
// configured outputs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/sensor.fusion/internal/config"
	"github.com/banshee-data/sensor.fusion/internal/fusion"
	"github.com/banshee-data/sensor.fusion/internal/fusion/export"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
	"github.com/banshee-data/sensor.fusion/internal/fusion/mapio"
	"github.com/banshee-data/sensor.fusion/internal/fusion/monitor"
	"github.com/banshee-data/sensor.fusion/internal/fusion/mqttpub"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
	"github.com/banshee-data/sensor.fusion/internal/fusion/storage/sqlite"
	"github.com/banshee-data/sensor.fusion/internal/fusion/synthetic"
	"github.com/banshee-data/sensor.fusion/internal/fusion/visualiser"
	"github.com/banshee-data/sensor.fusion/internal/monitoring"
	"github.com/banshee-data/sensor.fusion/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to tuning JSON (default: "+config.DefaultConfigPath+" when present)")
	mapPath     = flag.String("map", "", "Path to the PCD map")
	framesDir   = flag.String("frames", "", "Directory of frame manifests (*.json), processed in lexical order")
	useSynth    = flag.Bool("synthetic", false, "Use the built-in plane and block scene instead of -map/-frames")
	outDir      = flag.String("out", "", "Directory for exported overlays, clouds and cluster listings (empty disables)")
	dbPath      = flag.String("db", "", "Path to the SQLite report database (empty disables)")
	listen      = flag.String("listen", ":8082", "Monitor HTTP listen address (empty disables)")
	grpcAddr    = flag.String("grpc", "", "gRPC cluster stream listen address (empty disables)")
	mqttBroker  = flag.String("mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883 (empty disables)")
	mqttPrefix  = flag.String("mqtt-prefix", "fusion", "MQTT topic prefix")
	serve       = flag.Bool("serve", false, "Keep serving after replay until interrupted")
	debug       = flag.Bool("debug", false, "Log per-frame diagnostics to stderr")
	traceFile   = flag.String("trace", "", "Write per-stage trace logs to this file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	closeLogs, err := monitoring.Setup(monitoring.Options{Debug: *debug, TracePath: *traceFile})
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer closeLogs()

	tuning, err := loadTuning(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}
	pcfg := tuning.PipelineConfig()

	mapCloud, frames, err := loadInputs(pcfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("%s: map %q with %d points, %d frames", version.String(), mapCloud.Frame, len(mapCloud.Points), len(frames))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	latest := monitor.NewLatest()
	outputs := []pipeline.Sinks{latest.Sinks()}
	var localMap pipeline.LocalMapSink

	if *outDir != "" {
		w := export.NewWriter(*outDir)
		outputs = append(outputs, w.Sinks())
		localMap = w
	}

	var store *sqlite.Store
	if *dbPath != "" {
		if store, err = sqlite.Open(*dbPath); err != nil {
			log.Fatalf("failed to open report database: %v", err)
		}
		defer store.Close()
		outputs = append(outputs, pipeline.Sinks{Clusters: store})
	}

	var vis *visualiser.Publisher
	if *grpcAddr != "" {
		vcfg := visualiser.DefaultConfig()
		vcfg.ListenAddr = *grpcAddr
		vis = visualiser.NewPublisher(vcfg)
		if err := vis.Start(); err != nil {
			log.Fatalf("failed to start gRPC server: %v", err)
		}
		defer vis.Stop()
		outputs = append(outputs, pipeline.Sinks{Clusters: vis})
	}

	if *mqttBroker != "" {
		mcfg := mqttpub.DefaultConfig()
		mcfg.Broker = *mqttBroker
		mcfg.Prefix = *mqttPrefix
		mq, err := mqttpub.Connect(mcfg)
		if err != nil {
			log.Fatalf("failed to connect to MQTT broker: %v", err)
		}
		defer mq.Close()
		outputs = append(outputs, mq.Sinks())
	}

	sinks := combineSinks(outputs)
	sinks.LocalMap = localMap
	p, err := pipeline.New(pcfg, mapCloud, sinks)
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	runner := pipeline.NewRunner(p, func(res *pipeline.FrameResult) {
		latest.ObserveFrame(res)
		if store != nil {
			if err := store.RecordFrame(context.Background(), res); err != nil {
				fusion.Opsf("failed to record frame %s: %v", res.FrameID, err)
			}
		}
		if err := res.Err(); err != nil {
			fusion.Opsf("frame %s completed with errors: %v", res.FrameID, err)
		}
	})

	srv, err := monitor.NewServer(monitor.Config{
		Address:    *listen,
		Latest:     latest,
		Store:      store,
		Runner:     runner,
		Visualiser: vis,
		MaxRange:   pcfg.MaxRange,
	})
	if err != nil {
		log.Fatalf("failed to create monitor: %v", err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return runner.Run(gctx) })
	if *listen != "" {
		g.Go(func() error { return srv.Start(gctx) })
	}
	g.Go(func() error {
		if err := replay(gctx, runner, frames, tuning.GetFrameInterval()); err != nil {
			return err
		}
		st := runner.Stats()
		log.Printf("replay finished: %d submitted, %d processed, %d dropped, %d with errors",
			st.Submitted, st.Processed, st.Dropped, st.Failed)
		if *serve {
			<-gctx.Done()
			return nil
		}
		cancelRun()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("fusion: %v", err)
	}
	log.Printf("graceful shutdown complete")
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadTuningConfig(config.DefaultConfigPath)
	}
	return config.DefaultTuningConfig(), nil
}

// loadInputs returns the map and the frames to replay.
func loadInputs(cfg pipeline.Config) (l1geom.PointCloud, []frameSource, error) {
	if *useSynth {
		cloud := synthetic.PlaneAndBox(synthetic.DefaultSceneOptions())
		cloud.Frame = cfg.MapFrame
		return cloud, []frameSource{syntheticFrame(cfg)}, nil
	}
	if *mapPath == "" || *framesDir == "" {
		return l1geom.PointCloud{}, nil, fmt.Errorf("-map and -frames are required unless -synthetic is set")
	}
	cloud, err := mapio.LoadPCD(*mapPath, cfg.MapFrame)
	if err != nil {
		return l1geom.PointCloud{}, nil, fmt.Errorf("failed to load map: %w", err)
	}
	paths, err := listManifests(*framesDir)
	if err != nil {
		return l1geom.PointCloud{}, nil, err
	}
	frames := make([]frameSource, len(paths))
	for i, path := range paths {
		frames[i] = manifestFrame(path)
	}
	return cloud, frames, nil
}

// frameSource produces one frame input on demand so images are only held
// in memory while their frame is queued.
type frameSource func() (pipeline.FrameInput, error)

func manifestFrame(path string) frameSource {
	return func() (pipeline.FrameInput, error) {
		in, camErrs, err := loadManifest(path)
		if err != nil {
			return in, err
		}
		for _, e := range camErrs {
			fusion.Opsf("%s: skipping %v", path, e)
		}
		return in, nil
	}
}

func syntheticFrame(cfg pipeline.Config) frameSource {
	return func() (pipeline.FrameInput, error) {
		cam := synthetic.Camera("cam0")
		return pipeline.FrameInput{
			Stamp:      time.Now(),
			SensorPose: l1geom.Identity(cfg.SensorFrame, cfg.MapFrame),
			Cameras: []pipeline.CameraInput{{
				ID:             cam.ID,
				SensorToCamera: l1geom.Identity(cfg.SensorFrame, cam.Frame),
				Model:          cam,
				Image:          synthetic.Image(cam),
			}},
		}, nil
	}
}

// replay submits frames every interval, then waits until the runner has
// taken every submitted frame. A non-positive interval submits each frame
// once the previous one is done, so none are dropped.
func replay(ctx context.Context, r *pipeline.Runner, frames []frameSource, interval time.Duration) error {
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	for i, next := range frames {
		if i > 0 && tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if i > 0 {
			if err := waitIdle(ctx, r); err != nil {
				return err
			}
		}
		in, err := next()
		if err != nil {
			fusion.Opsf("skipping frame %d: %v", i, err)
			continue
		}
		r.Submit(in)
	}
	return waitIdle(ctx, r)
}

func waitIdle(ctx context.Context, r *pipeline.Runner) error {
	for {
		st := r.Stats()
		if st.Processed+st.Dropped >= st.Submitted {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func combineSinks(all []pipeline.Sinks) pipeline.Sinks {
	var (
		overlays pipeline.MultiOverlay
		clouds   pipeline.MultiCloud
		clusters pipeline.MultiCluster
	)
	for _, s := range all {
		if s.Overlay != nil {
			overlays = append(overlays, s.Overlay)
		}
		if s.Cloud != nil {
			clouds = append(clouds, s.Cloud)
		}
		if s.Clusters != nil {
			clusters = append(clusters, s.Clusters)
		}
	}
	return pipeline.Sinks{Overlay: overlays, Cloud: clouds, Clusters: clusters}
}
