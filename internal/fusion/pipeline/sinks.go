package pipeline

import (
	"context"
	"errors"
	"image"
	"reflect"
	"time"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l4perception"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l5rank"
)

// OverlayOutput is the rendered depth overlay for one camera, together
// with the camera image it was produced against.
type OverlayOutput struct {
	FrameID  string
	CameraID string
	Stamp    time.Time
	Overlay  *image.RGBA
	Raw      image.Image
}

// CloudOutput is the non-ground visible subset for one camera, expressed
// in the camera frame.
type CloudOutput struct {
	FrameID  string
	CameraID string
	Cloud    l1geom.PointCloud
}

// ClusterReport is the ranked cluster list for one camera.
type ClusterReport struct {
	FrameID   string
	CameraID  string
	Stamp     time.Time
	Clusters  []l4perception.Cluster
	Summaries []l5rank.ClusterSummary
}

// OverlaySink receives depth overlays.
type OverlaySink interface {
	PublishOverlay(ctx context.Context, out OverlayOutput) error
}

// CloudSink receives filtered clouds.
type CloudSink interface {
	PublishCloud(ctx context.Context, out CloudOutput) error
}

// ClusterSink receives ranked cluster reports.
type ClusterSink interface {
	PublishClusters(ctx context.Context, report ClusterReport) error
}

// LocalMapSink receives the cropped sensor-frame map once per frame.
type LocalMapSink interface {
	PublishLocalMap(ctx context.Context, frameID string, cloud l1geom.PointCloud) error
}

// Sinks bundles the per-frame outputs. Any field may be nil.
type Sinks struct {
	Overlay  OverlaySink
	Cloud    CloudSink
	Clusters ClusterSink
	LocalMap LocalMapSink
}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// OverlayFunc adapts a function to OverlaySink.
type OverlayFunc func(ctx context.Context, out OverlayOutput) error

func (f OverlayFunc) PublishOverlay(ctx context.Context, out OverlayOutput) error { return f(ctx, out) }

// CloudFunc adapts a function to CloudSink.
type CloudFunc func(ctx context.Context, out CloudOutput) error

func (f CloudFunc) PublishCloud(ctx context.Context, out CloudOutput) error { return f(ctx, out) }

// ClusterFunc adapts a function to ClusterSink.
type ClusterFunc func(ctx context.Context, report ClusterReport) error

func (f ClusterFunc) PublishClusters(ctx context.Context, report ClusterReport) error {
	return f(ctx, report)
}

// MultiOverlay fans an overlay out to every non-nil sink and joins errors.
type MultiOverlay []OverlaySink

func (m MultiOverlay) PublishOverlay(ctx context.Context, out OverlayOutput) error {
	var errs []error
	for _, s := range m {
		if isNilInterface(s) {
			continue
		}
		if err := s.PublishOverlay(ctx, out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiCloud fans a cloud out to every non-nil sink and joins errors.
type MultiCloud []CloudSink

func (m MultiCloud) PublishCloud(ctx context.Context, out CloudOutput) error {
	var errs []error
	for _, s := range m {
		if isNilInterface(s) {
			continue
		}
		if err := s.PublishCloud(ctx, out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiCluster fans a report out to every non-nil sink and joins errors.
type MultiCluster []ClusterSink

func (m MultiCluster) PublishClusters(ctx context.Context, report ClusterReport) error {
	var errs []error
	for _, s := range m {
		if isNilInterface(s) {
			continue
		}
		if err := s.PublishClusters(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
