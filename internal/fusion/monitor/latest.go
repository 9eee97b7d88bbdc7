package monitor

import (
	"context"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l5rank"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
)

// CameraSnapshot is the most recent output seen for one camera.
type CameraSnapshot struct {
	FrameID  string
	CameraID string
	Stamp    time.Time
	Overlay  *image.RGBA
	Cloud    l1geom.PointCloud
	Clusters []l5rank.ClusterSummary
}

// Latest keeps the newest outputs per camera for the debug endpoints. It
// is an overlay, cloud and cluster sink.
type Latest struct {
	mu      sync.RWMutex
	cameras map[string]*CameraSnapshot
	frame   *pipeline.FrameResult
}

// NewLatest returns an empty tracker.
func NewLatest() *Latest {
	return &Latest{cameras: make(map[string]*CameraSnapshot)}
}

// Sinks returns l wired into the overlay, cloud and cluster outputs.
func (l *Latest) Sinks() pipeline.Sinks {
	return pipeline.Sinks{Overlay: l, Cloud: l, Clusters: l}
}

func (l *Latest) camera(frameID, cameraID string) *CameraSnapshot {
	s, ok := l.cameras[cameraID]
	if !ok || s.FrameID != frameID {
		s = &CameraSnapshot{FrameID: frameID, CameraID: cameraID}
		l.cameras[cameraID] = s
	}
	return s
}

// PublishOverlay records the overlay.
func (l *Latest) PublishOverlay(_ context.Context, out pipeline.OverlayOutput) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.camera(out.FrameID, out.CameraID)
	s.Stamp = out.Stamp
	s.Overlay = out.Overlay
	return nil
}

// PublishCloud records the filtered cloud.
func (l *Latest) PublishCloud(_ context.Context, out pipeline.CloudOutput) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.camera(out.FrameID, out.CameraID).Cloud = out.Cloud
	return nil
}

// PublishClusters records the ranked listing.
func (l *Latest) PublishClusters(_ context.Context, report pipeline.ClusterReport) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.camera(report.FrameID, report.CameraID)
	s.Stamp = report.Stamp
	s.Clusters = report.Summaries
	return nil
}

// ObserveFrame records the summary of a completed frame.
func (l *Latest) ObserveFrame(res *pipeline.FrameResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = res
}

// Frame returns the last observed frame result, or nil.
func (l *Latest) Frame() *pipeline.FrameResult {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frame
}

// Camera returns a copy of the snapshot for cameraID.
func (l *Latest) Camera(cameraID string) (CameraSnapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.cameras[cameraID]
	if !ok {
		return CameraSnapshot{}, false
	}
	return *s, true
}

// CameraIDs lists cameras with recorded output in sorted order.
func (l *Latest) CameraIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.cameras))
	for id := range l.cameras {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
