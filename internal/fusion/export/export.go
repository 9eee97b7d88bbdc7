// Package export writes per-frame pipeline outputs to a directory tree:
// one directory per frame holding the overlay and camera PNGs, the
// filtered camera-frame cloud as PCD, the ranked cluster listing as JSON
// and the cropped local map.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/banshee-data/sensor.fusion/internal/fsutil"
	"github.com/banshee-data/sensor.fusion/internal/fusion"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l5rank"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l6overlay"
	"github.com/banshee-data/sensor.fusion/internal/fusion/mapio"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
	"github.com/banshee-data/sensor.fusion/internal/security"
)

// Writer is a pipeline sink that persists outputs under Root.
type Writer struct {
	Root string
	FS   fsutil.FileSystem

	// SkipRaw disables writing the camera image next to each overlay.
	SkipRaw bool
	// SkipLocalMap disables writing the per-frame local map.
	SkipLocalMap bool
}

// NewWriter returns a writer rooted at root on the real filesystem.
func NewWriter(root string) *Writer {
	return &Writer{Root: root, FS: fsutil.OSFileSystem{}}
}

// Sinks returns w wired into every pipeline output.
func (w *Writer) Sinks() pipeline.Sinks {
	return pipeline.Sinks{Overlay: w, Cloud: w, Clusters: w, LocalMap: w}
}

// FrameDir returns the directory used for a frame.
func (w *Writer) FrameDir(frameID string) string {
	return filepath.Join(w.Root, security.SanitizeFilename(frameID))
}

func (w *Writer) path(frameID, cameraID, suffix string) string {
	return filepath.Join(w.FrameDir(frameID), security.SanitizeFilename(cameraID)+suffix)
}

func (w *Writer) write(name string, data []byte) error {
	if err := w.FS.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(name), err)
	}
	if err := w.FS.WriteFile(name, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// PublishOverlay writes <camera>_overlay.png and, unless SkipRaw is set
// or the frame carried no image, <camera>_raw.png.
func (w *Writer) PublishOverlay(_ context.Context, out pipeline.OverlayOutput) error {
	data, err := l6overlay.EncodePNG(out.Overlay)
	if err != nil {
		return err
	}
	if err := w.write(w.path(out.FrameID, out.CameraID, "_overlay.png"), data); err != nil {
		return err
	}
	if w.SkipRaw || out.Raw == nil {
		return nil
	}
	raw, err := l6overlay.EncodePNG(out.Raw)
	if err != nil {
		return err
	}
	return w.write(w.path(out.FrameID, out.CameraID, "_raw.png"), raw)
}

// PublishCloud writes <camera>_cloud.pcd.
func (w *Writer) PublishCloud(_ context.Context, out pipeline.CloudOutput) error {
	var buf bytes.Buffer
	if err := mapio.WritePCD(&buf, out.Cloud); err != nil {
		return err
	}
	return w.write(w.path(out.FrameID, out.CameraID, "_cloud.pcd"), buf.Bytes())
}

// clusterFile is the JSON layout of <camera>_clusters.json.
type clusterFile struct {
	FrameID  string                  `json:"frame_id"`
	CameraID string                  `json:"camera_id"`
	Stamp    time.Time               `json:"stamp"`
	Clusters []l5rank.ClusterSummary `json:"clusters"`
}

// PublishClusters writes <camera>_clusters.json.
func (w *Writer) PublishClusters(_ context.Context, report pipeline.ClusterReport) error {
	doc := clusterFile{
		FrameID:  report.FrameID,
		CameraID: report.CameraID,
		Stamp:    report.Stamp.UTC(),
		Clusters: report.Summaries,
	}
	if doc.Clusters == nil {
		doc.Clusters = []l5rank.ClusterSummary{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal clusters: %w", err)
	}
	if err := w.write(w.path(report.FrameID, report.CameraID, "_clusters.json"), data); err != nil {
		return err
	}
	fusion.Tracef("export: %d clusters to %s", len(report.Summaries), w.FrameDir(report.FrameID))
	return nil
}

// PublishLocalMap writes local_map.pcd unless SkipLocalMap is set.
func (w *Writer) PublishLocalMap(_ context.Context, frameID string, cloud l1geom.PointCloud) error {
	if w.SkipLocalMap {
		return nil
	}
	var buf bytes.Buffer
	if err := mapio.WritePCD(&buf, cloud); err != nil {
		return err
	}
	return w.write(filepath.Join(w.FrameDir(frameID), "local_map.pcd"), buf.Bytes())
}
