package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l2camera"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l4perception"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l5rank"
)

// CameraInput is one camera's contribution to a frame.
type CameraInput struct {
	ID string
	// SensorToCamera maps sensor-frame points into the camera body frame
	// (x forward, y left, z up).
	SensorToCamera l1geom.RigidTransform
	Model          *l2camera.CameraModel
	// Image is the decoded camera frame. When nil, Encoded is decoded; when
	// both are empty the overlay is sized from Model.
	Image   image.Image
	Encoded []byte
}

// FrameInput is everything needed for one pipeline pass.
type FrameInput struct {
	Stamp time.Time
	// SensorPose maps sensor-frame points into the map frame.
	SensorPose l1geom.RigidTransform
	Cameras    []CameraInput
}

// FrameContext carries per-frame state through the stages.
type FrameContext struct {
	FrameID string
	Stamp   time.Time
	Started time.Time
	Config  Config
}

// CameraError records a camera skipped for one frame.
type CameraError struct {
	CameraID string
	Err      error
}

func (e *CameraError) Error() string { return fmt.Sprintf("camera %s: %v", e.CameraID, e.Err) }

func (e *CameraError) Unwrap() error { return e.Err }

// CameraResult summarises one camera's pass.
type CameraResult struct {
	CameraID  string
	Visible   int
	NonGround int
	Ground    int
	Filled    int
	Clusters  []l4perception.Cluster
	Summaries []l5rank.ClusterSummary
	Overlay   *image.RGBA
	Image     image.Image       // camera frame the overlay belongs to, if any
	Cloud     l1geom.PointCloud // non-ground visible points in the camera frame
	Duration  time.Duration
}

// FrameResult summarises a frame. Cameras holds results for cameras that
// were processed, in input order.
type FrameResult struct {
	FrameID      string
	Stamp        time.Time
	LocalPoints  int
	Cameras      []CameraResult
	CameraErrors []*CameraError
	SinkErrors   []error
	Duration     time.Duration
}

// Err joins every per-camera and sink error, or returns nil.
func (r *FrameResult) Err() error {
	errs := make([]error, 0, len(r.CameraErrors)+len(r.SinkErrors))
	for _, e := range r.CameraErrors {
		errs = append(errs, e)
	}
	errs = append(errs, r.SinkErrors...)
	return errors.Join(errs...)
}

// ErrImageSize is returned when a camera image does not match its model.
var ErrImageSize = errors.New("image size does not match camera model")

// resolveImage returns the camera image, decoding it if needed.
func (c CameraInput) resolveImage() (image.Image, error) {
	img := c.Image
	if img == nil && len(c.Encoded) > 0 {
		decoded, _, err := image.Decode(bytes.NewReader(c.Encoded))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		img = decoded
	}
	if img == nil {
		return nil, nil
	}
	b := img.Bounds()
	if b.Dx() != c.Model.Width || b.Dy() != c.Model.Height {
		return nil, fmt.Errorf("%w: image %dx%d, model %dx%d", ErrImageSize, b.Dx(), b.Dy(), c.Model.Width, c.Model.Height)
	}
	return img, nil
}
