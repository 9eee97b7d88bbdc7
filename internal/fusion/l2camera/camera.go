package l2camera

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
)

// ErrNoIntrinsics is returned when a camera has no usable intrinsics.
var ErrNoIntrinsics = errors.New("camera intrinsics not available")

// CameraModel is a pinhole camera with its image size and projection
// parameters. Fx, Fy, Cx, Cy are in pixels; Tx, Ty are the projection
// matrix offsets (-fx·baseline for the right camera of a stereo pair).
type CameraModel struct {
	ID     string `json:"id"`
	Frame  string `json:"frame"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
	Tx float64 `json:"tx"`
	Ty float64 `json:"ty"`
}

// Validate reports ErrNoIntrinsics when the model cannot project.
func (c *CameraModel) Validate() error {
	if c == nil {
		return ErrNoIntrinsics
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: image size %dx%d", ErrNoIntrinsics, c.Width, c.Height)
	}
	for name, v := range map[string]float64{"fx": c.Fx, "fy": c.Fy} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrNoIntrinsics, name, v)
		}
	}
	for name, v := range map[string]float64{"cx": c.Cx, "cy": c.Cy, "tx": c.Tx, "ty": c.Ty} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrNoIntrinsics, name, v)
		}
	}
	return nil
}

// Project maps a sensor-frame point to pixel coordinates. ok is false when
// the point is behind the camera, non-finite, or lands outside
// [0, Width) x [0, Height).
func (c *CameraModel) Project(p l1geom.Point) (u, v float64, ok bool) {
	if !p.Finite() {
		return 0, 0, false
	}
	right, down, forward := -p.Y, -p.Z, p.X
	if forward <= 0 {
		return 0, 0, false
	}
	u = c.Cx + (c.Fx*right+c.Tx)/forward
	v = c.Cy + (c.Fy*down+c.Ty)/forward
	if math.IsNaN(u) || math.IsNaN(v) {
		return 0, 0, false
	}
	if u < 0 || u >= float64(c.Width) || v < 0 || v >= float64(c.Height) {
		return u, v, false
	}
	return u, v, true
}
