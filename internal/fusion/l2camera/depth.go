package l2camera

import (
	"math"

	"github.com/banshee-data/sensor.fusion/internal/fusion"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
)

// NoDepth marks a pixel with no projected point. It compares greater than
// any visibility threshold.
var NoDepth = math.Inf(1)

// DepthBuffer is a row-major grid of ranges in metres, one per pixel.
type DepthBuffer struct {
	Width  int
	Height int
	Data   []float64
}

// NewDepthBuffer allocates a buffer with every pixel set to NoDepth.
func NewDepthBuffer(width, height int) *DepthBuffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	b := &DepthBuffer{Width: width, Height: height, Data: make([]float64, width*height)}
	for i := range b.Data {
		b.Data[i] = NoDepth
	}
	return b
}

// At returns the range at (x, y), or NoDepth outside the buffer.
func (b *DepthBuffer) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return NoDepth
	}
	return b.Data[y*b.Width+x]
}

// Set writes the range at (x, y); out-of-bounds writes are ignored.
func (b *DepthBuffer) Set(x, y int, r float64) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	b.Data[y*b.Width+x] = r
}

// Filled returns the number of pixels holding a range.
func (b *DepthBuffer) Filled() int {
	n := 0
	for _, d := range b.Data {
		if !math.IsInf(d, 1) {
			n++
		}
	}
	return n
}

// DepthOptions controls how points are written into the buffer.
type DepthOptions struct {
	// MaxRange is the visibility threshold; points at or beyond it are skipped.
	MaxRange float64
	// SplatRadius r writes each point into a (2r+1)x(2r+1) neighbourhood.
	SplatRadius int
	// NearestWins keeps the smallest range per pixel instead of the last write.
	NearestWins bool
}

// DefaultDepthOptions returns a 30 m threshold with a 3x3 splat.
func DefaultDepthOptions() DepthOptions {
	return DepthOptions{MaxRange: 30, SplatRadius: 1}
}

// BuildDepthBuffer projects every point of a sensor-frame cloud into cam
// and writes its Euclidean range into the surrounding splat, clamped to the
// image. Points are processed in input order so, unless NearestWins is set,
// the last point written to a pixel determines its value. The second
// return value holds every point that projected validly within MaxRange,
// in input order, in the same frame as cloud.
func BuildDepthBuffer(cloud l1geom.PointCloud, cam *CameraModel, opts DepthOptions) (*DepthBuffer, l1geom.PointCloud) {
	buf := NewDepthBuffer(cam.Width, cam.Height)
	ref := l1geom.PointCloud{Frame: cloud.Frame, Stamp: cloud.Stamp}
	r := opts.SplatRadius
	if r < 0 {
		r = 0
	}

	missed := 0
	for _, p := range cloud.Points {
		u, v, ok := cam.Project(p)
		if !ok {
			missed++
			continue
		}
		rng := p.Range()
		if !(rng < opts.MaxRange) {
			continue
		}
		ref.Points = append(ref.Points, p)

		px, py := int(u), int(v)
		for y := py - r; y <= py+r; y++ {
			if y < 0 || y >= buf.Height {
				continue
			}
			row := y * buf.Width
			for x := px - r; x <= px+r; x++ {
				if x < 0 || x >= buf.Width {
					continue
				}
				if opts.NearestWins && buf.Data[row+x] <= rng {
					continue
				}
				buf.Data[row+x] = rng
			}
		}
	}
	fusion.Tracef("camera %s: %d points in, %d visible, %d not projected", cam.ID, len(cloud.Points), len(ref.Points), missed)
	return buf, ref
}
