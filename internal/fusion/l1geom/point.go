package l1geom

import (
	"math"
	"time"
)

// Point is a single map or sensor return. Colour and normal are optional
// attributes and are carried through transforms untouched.
type Point struct {
	X, Y, Z float64

	R, G, B  uint8
	HasColor bool

	NormalX, NormalY, NormalZ float32
	HasNormal                 bool
}

// Finite reports whether all three coordinates are finite.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

// Range returns the Euclidean distance from the frame origin.
func (p Point) Range() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// PlanarRange returns the distance from the origin in the XY plane.
func (p Point) PlanarRange() float64 {
	return math.Hypot(p.X, p.Y)
}

// PointCloud is an ordered set of points expressed in a single frame.
type PointCloud struct {
	Frame  string
	Stamp  time.Time
	Points []Point
}

// Len returns the number of points.
func (c PointCloud) Len() int { return len(c.Points) }

// Clone returns a deep copy of the cloud.
func (c PointCloud) Clone() PointCloud {
	out := PointCloud{Frame: c.Frame, Stamp: c.Stamp}
	if c.Points != nil {
		out.Points = make([]Point, len(c.Points))
		copy(out.Points, c.Points)
	}
	return out
}

// WithPoints returns a cloud in the same frame and stamp holding pts.
func (c PointCloud) WithPoints(pts []Point) PointCloud {
	return PointCloud{Frame: c.Frame, Stamp: c.Stamp, Points: pts}
}
