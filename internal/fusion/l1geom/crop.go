package l1geom

import "math"

// CropBox keeps the points whose |x| and |y| are both within halfExtent of
// the frame origin. Z is unbounded. A non-positive or infinite halfExtent
// returns a copy of the input.
func CropBox(cloud PointCloud, halfExtent float64) PointCloud {
	if halfExtent <= 0 || math.IsInf(halfExtent, 1) {
		return cloud.Clone()
	}
	out := PointCloud{Frame: cloud.Frame, Stamp: cloud.Stamp}
	for _, p := range cloud.Points {
		if math.Abs(p.X) <= halfExtent && math.Abs(p.Y) <= halfExtent {
			out.Points = append(out.Points, p)
		}
	}
	return out
}
