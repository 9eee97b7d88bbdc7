package l1geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// MatrixValidationTolerance bounds |det(R)-1| for a usable rotation block.
const MatrixValidationTolerance = 0.01

// Matrix returns t as a 4x4 row-major homogeneous matrix:
// m00,m01,m02,tx, m10,...,ty, m20,...,tz, 0,0,0,1.
func (t RigidTransform) Matrix() [16]float64 {
	q := normalize(t.Rotation)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [16]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y), t.Translation.X,
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x), t.Translation.Y,
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y), t.Translation.Z,
		0, 0, 0, 1,
	}
}

// IsValidTransformMatrix checks that the rotation block of a row-major 4x4
// matrix is a proper rotation and the last row is [0 0 0 1].
func IsValidTransformMatrix(m [16]float64) bool {
	r00, r01, r02 := m[0], m[1], m[2]
	r10, r11, r12 := m[4], m[5], m[6]
	r20, r21, r22 := m[8], m[9], m[10]

	det := r00*(r11*r22-r12*r21) - r01*(r10*r22-r12*r20) + r02*(r10*r21-r11*r20)
	if math.Abs(det-1.0) > MatrixValidationTolerance {
		return false
	}
	if m[12] != 0 || m[13] != 0 || m[14] != 0 || math.Abs(m[15]-1.0) > 0.001 {
		return false
	}
	return true
}

// FromMatrix converts a row-major 4x4 matrix into a RigidTransform. It
// returns false when the matrix is not a valid rigid transform.
func FromMatrix(m [16]float64, source, target string) (RigidTransform, bool) {
	if !IsValidTransformMatrix(m) {
		return RigidTransform{}, false
	}
	r00, r01, r02 := m[0], m[1], m[2]
	r10, r11, r12 := m[4], m[5], m[6]
	r20, r21, r22 := m[8], m[9], m[10]

	var q quat.Number
	switch tr := r00 + r11 + r22; {
	case tr > 0:
		s := 2 * math.Sqrt(tr+1)
		q = quat.Number{Real: s / 4, Imag: (r21 - r12) / s, Jmag: (r02 - r20) / s, Kmag: (r10 - r01) / s}
	case r00 > r11 && r00 > r22:
		s := 2 * math.Sqrt(1+r00-r11-r22)
		q = quat.Number{Real: (r21 - r12) / s, Imag: s / 4, Jmag: (r01 + r10) / s, Kmag: (r02 + r20) / s}
	case r11 > r22:
		s := 2 * math.Sqrt(1+r11-r00-r22)
		q = quat.Number{Real: (r02 - r20) / s, Imag: (r01 + r10) / s, Jmag: s / 4, Kmag: (r12 + r21) / s}
	default:
		s := 2 * math.Sqrt(1+r22-r00-r11)
		q = quat.Number{Real: (r10 - r01) / s, Imag: (r02 + r20) / s, Jmag: (r12 + r21) / s, Kmag: s / 4}
	}
	return NewRigidTransform(r3.Vec{X: m[3], Y: m[7], Z: m[11]}, q, source, target), true
}
