package l1geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sensor.fusion/internal/fusion"
)

// RigidTransform maps points expressed in Source into Target:
// p_target = R·p_source + Translation.
type RigidTransform struct {
	Translation r3.Vec
	Rotation    quat.Number
	Source      string
	Target      string
}

// Identity returns the identity transform between two frames.
func Identity(source, target string) RigidTransform {
	return RigidTransform{Rotation: quat.Number{Real: 1}, Source: source, Target: target}
}

// NewRigidTransform builds a transform and normalises its rotation.
// A zero quaternion is treated as identity.
func NewRigidTransform(translation r3.Vec, rotation quat.Number, source, target string) RigidTransform {
	return RigidTransform{
		Translation: translation,
		Rotation:    normalize(rotation),
		Source:      source,
		Target:      target,
	}
}

// FromRPY builds a transform from roll/pitch/yaw in radians (applied in
// Z-Y-X order, as ROS does) and a translation.
func FromRPY(translation r3.Vec, roll, pitch, yaw float64, source, target string) RigidTransform {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	q := quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
	return NewRigidTransform(translation, q, source, target)
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// rotate applies unit quaternion q to v.
func rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vec{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// TransformPoint maps a single coordinate through t.
func (t RigidTransform) TransformPoint(v r3.Vec) r3.Vec {
	return r3.Add(rotate(t.Rotation, v), t.Translation)
}

// Invert returns the transform mapping Target back into Source.
func Invert(t RigidTransform) RigidTransform {
	inv := quat.Conj(normalize(t.Rotation))
	return RigidTransform{
		Translation: r3.Scale(-1, rotate(inv, t.Translation)),
		Rotation:    inv,
		Source:      t.Target,
		Target:      t.Source,
	}
}

// Compose returns a∘b: the transform that applies b first, then a.
// b.Target is expected to equal a.Source.
func Compose(a, b RigidTransform) RigidTransform {
	return RigidTransform{
		Translation: r3.Add(rotate(normalize(a.Rotation), b.Translation), a.Translation),
		Rotation:    normalize(quat.Mul(a.Rotation, b.Rotation)),
		Source:      b.Source,
		Target:      a.Target,
	}
}

// String renders the transform for logs.
func (t RigidTransform) String() string {
	return fmt.Sprintf("%s->%s t=(%.3f,%.3f,%.3f) q=(%.4f,%.4f,%.4f,%.4f)",
		t.Source, t.Target,
		t.Translation.X, t.Translation.Y, t.Translation.Z,
		t.Rotation.Imag, t.Rotation.Jmag, t.Rotation.Kmag, t.Rotation.Real)
}

// Apply returns a new cloud with every point mapped through t. The result
// frame is t.Target and the stamp is preserved. Points with non-finite
// coordinates are dropped. Colour and normal attributes are copied
// unchanged.
func Apply(cloud PointCloud, t RigidTransform) PointCloud {
	if cloud.Frame != "" && t.Source != "" && cloud.Frame != t.Source {
		fusion.Diagf("transform %s applied to cloud in frame %q", t, cloud.Frame)
	}
	out := PointCloud{Frame: t.Target, Stamp: cloud.Stamp}
	if len(cloud.Points) == 0 {
		return out
	}
	q := normalize(t.Rotation)
	out.Points = make([]Point, 0, len(cloud.Points))
	dropped := 0
	for _, p := range cloud.Points {
		if !p.Finite() {
			dropped++
			continue
		}
		v := r3.Add(rotate(q, r3.Vec{X: p.X, Y: p.Y, Z: p.Z}), t.Translation)
		p.X, p.Y, p.Z = v.X, v.Y, v.Z
		out.Points = append(out.Points, p)
	}
	if dropped > 0 {
		fusion.Tracef("transform %s->%s: dropped %d non-finite points", t.Source, t.Target, dropped)
	}
	return out
}
