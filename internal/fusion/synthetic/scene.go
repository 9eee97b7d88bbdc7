// Package synthetic generates reproducible scenes for demos and tests: a
// flat ground plane with a solid box standing on it, viewed by a single
// forward-looking camera.
package synthetic

import (
	"image"
	"image/color"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l2camera"
)

// SceneOptions describes a plane-and-box scene in the map frame.
type SceneOptions struct {
	PlaneHalfExtent float64 // plane spans [-h, h] on x and y at z = 0
	PlaneStep       float64
	BoxMin          r3.Vec
	BoxSize         float64
	BoxStep         float64
}

// DefaultSceneOptions returns a 10 x 10 m plane sampled every 0.1 m and a
// solid 1 m cube sampled every 0.05 m with its lower corner at (2, 2, 0.5).
func DefaultSceneOptions() SceneOptions {
	return SceneOptions{
		PlaneHalfExtent: 5,
		PlaneStep:       0.1,
		BoxMin:          r3.Vec{X: 2, Y: 2, Z: 0.5},
		BoxSize:         1,
		BoxStep:         0.05,
	}
}

// steps returns n+1 evenly spaced samples over [lo, lo+span].
func steps(lo, span, step float64) []float64 {
	n := int(span/step + 0.5)
	out := make([]float64, n+1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// PlaneAndBox builds the scene cloud in frame "map". Plane points are grey
// with an upward normal; box points are orange.
func PlaneAndBox(opts SceneOptions) l1geom.PointCloud {
	cloud := l1geom.PointCloud{Frame: "map"}
	h := opts.PlaneHalfExtent
	for _, x := range steps(-h, 2*h, opts.PlaneStep) {
		for _, y := range steps(-h, 2*h, opts.PlaneStep) {
			cloud.Points = append(cloud.Points, l1geom.Point{
				X: x, Y: y,
				R: 128, G: 128, B: 128, HasColor: true,
				NormalZ: 1, HasNormal: true,
			})
		}
	}
	b := opts.BoxMin
	for _, x := range steps(b.X, opts.BoxSize, opts.BoxStep) {
		for _, y := range steps(b.Y, opts.BoxSize, opts.BoxStep) {
			for _, z := range steps(b.Z, opts.BoxSize, opts.BoxStep) {
				cloud.Points = append(cloud.Points, l1geom.Point{
					X: x, Y: y, Z: z,
					R: 255, G: 140, B: 0, HasColor: true,
				})
			}
		}
	}
	return cloud
}

// Camera returns a 640x480 camera with a wide horizontal field of view so
// the default box is in view from the origin.
func Camera(id string) *l2camera.CameraModel {
	return &l2camera.CameraModel{
		ID: id, Frame: id,
		Width: 640, Height: 480,
		Fx: 200, Fy: 200, Cx: 320, Cy: 240,
	}
}

// Image returns a uniform mid-grey frame matching cam.
func Image(cam *l2camera.CameraModel) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cam.Width, cam.Height))
	grey := color.RGBA{R: 90, G: 90, B: 90, A: 255}
	for y := 0; y < cam.Height; y++ {
		for x := 0; x < cam.Width; x++ {
			img.SetRGBA(x, y, grey)
		}
	}
	return img
}
