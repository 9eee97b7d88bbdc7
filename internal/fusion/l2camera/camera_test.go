package l2camera

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
)

func testCamera() *CameraModel {
	return &CameraModel{ID: "zed0", Width: 640, Height: 480, Fx: 500, Fy: 500, Cx: 320, Cy: 240}
}

func TestProject_ForwardAxisHitsPrincipalPoint(t *testing.T) {
	cam := testCamera()
	u, v, ok := cam.Project(l1geom.Point{X: 5})
	if !ok {
		t.Fatal("forward point should project")
	}
	if u != cam.Cx || v != cam.Cy {
		t.Errorf("Project = (%v, %v), want (%v, %v)", u, v, cam.Cx, cam.Cy)
	}
}

func TestProject_Axes(t *testing.T) {
	cam := testCamera()
	// A point to the left (+y) lands left of centre, a point above (+z) lands above.
	u, v, ok := cam.Project(l1geom.Point{X: 10, Y: 1, Z: 1})
	if !ok {
		t.Fatal("expected valid projection")
	}
	if u != 270 || v != 190 {
		t.Errorf("Project = (%v, %v), want (270, 190)", u, v)
	}
}

func TestProject_Invalid(t *testing.T) {
	cam := testCamera()
	tests := []struct {
		name string
		p    l1geom.Point
	}{
		{"behind", l1geom.Point{X: -1}},
		{"on plane", l1geom.Point{X: 0, Y: 1}},
		{"nan", l1geom.Point{X: math.NaN()}},
		{"off right edge", l1geom.Point{X: 1, Y: -1}},
		{"off top", l1geom.Point{X: 1, Z: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, ok := cam.Project(tt.p); ok {
				t.Errorf("Project(%+v) should be invalid", tt.p)
			}
		})
	}
}

func TestProject_StereoOffset(t *testing.T) {
	cam := testCamera()
	cam.Tx = -60 // fx * 0.12 m baseline
	u, _, ok := cam.Project(l1geom.Point{X: 6})
	if !ok {
		t.Fatal("expected valid projection")
	}
	if u != 310 {
		t.Errorf("u = %v, want 310", u)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cam     *CameraModel
		wantErr bool
	}{
		{"ok", testCamera(), false},
		{"nil", nil, true},
		{"zero size", &CameraModel{Fx: 1, Fy: 1}, true},
		{"zero focal", &CameraModel{Width: 1, Height: 1, Fy: 1}, true},
		{"nan centre", &CameraModel{Width: 1, Height: 1, Fx: 1, Fy: 1, Cx: math.NaN()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cam.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNoIntrinsics) {
				t.Errorf("error %v does not wrap ErrNoIntrinsics", err)
			}
		})
	}
}
