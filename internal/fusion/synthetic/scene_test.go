package synthetic

import (
	"testing"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
)

func TestPlaneAndBox_Counts(t *testing.T) {
	cloud := PlaneAndBox(DefaultSceneOptions())
	// 101x101 plane samples plus a 21^3 box.
	if want := 101*101 + 21*21*21; cloud.Len() != want {
		t.Fatalf("Len() = %d, want %d", cloud.Len(), want)
	}
	if cloud.Frame != "map" {
		t.Errorf("Frame = %q", cloud.Frame)
	}
	last := cloud.Points[cloud.Len()-1]
	if last.X != 3 || last.Y != 3 || last.Z != 1.5 {
		t.Errorf("last box point = %+v, want (3, 3, 1.5)", last)
	}
}

func TestCamera_SeesBox(t *testing.T) {
	cam := Camera("cam0")
	if err := cam.Validate(); err != nil {
		t.Fatal(err)
	}
	for _, p := range []l1geom.Point{{X: 2, Y: 2, Z: 0.5}, {X: 3, Y: 3, Z: 1.5}, {X: 2, Y: 3, Z: 1.5}} {
		if _, _, ok := cam.Project(p); !ok {
			t.Errorf("box corner %+v not in view", p)
		}
	}
	if img := Image(cam); img.Bounds().Dx() != 640 {
		t.Errorf("image width = %d", img.Bounds().Dx())
	}
}
