package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l2camera"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
	"github.com/banshee-data/sensor.fusion/internal/security"
)

// maxManifestSize bounds a frame manifest file.
const maxManifestSize = 1 << 20

// transformJSON is a rigid transform with the rotation as [x, y, z, w].
type transformJSON struct {
	Translation [3]float64 `json:"translation"`
	Rotation    [4]float64 `json:"rotation"`
	Source      string     `json:"source"`
	Target      string     `json:"target"`
}

func (t transformJSON) rigid() l1geom.RigidTransform {
	return l1geom.NewRigidTransform(
		r3.Vec{X: t.Translation[0], Y: t.Translation[1], Z: t.Translation[2]},
		quat.Number{Real: t.Rotation[3], Imag: t.Rotation[0], Jmag: t.Rotation[1], Kmag: t.Rotation[2]},
		t.Source, t.Target,
	)
}

type cameraJSON struct {
	ID         string        `json:"id"`
	CameraInfo string        `json:"camera_info"`
	Image      string        `json:"image,omitempty"`
	Transform  transformJSON `json:"transform"`
}

type manifestJSON struct {
	Stamp      time.Time     `json:"stamp"`
	SensorPose transformJSON `json:"sensor_pose"`
	Cameras    []cameraJSON  `json:"cameras"`
}

// loadManifest reads one frame manifest. Relative paths resolve against
// the manifest's directory and may not leave it. A camera whose files
// cannot be read is left out of the frame and reported in camErrs.
func loadManifest(path string) (in pipeline.FrameInput, camErrs []error, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return in, nil, err
	}
	if info.Size() > maxManifestSize {
		return in, nil, fmt.Errorf("manifest %s too large: %d bytes", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return in, nil, err
	}
	var m manifestJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return in, nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return in, nil, err
	}
	in.Stamp = m.Stamp
	in.SensorPose = m.SensorPose.rigid()
	seen := make(map[string]bool, len(m.Cameras))
	for _, c := range m.Cameras {
		if c.ID == "" {
			camErrs = append(camErrs, fmt.Errorf("manifest %s: camera without id", path))
			continue
		}
		if seen[c.ID] {
			camErrs = append(camErrs, fmt.Errorf("manifest %s: duplicate camera %q", path, c.ID))
			continue
		}
		seen[c.ID] = true
		cam, err := loadCamera(dir, c)
		if err != nil {
			camErrs = append(camErrs, fmt.Errorf("camera %s: %w", c.ID, err))
			continue
		}
		in.Cameras = append(in.Cameras, cam)
	}
	return in, camErrs, nil
}

func loadCamera(dir string, c cameraJSON) (pipeline.CameraInput, error) {
	cam := pipeline.CameraInput{ID: c.ID, SensorToCamera: c.Transform.rigid()}
	infoPath, err := security.ResolveWithin(dir, c.CameraInfo)
	if err != nil {
		return cam, fmt.Errorf("camera_info: %w", err)
	}
	model, err := l2camera.LoadCameraInfo(infoPath)
	if err != nil {
		return cam, err
	}
	model.ID = c.ID
	cam.Model = model

	if c.Image != "" {
		imgPath, err := security.ResolveWithin(dir, c.Image)
		if err != nil {
			return cam, fmt.Errorf("image: %w", err)
		}
		if cam.Encoded, err = os.ReadFile(imgPath); err != nil {
			return cam, err
		}
	}
	return cam, nil
}

// listManifests returns the *.json files in dir in lexical order.
func listManifests(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frame manifests in %s", dir)
	}
	return paths, nil
}
