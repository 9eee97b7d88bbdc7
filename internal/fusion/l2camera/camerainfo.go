package l2camera

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CameraInfo mirrors the ROS camera_info calibration YAML layout.
type CameraInfo struct {
	ImageWidth       int    `yaml:"image_width"`
	ImageHeight      int    `yaml:"image_height"`
	CameraName       string `yaml:"camera_name"`
	FrameID          string `yaml:"frame_id"`
	CameraMatrix     Matrix `yaml:"camera_matrix"`
	ProjectionMatrix Matrix `yaml:"projection_matrix"`
}

// Matrix is a rows x cols row-major block as written by ROS calibration.
type Matrix struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Data []float64 `yaml:"data"`
}

func (m Matrix) at(r, c int) float64 { return m.Data[r*m.Cols+c] }

func (m Matrix) usable(rows, cols int) bool {
	return m.Rows == rows && m.Cols == cols && len(m.Data) == rows*cols
}

// ParseCameraInfo decodes a camera_info YAML document into a CameraModel.
// The 3x4 projection matrix is preferred; the 3x3 camera matrix is used
// when no projection matrix is present.
func ParseCameraInfo(data []byte) (*CameraModel, error) {
	var info CameraInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse camera_info: %w", err)
	}
	cam := &CameraModel{
		ID:     info.CameraName,
		Frame:  info.FrameID,
		Width:  info.ImageWidth,
		Height: info.ImageHeight,
	}
	switch {
	case info.ProjectionMatrix.usable(3, 4):
		p := info.ProjectionMatrix
		cam.Fx, cam.Cx, cam.Tx = p.at(0, 0), p.at(0, 2), p.at(0, 3)
		cam.Fy, cam.Cy, cam.Ty = p.at(1, 1), p.at(1, 2), p.at(1, 3)
	case info.CameraMatrix.usable(3, 3):
		k := info.CameraMatrix
		cam.Fx, cam.Cx = k.at(0, 0), k.at(0, 2)
		cam.Fy, cam.Cy = k.at(1, 1), k.at(1, 2)
	default:
		return nil, fmt.Errorf("%w: camera_info has neither a 3x4 projection_matrix nor a 3x3 camera_matrix", ErrNoIntrinsics)
	}
	if err := cam.Validate(); err != nil {
		return nil, err
	}
	return cam, nil
}

// LoadCameraInfo reads and parses a camera_info YAML file.
func LoadCameraInfo(path string) (*CameraModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera_info %s: %w", path, err)
	}
	cam, err := ParseCameraInfo(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cam, nil
}
