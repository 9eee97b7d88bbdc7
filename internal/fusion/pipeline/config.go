package pipeline

import (
	"fmt"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l2camera"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l3grid"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l4perception"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l6overlay"
)

// Config holds the per-frame processing parameters.
type Config struct {
	MapFrame    string
	SensorFrame string

	// MaxRange is the visibility threshold in metres for projection and
	// colouring.
	MaxRange    float64
	SplatRadius int
	NearestWins bool

	GroundCellSize  float64
	GroundGridDim   int
	HeightThreshold float64
	GroundMode      l3grid.Mode

	Cluster l4perception.ClusterParams

	DiscRadius int

	// CropLocalMap limits the sensor-frame map to |x|,|y| <= MaxRange
	// before per-camera work.
	CropLocalMap bool

	// Workers bounds per-band parallelism inside a camera; CameraWorkers
	// bounds how many cameras run at once. Zero means GOMAXPROCS.
	Workers       int
	CameraWorkers int
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		MapFrame:        "map",
		SensorFrame:     "laser",
		MaxRange:        30,
		SplatRadius:     1,
		GroundCellSize:  0.5,
		GroundGridDim:   200,
		HeightThreshold: 0.3,
		GroundMode:      l3grid.ModeAbsoluteHeight,
		Cluster:         l4perception.DefaultClusterParams(),
		DiscRadius:      3,
		CropLocalMap:    true,
	}
}

// Validate reports configuration values that cannot produce output.
func (c Config) Validate() error {
	switch {
	case !(c.MaxRange > 0):
		return fmt.Errorf("max_range must be positive, got %v", c.MaxRange)
	case c.SplatRadius < 0:
		return fmt.Errorf("splat_radius must be non-negative, got %d", c.SplatRadius)
	case !(c.GroundCellSize > 0):
		return fmt.Errorf("grid_cell_size must be positive, got %v", c.GroundCellSize)
	case c.GroundGridDim <= 0:
		return fmt.Errorf("grid_dimensions must be positive, got %d", c.GroundGridDim)
	case c.Cluster.Tolerance <= 0:
		return fmt.Errorf("cluster_tolerance must be positive, got %v", c.Cluster.Tolerance)
	case c.Cluster.MinSize < 0 || c.Cluster.MaxSize < c.Cluster.MinSize:
		return fmt.Errorf("cluster size range [%d, %d] is invalid", c.Cluster.MinSize, c.Cluster.MaxSize)
	case c.DiscRadius < 0:
		return fmt.Errorf("disc_radius must be non-negative, got %d", c.DiscRadius)
	}
	return nil
}

func (c Config) depthOptions() l2camera.DepthOptions {
	return l2camera.DepthOptions{MaxRange: c.MaxRange, SplatRadius: c.SplatRadius, NearestWins: c.NearestWins}
}

func (c Config) groundOptions() l3grid.Options {
	return l3grid.Options{
		CellSize:        c.GroundCellSize,
		GridDim:         c.GroundGridDim,
		HeightThreshold: c.HeightThreshold,
		Mode:            c.GroundMode,
		Workers:         c.Workers,
	}
}

func (c Config) overlayOptions() l6overlay.Options {
	return l6overlay.Options{DiscRadius: c.DiscRadius, Workers: c.Workers}
}
