package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l3grid"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l4perception"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// Unset fields fall back to the defaults returned by the Get* accessors, so
// partial files are valid.
type TuningConfig struct {
	// Frames
	MapFrame    *string `json:"map_frame,omitempty"`
	SensorFrame *string `json:"sensor_frame,omitempty"`

	// Clustering params
	VoxelLeafSize    *float64 `json:"voxel_leaf_size,omitempty"`
	ClusterTolerance *float64 `json:"cluster_tolerance,omitempty"`
	MinClusterSize   *int     `json:"min_cluster_size,omitempty"`
	MaxClusterSize   *int     `json:"max_cluster_size,omitempty"`

	// Ground segmentation params
	HeightThreshold *float64 `json:"height_threshold,omitempty"`
	GridCellSize    *float64 `json:"grid_cell_size,omitempty"`
	GridDimensions  *int     `json:"grid_dimensions,omitempty"`
	GroundMode      *string  `json:"ground_mode,omitempty"` // "absolute_height" or "cell_range"

	// Projection and overlay params
	MaxRange         *float64 `json:"max_range,omitempty"`
	SplatRadius      *int     `json:"splat_radius,omitempty"`
	NearestDepthWins *bool    `json:"nearest_depth_wins,omitempty"`
	DiscRadius       *int     `json:"disc_radius,omitempty"`
	CropLocalMap     *bool    `json:"crop_local_map,omitempty"`

	// Scheduling
	Workers       *int    `json:"workers,omitempty"`
	CameraWorkers *int    `json:"camera_workers,omitempty"`
	FrameInterval *string `json:"frame_interval,omitempty"` // duration string like "100ms"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field set to its default.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		MapFrame:         ptrString(e.GetMapFrame()),
		SensorFrame:      ptrString(e.GetSensorFrame()),
		VoxelLeafSize:    ptrFloat64(e.GetVoxelLeafSize()),
		ClusterTolerance: ptrFloat64(e.GetClusterTolerance()),
		MinClusterSize:   ptrInt(e.GetMinClusterSize()),
		MaxClusterSize:   ptrInt(e.GetMaxClusterSize()),
		HeightThreshold:  ptrFloat64(e.GetHeightThreshold()),
		GridCellSize:     ptrFloat64(e.GetGridCellSize()),
		GridDimensions:   ptrInt(e.GetGridDimensions()),
		GroundMode:       ptrString(e.GetGroundMode().String()),
		MaxRange:         ptrFloat64(e.GetMaxRange()),
		SplatRadius:      ptrInt(e.GetSplatRadius()),
		NearestDepthWins: ptrBool(e.GetNearestDepthWins()),
		DiscRadius:       ptrInt(e.GetDiscRadius()),
		CropLocalMap:     ptrBool(e.GetCropLocalMap()),
		Workers:          ptrInt(e.GetWorkers()),
		CameraWorkers:    ptrInt(e.GetCameraWorkers()),
		FrameInterval:    ptrString(e.GetFrameInterval().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates a JSON tuning document.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/fusion/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func positive(name string, v *float64) error {
	if v != nil && (!(*v > 0) || math.IsInf(*v, 0)) {
		return fmt.Errorf("%s must be positive and finite, got %f", name, *v)
	}
	return nil
}

func nonNegative(name string, v *int) error {
	if v != nil && *v < 0 {
		return fmt.Errorf("%s must be non-negative, got %d", name, *v)
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	for _, check := range []error{
		positive("voxel_leaf_size", c.VoxelLeafSize),
		positive("cluster_tolerance", c.ClusterTolerance),
		positive("grid_cell_size", c.GridCellSize),
		positive("max_range", c.MaxRange),
		nonNegative("min_cluster_size", c.MinClusterSize),
		nonNegative("splat_radius", c.SplatRadius),
		nonNegative("disc_radius", c.DiscRadius),
		nonNegative("workers", c.Workers),
		nonNegative("camera_workers", c.CameraWorkers),
	} {
		if check != nil {
			return check
		}
	}

	if c.HeightThreshold != nil && (math.IsNaN(*c.HeightThreshold) || math.IsInf(*c.HeightThreshold, 0)) {
		return fmt.Errorf("height_threshold must be finite, got %f", *c.HeightThreshold)
	}
	if c.GridDimensions != nil && *c.GridDimensions <= 0 {
		return fmt.Errorf("grid_dimensions must be positive, got %d", *c.GridDimensions)
	}
	if lo, hi := c.GetMinClusterSize(), c.GetMaxClusterSize(); hi < lo {
		return fmt.Errorf("max_cluster_size (%d) must not be below min_cluster_size (%d)", hi, lo)
	}
	if c.GroundMode != nil {
		if _, err := l3grid.ParseMode(*c.GroundMode); err != nil {
			return err
		}
	}
	if c.FrameInterval != nil && *c.FrameInterval != "" {
		if _, err := time.ParseDuration(*c.FrameInterval); err != nil {
			return fmt.Errorf("invalid frame_interval '%s': %w", *c.FrameInterval, err)
		}
	}
	return nil
}

// GetMapFrame returns the map_frame value or the default.
func (c *TuningConfig) GetMapFrame() string {
	if c.MapFrame == nil || *c.MapFrame == "" {
		return "map"
	}
	return *c.MapFrame
}

// GetSensorFrame returns the sensor_frame value or the default.
func (c *TuningConfig) GetSensorFrame() string {
	if c.SensorFrame == nil || *c.SensorFrame == "" {
		return "laser"
	}
	return *c.SensorFrame
}

// GetVoxelLeafSize returns the voxel_leaf_size value or the default.
func (c *TuningConfig) GetVoxelLeafSize() float64 {
	if c.VoxelLeafSize == nil {
		return 0.1
	}
	return *c.VoxelLeafSize
}

// GetClusterTolerance returns the cluster_tolerance value or the default.
func (c *TuningConfig) GetClusterTolerance() float64 {
	if c.ClusterTolerance == nil {
		return 0.15
	}
	return *c.ClusterTolerance
}

// GetMinClusterSize returns the min_cluster_size value or the default.
func (c *TuningConfig) GetMinClusterSize() int {
	if c.MinClusterSize == nil {
		return 100
	}
	return *c.MinClusterSize
}

// GetMaxClusterSize returns the max_cluster_size value or the default.
func (c *TuningConfig) GetMaxClusterSize() int {
	if c.MaxClusterSize == nil {
		return 1000000
	}
	return *c.MaxClusterSize
}

// GetHeightThreshold returns the height_threshold value or the default.
func (c *TuningConfig) GetHeightThreshold() float64 {
	if c.HeightThreshold == nil {
		return 0.3
	}
	return *c.HeightThreshold
}

// GetGridCellSize returns the grid_cell_size value or the default.
func (c *TuningConfig) GetGridCellSize() float64 {
	if c.GridCellSize == nil {
		return 0.5
	}
	return *c.GridCellSize
}

// GetGridDimensions returns the grid_dimensions value or the default.
func (c *TuningConfig) GetGridDimensions() int {
	if c.GridDimensions == nil {
		return 200
	}
	return *c.GridDimensions
}

// GetGroundMode returns the parsed ground_mode, or the default on a bad value.
func (c *TuningConfig) GetGroundMode() l3grid.Mode {
	if c.GroundMode == nil {
		return l3grid.ModeAbsoluteHeight
	}
	m, err := l3grid.ParseMode(*c.GroundMode)
	if err != nil {
		return l3grid.ModeAbsoluteHeight
	}
	return m
}

// GetMaxRange returns the max_range value or the default.
func (c *TuningConfig) GetMaxRange() float64 {
	if c.MaxRange == nil {
		return 30
	}
	return *c.MaxRange
}

// GetSplatRadius returns the splat_radius value or the default.
func (c *TuningConfig) GetSplatRadius() int {
	if c.SplatRadius == nil {
		return 1
	}
	return *c.SplatRadius
}

// GetNearestDepthWins returns the nearest_depth_wins value or the default.
func (c *TuningConfig) GetNearestDepthWins() bool {
	if c.NearestDepthWins == nil {
		return false // default: last write wins
	}
	return *c.NearestDepthWins
}

// GetDiscRadius returns the disc_radius value or the default.
func (c *TuningConfig) GetDiscRadius() int {
	if c.DiscRadius == nil {
		return 3
	}
	return *c.DiscRadius
}

// GetCropLocalMap returns the crop_local_map value or the default.
func (c *TuningConfig) GetCropLocalMap() bool {
	if c.CropLocalMap == nil {
		return true
	}
	return *c.CropLocalMap
}

// GetWorkers returns the workers value or the default (0 = GOMAXPROCS).
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetCameraWorkers returns the camera_workers value or the default (0 = GOMAXPROCS).
func (c *TuningConfig) GetCameraWorkers() int {
	if c.CameraWorkers == nil {
		return 0
	}
	return *c.CameraWorkers
}

// GetFrameInterval parses and returns the FrameInterval as a time.Duration.
// It paces frame replay; zero replays as fast as frames are processed.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	if c.FrameInterval == nil || *c.FrameInterval == "" {
		return 100 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.FrameInterval)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// PipelineConfig converts the tuning values into a pipeline configuration.
func (c *TuningConfig) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		MapFrame:        c.GetMapFrame(),
		SensorFrame:     c.GetSensorFrame(),
		MaxRange:        c.GetMaxRange(),
		SplatRadius:     c.GetSplatRadius(),
		NearestWins:     c.GetNearestDepthWins(),
		GroundCellSize:  c.GetGridCellSize(),
		GroundGridDim:   c.GetGridDimensions(),
		HeightThreshold: c.GetHeightThreshold(),
		GroundMode:      c.GetGroundMode(),
		Cluster: l4perception.ClusterParams{
			VoxelLeaf: c.GetVoxelLeafSize(),
			Tolerance: c.GetClusterTolerance(),
			MinSize:   c.GetMinClusterSize(),
			MaxSize:   c.GetMaxClusterSize(),
		},
		DiscRadius:    c.GetDiscRadius(),
		CropLocalMap:  c.GetCropLocalMap(),
		Workers:       c.GetWorkers(),
		CameraWorkers: c.GetCameraWorkers(),
	}
}
