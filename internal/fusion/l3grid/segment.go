package l3grid

import (
	"fmt"

	"github.com/banshee-data/sensor.fusion/internal/fusion"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
)

// Mode selects the non-ground test.
type Mode int

const (
	// ModeAbsoluteHeight marks a point non-ground when its z exceeds the threshold.
	ModeAbsoluteHeight Mode = iota
	// ModeCellRange marks a point non-ground when its cell's max-min height
	// exceeds the threshold.
	ModeCellRange
)

// String returns the config name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeAbsoluteHeight:
		return "absolute_height"
	case ModeCellRange:
		return "cell_range"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a config name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "absolute_height":
		return ModeAbsoluteHeight, nil
	case "cell_range":
		return ModeCellRange, nil
	}
	return 0, fmt.Errorf("unknown ground mode %q", s)
}

// Options configures SegmentWithOptions.
type Options struct {
	CellSize        float64
	GridDim         int
	HeightThreshold float64
	Mode            Mode
	Workers         int
}

// Segment splits sensor-frame points into non-ground and ground sets using
// absolute height. See SegmentWithOptions.
func Segment(points []l1geom.Point, cellSize float64, gridDim int, heightThreshold float64) (nonGround, ground []l1geom.Point) {
	nonGround, ground, _ = SegmentWithOptions(points, Options{
		CellSize:        cellSize,
		GridDim:         gridDim,
		HeightThreshold: heightThreshold,
	})
	return nonGround, ground
}

// SegmentWithOptions bins points into a height grid and classifies every
// point in the output region (GridDim/2 <= ix < GridDim, 0 <= iy < GridDim).
// Other points are dropped from both outputs. Both outputs preserve input
// order. The populated grid is returned for diagnostics.
func SegmentWithOptions(points []l1geom.Point, opts Options) (nonGround, ground []l1geom.Point, grid *GroundGrid) {
	grid = NewGroundGrid(opts.GridDim, opts.CellSize)
	if len(points) == 0 || grid.Dim == 0 {
		return nil, nil, grid
	}
	cells := grid.Accumulate(points, opts.Workers)

	half := grid.Dim / 2
	dropped := 0
	for i, p := range points {
		c := cells[i]
		if c < 0 || c/grid.Dim < half {
			dropped++
			continue
		}
		var above bool
		switch opts.Mode {
		case ModeCellRange:
			above = grid.Max[c]-grid.Min[c] > opts.HeightThreshold
		default:
			above = p.Z > opts.HeightThreshold
		}
		if above {
			nonGround = append(nonGround, p)
		} else {
			ground = append(ground, p)
		}
	}
	fusion.Tracef("ground segmentation (%s): %d in, %d non-ground, %d ground, %d outside grid",
		opts.Mode, len(points), len(nonGround), len(ground), dropped)
	return nonGround, ground, grid
}
