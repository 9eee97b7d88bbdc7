package l3grid

import (
	"math"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
	"github.com/banshee-data/sensor.fusion/internal/fusion/parallel"
)

// GroundGrid holds per-cell height extrema for one segmentation call.
// Cells are stored row-major by ix: cell (ix, iy) is at ix*Dim+iy.
type GroundGrid struct {
	Dim      int
	CellSize float64
	Min      []float64
	Max      []float64
	Init     []bool
}

// NewGroundGrid allocates a Dim x Dim grid.
func NewGroundGrid(dim int, cellSize float64) *GroundGrid {
	if dim < 0 {
		dim = 0
	}
	n := dim * dim
	return &GroundGrid{
		Dim:      dim,
		CellSize: cellSize,
		Min:      make([]float64, n),
		Max:      make([]float64, n),
		Init:     make([]bool, n),
	}
}

// CellIndex returns the grid cell for p. ok is false when p is non-finite
// or falls outside [0, Dim) on either axis.
func (g *GroundGrid) CellIndex(p l1geom.Point) (ix, iy int, ok bool) {
	ix, okx := g.axisIndex(p.X)
	iy, oky := g.axisIndex(p.Y)
	return ix, iy, okx && oky
}

func (g *GroundGrid) axisIndex(v float64) (int, bool) {
	if g.CellSize <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return -1, false
	}
	f := float64(g.Dim/2) + v/g.CellSize
	// Truncation toward zero maps (-1, 0) onto cell 0.
	if f <= -1 || f >= float64(g.Dim) {
		return -1, false
	}
	return int(f), true
}

// Range returns max-min height for an initialised cell, or 0.
func (g *GroundGrid) Range(ix, iy int) float64 {
	i := ix*g.Dim + iy
	if !g.Init[i] {
		return 0
	}
	return g.Max[i] - g.Min[i]
}

// Accumulate folds every in-grid point into the per-cell extrema. Cell
// indexes are computed in parallel chunks, then each worker owns a band of
// ix rows and updates only cells in that band.
func (g *GroundGrid) Accumulate(points []l1geom.Point, workers int) []int {
	cells := make([]int, len(points))
	parallel.ForEachBand(len(points), workers, func(b parallel.Band) {
		for i := b.Lo; i < b.Hi; i++ {
			ix, iy, ok := g.CellIndex(points[i])
			if !ok {
				cells[i] = -1
				continue
			}
			cells[i] = ix*g.Dim + iy
		}
	})

	parallel.ForEachBand(g.Dim, workers, func(b parallel.Band) {
		lo, hi := b.Lo*g.Dim, b.Hi*g.Dim
		for i, c := range cells {
			if c < lo || c >= hi {
				continue
			}
			z := points[i].Z
			if !g.Init[c] {
				g.Min[c], g.Max[c], g.Init[c] = z, z, true
				continue
			}
			if z < g.Min[c] {
				g.Min[c] = z
			}
			if z > g.Max[c] {
				g.Max[c] = z
			}
		}
	})
	return cells
}
