package l4perception

import (
	"math"
	"sort"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
)

type voxelKey struct {
	ix, iy, iz int64
}

type voxelAcc struct {
	key        voxelKey
	n          int
	x, y, z    float64
	r, g, b    int
	colored    int
	nx, ny, nz float64
	normals    int
}

// VoxelGrid downsamples points by replacing every point inside each cubic
// voxel of edge leaf with the average of their attributes. Voxels are keyed
// by floor(coord/leaf) and emitted in (ix, iy, iz) order, so the output does
// not depend on input order. A non-positive leaf returns a copy.
func VoxelGrid(points []l1geom.Point, leaf float64) []l1geom.Point {
	if len(points) == 0 {
		return nil
	}
	if leaf <= 0 {
		out := make([]l1geom.Point, len(points))
		copy(out, points)
		return out
	}

	cells := make(map[voxelKey]*voxelAcc)
	for _, p := range points {
		if !p.Finite() {
			continue
		}
		k := voxelKey{
			ix: int64(math.Floor(p.X / leaf)),
			iy: int64(math.Floor(p.Y / leaf)),
			iz: int64(math.Floor(p.Z / leaf)),
		}
		a := cells[k]
		if a == nil {
			a = &voxelAcc{key: k}
			cells[k] = a
		}
		a.n++
		a.x += p.X
		a.y += p.Y
		a.z += p.Z
		if p.HasColor {
			a.colored++
			a.r += int(p.R)
			a.g += int(p.G)
			a.b += int(p.B)
		}
		if p.HasNormal {
			a.normals++
			a.nx += float64(p.NormalX)
			a.ny += float64(p.NormalY)
			a.nz += float64(p.NormalZ)
		}
	}

	accs := make([]*voxelAcc, 0, len(cells))
	for _, a := range cells {
		accs = append(accs, a)
	}
	sort.Slice(accs, func(i, j int) bool {
		a, b := accs[i].key, accs[j].key
		if a.ix != b.ix {
			return a.ix < b.ix
		}
		if a.iy != b.iy {
			return a.iy < b.iy
		}
		return a.iz < b.iz
	})

	out := make([]l1geom.Point, len(accs))
	for i, a := range accs {
		n := float64(a.n)
		p := l1geom.Point{X: a.x / n, Y: a.y / n, Z: a.z / n}
		if a.colored > 0 {
			c := float64(a.colored)
			p.R = uint8(math.Round(float64(a.r) / c))
			p.G = uint8(math.Round(float64(a.g) / c))
			p.B = uint8(math.Round(float64(a.b) / c))
			p.HasColor = true
		}
		if a.normals > 0 {
			c := float64(a.normals)
			p.NormalX = float32(a.nx / c)
			p.NormalY = float32(a.ny / c)
			p.NormalZ = float32(a.nz / c)
			p.HasNormal = true
		}
		out[i] = p
	}
	return out
}
