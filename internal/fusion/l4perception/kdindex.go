package l4perception

import "gonum.org/v1/gonum/spatial/kdtree"

// planar is a point flattened onto z = 0 that remembers its input index.
type planar struct {
	x, y float64
	idx  int
}

func (p planar) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(planar)
	switch d {
	case 0:
		return p.x - q.x
	case 1:
		return p.y - q.y
	default:
		panic("l4perception: illegal dimension")
	}
}

func (p planar) Dims() int { return 2 }

// Distance returns the squared planar distance.
func (p planar) Distance(c kdtree.Comparable) float64 {
	q := c.(planar)
	dx, dy := p.x-q.x, p.y-q.y
	return dx*dx + dy*dy
}

type planars []planar

func (p planars) Index(i int) kdtree.Comparable         { return p[i] }
func (p planars) Len() int                              { return len(p) }
func (p planars) Pivot(d kdtree.Dim) int                { return planarPlane{Dim: d, planars: p}.Pivot() }
func (p planars) Slice(start, end int) kdtree.Interface { return p[start:end] }

type planarPlane struct {
	kdtree.Dim
	planars
}

func (p planarPlane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.planars[i].x < p.planars[j].x
	}
	return p.planars[i].y < p.planars[j].y
}

func (p planarPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p planarPlane) Slice(start, end int) kdtree.SortSlicer {
	p.planars = p.planars[start:end]
	return p
}

func (p planarPlane) Swap(i, j int) {
	p.planars[i], p.planars[j] = p.planars[j], p.planars[i]
}

// planarIndex answers fixed-radius queries over flattened points.
type planarIndex struct {
	tree *kdtree.Tree
	pts  []planar
}

func newPlanarIndex(points []planar) *planarIndex {
	// kdtree.New reorders its input.
	build := make(planars, len(points))
	copy(build, points)
	return &planarIndex{tree: kdtree.New(build, false), pts: points}
}

// within appends to dst the input indexes of every point within radius of
// point i (inclusive), including i itself.
func (ix *planarIndex) within(dst []int, i int, radius float64) []int {
	keep := kdtree.NewDistKeeper(radius * radius)
	ix.tree.NearestSet(keep, ix.pts[i])
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		dst = append(dst, c.Comparable.(planar).idx)
	}
	return dst
}
