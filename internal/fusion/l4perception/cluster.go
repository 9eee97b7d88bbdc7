package l4perception

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/sensor.fusion/internal/fusion"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l1geom"
)

// Cluster is a connected group of non-ground points with its summary.
// Depth is the x extent, Width the y extent and Height the z extent.
type Cluster struct {
	Centroid l1geom.Point
	Min      r3.Vec
	Max      r3.Vec
	Width    float64
	Height   float64
	Depth    float64
	Points   []l1geom.Point
}

// Size returns the member count.
func (c Cluster) Size() int { return len(c.Points) }

// ClusterParams configures ExtractClusters.
type ClusterParams struct {
	VoxelLeaf float64 // downsample leaf edge in metres (<= 0 disables)
	Tolerance float64 // neighbour radius on the ground plane
	MinSize   int
	MaxSize   int
}

// DefaultClusterParams returns 0.1 m voxels, 0.15 m tolerance and
// 100..1e6 members.
func DefaultClusterParams() ClusterParams {
	return ClusterParams{VoxelLeaf: 0.1, Tolerance: 0.15, MinSize: 100, MaxSize: 1000000}
}

// Clusterer abstracts cluster extraction so the pipeline can be tested
// with alternative strategies.
type Clusterer interface {
	Cluster(points []l1geom.Point) []Cluster
	GetParams() ClusterParams
	SetParams(params ClusterParams)
}

// EuclideanClusterer implements Clusterer with ExtractClusters.
type EuclideanClusterer struct {
	params ClusterParams
}

// NewEuclideanClusterer returns a clusterer using params.
func NewEuclideanClusterer(params ClusterParams) *EuclideanClusterer {
	return &EuclideanClusterer{params: params}
}

func (e *EuclideanClusterer) Cluster(points []l1geom.Point) []Cluster {
	return ExtractClusters(points, e.params)
}

func (e *EuclideanClusterer) GetParams() ClusterParams { return e.params }

func (e *EuclideanClusterer) SetParams(params ClusterParams) { e.params = params }

// ExtractClusters downsamples points, grows clusters over their ground
// plane projection and returns those with MinSize <= n <= MaxSize in
// discovery order. Cluster members keep their original heights.
func ExtractClusters(points []l1geom.Point, params ClusterParams) []Cluster {
	down := VoxelGrid(points, params.VoxelLeaf)
	if len(down) == 0 {
		return nil
	}

	flat := make([]planar, len(down))
	for i, p := range down {
		flat[i] = planar{x: p.X, y: p.Y, idx: i}
	}
	index := newPlanarIndex(flat)

	visited := make([]bool, len(down))
	var clusters []Cluster
	var queue, neighbours []int
	rejected := 0
	for seed := range down {
		if visited[seed] {
			continue
		}
		visited[seed] = true
		queue = append(queue[:0], seed)
		for head := 0; head < len(queue); head++ {
			neighbours = index.within(neighbours[:0], queue[head], params.Tolerance)
			for _, n := range neighbours {
				if !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
		if len(queue) < params.MinSize || len(queue) > params.MaxSize {
			rejected++
			continue
		}
		members := make([]int, len(queue))
		copy(members, queue)
		sort.Ints(members)
		pts := make([]l1geom.Point, len(members))
		for i, m := range members {
			pts[i] = down[m]
		}
		clusters = append(clusters, newCluster(pts))
	}
	fusion.Tracef("clustering: %d in, %d voxels, %d clusters, %d components rejected by size",
		len(points), len(down), len(clusters), rejected)
	return clusters
}

func newCluster(points []l1geom.Point) Cluster {
	n := len(points)
	xs := make([]float64, n)
	ys := make([]float64, n)
	zs := make([]float64, n)
	for i, p := range points {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	c := Cluster{
		Centroid: l1geom.Point{
			X: floats.Sum(xs) / float64(n),
			Y: floats.Sum(ys) / float64(n),
			Z: floats.Sum(zs) / float64(n),
		},
		Min:    r3.Vec{X: floats.Min(xs), Y: floats.Min(ys), Z: floats.Min(zs)},
		Max:    r3.Vec{X: floats.Max(xs), Y: floats.Max(ys), Z: floats.Max(zs)},
		Points: points,
	}
	c.Depth = c.Max.X - c.Min.X
	c.Width = c.Max.Y - c.Min.Y
	c.Height = c.Max.Z - c.Min.Z
	return c
}
