// Package l5rank orders clusters closest-first and renders the per-frame
// cluster listing.
package l5rank

import (
	"math"
	"sort"

	"github.com/banshee-data/sensor.fusion/internal/fusion"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l4perception"
)

// Rank returns clusters sorted by ascending planar centroid distance from
// the sensor origin. Equal distances keep their input order. The input
// slice is not modified.
func Rank(clusters []l4perception.Cluster) []l4perception.Cluster {
	if len(clusters) == 0 {
		return nil
	}
	type keyed struct {
		dist float64
		c    l4perception.Cluster
	}
	ks := make([]keyed, len(clusters))
	for i, c := range clusters {
		ks[i] = keyed{dist: math.Hypot(c.Centroid.X, c.Centroid.Y), c: c}
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].dist < ks[j].dist })

	out := make([]l4perception.Cluster, len(ks))
	for i, k := range ks {
		out[i] = k.c
	}
	return out
}

// ClusterSummary is the per-cluster row of a ranked listing.
type ClusterSummary struct {
	ID       int     `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Depth    float64 `json:"depth"`
	Distance float64 `json:"distance"`
	Points   int     `json:"points"`
}

// Summaries describes ranked clusters; ID is the rank index.
func Summaries(ranked []l4perception.Cluster) []ClusterSummary {
	out := make([]ClusterSummary, len(ranked))
	for i, c := range ranked {
		out[i] = ClusterSummary{
			ID:       i,
			X:        c.Centroid.X,
			Y:        c.Centroid.Y,
			Z:        c.Centroid.Z,
			Width:    c.Width,
			Height:   c.Height,
			Depth:    c.Depth,
			Distance: math.Hypot(c.Centroid.X, c.Centroid.Y),
			Points:   len(c.Points),
		}
	}
	return out
}

// LogSummaries writes one diag line per cluster.
func LogSummaries(summaries []ClusterSummary) {
	for _, s := range summaries {
		fusion.Diagf("ID:%d x:%.3f y:%.3f z:%.3f W:%.3f H:%.3f D:%.3f Distance:%.3f n:%d",
			s.ID, s.X, s.Y, s.Z, s.Width, s.Height, s.Depth, s.Distance, s.Points)
	}
}
