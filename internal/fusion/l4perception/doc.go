// Package l4perception extracts candidate objects from non-ground points.
//
// Points are voxel-downsampled, flattened onto the ground plane for
// neighbour search, grown into Euclidean clusters with a kd-tree, and
// summarised with their original heights restored.
//
// Dependency rule: l4perception may depend on l1geom but never on l5+.
package l4perception
