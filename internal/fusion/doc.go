// Package fusion holds the shared logging streams for the map-vs-live
// depth fusion stack.
//
// Processing is split into layer packages, lowest first:
//
//	l1geom        points, clouds and rigid frame transforms
//	l2camera      pinhole projection and sparse depth buffers
//	l3grid        height-grid ground segmentation
//	l4perception  voxel downsampling and Euclidean clustering
//	l5rank        closest-first cluster ordering
//	l6overlay     depth colour ramp and overlay rendering
//
// The pipeline package wires the layers together per frame and hands the
// results to sinks (storage, visualiser, mqttpub, export, monitor).
package fusion
