// Package l1geom holds the geometric primitives shared by every layer:
// points with optional colour and normal attributes, frame-tagged point
// clouds, and rigid transforms between named frames.
//
// Transforms never mutate their input; every operation returns a new
// cloud whose Frame names the frame its points are now expressed in.
package l1geom
