// Package l2camera projects sensor-frame points into camera images.
//
// The sensor frame is x forward, y left, z up. Camera-local optical axes
// are right = -y, down = -z, forward = x, and pixels follow the pinhole
// model with a projection-matrix offset (Tx, Ty) for stereo rigs.
package l2camera
