// Package mapio loads and writes PCD (v0.7) point-cloud files.
//
// ASCII and binary data sections are supported with any mix of F, I and U
// field types. Recognised fields are x, y, z, rgb (or rgba) and
// normal_x/normal_y/normal_z; other fields such as curvature are skipped.
package mapio
