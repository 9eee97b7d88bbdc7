// Package l6overlay renders depth buffers as colour overlays.
//
// Visible pixels are painted as filled discs coloured by a blue, cyan,
// green, yellow, red ramp over [0, maxRange); pixels without depth are
// black. Rendering is parallel over row bands and produces the same image
// as a single raster-order pass.
package l6overlay
