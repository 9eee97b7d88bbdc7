package l6overlay

import "github.com/lucasb-eyer/go-colorful"

// Ramp maps v in [vmin, vmax] onto a four-segment colour ramp:
// blue, cyan, green, yellow, red. Values outside the range are clamped.
func Ramp(v, vmin, vmax float64) colorful.Color {
	c := colorful.Color{R: 1, G: 1, B: 1}
	if v < vmin {
		v = vmin
	}
	if v > vmax {
		v = vmax
	}
	dv := vmax - vmin
	if dv <= 0 {
		return colorful.Color{B: 1}
	}
	switch {
	case v < vmin+0.25*dv:
		c.R = 0
		c.G = 4 * (v - vmin) / dv
	case v < vmin+0.5*dv:
		c.R = 0
		c.B = 1 + 4*(vmin+0.25*dv-v)/dv
	case v < vmin+0.75*dv:
		c.R = 4 * (v - vmin - 0.5*dv) / dv
		c.B = 0
	default:
		c.G = 1 + 4*(vmin+0.75*dv-v)/dv
		c.B = 0
	}
	return c.Clamped()
}
