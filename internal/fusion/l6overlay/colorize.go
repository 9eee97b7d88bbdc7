package l6overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l2camera"
	"github.com/banshee-data/sensor.fusion/internal/fusion/parallel"
)

// RampScale is the upper bound of the ramp input; depth is mapped onto
// [0, RampScale] before colouring.
const RampScale = 255.0

// Options controls overlay rendering.
type Options struct {
	DiscRadius int
	Workers    int
}

// DefaultOptions returns a radius-3 disc with GOMAXPROCS workers.
func DefaultOptions() Options {
	return Options{DiscRadius: 3}
}

// DepthColor returns the overlay colour for a depth below maxRange.
func DepthColor(depth, maxRange float64) color.RGBA {
	r, g, b := Ramp(depth/maxRange*RampScale, 0, RampScale).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Colorize renders buf with DefaultOptions.
func Colorize(buf *l2camera.DepthBuffer, maxRange float64) *image.RGBA {
	return ColorizeWithOptions(buf, maxRange, DefaultOptions())
}

// ColorizeWithOptions visits every pixel in raster order: a pixel with
// depth < maxRange paints a filled disc of DiscRadius in its ramp colour,
// any other pixel is set to black. Later writes overwrite earlier ones.
//
// Each worker owns a band of output rows and replays, in raster order,
// every source row whose disc can reach the band, clipping writes to it.
func ColorizeWithOptions(buf *l2camera.DepthBuffer, maxRange float64, opts Options) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	r := opts.DiscRadius
	if r < 0 {
		r = 0
	}
	offsets := discOffsets(r)
	black := color.RGBA{A: 0xff}

	parallel.ForEachBand(buf.Height, opts.Workers, func(b parallel.Band) {
		srcLo, srcHi := max(b.Lo-r, 0), min(b.Hi+r, buf.Height)
		for sy := srcLo; sy < srcHi; sy++ {
			row := sy * buf.Width
			for sx := 0; sx < buf.Width; sx++ {
				d := buf.Data[row+sx]
				if !(d < maxRange) {
					if sy >= b.Lo && sy < b.Hi {
						img.SetRGBA(sx, sy, black)
					}
					continue
				}
				c := DepthColor(d, maxRange)
				for _, o := range offsets {
					x, y := sx+o.X, sy+o.Y
					if y < b.Lo || y >= b.Hi || x < 0 || x >= buf.Width {
						continue
					}
					img.SetRGBA(x, y, c)
				}
			}
		}
	})
	return img
}

// discOffsets lists the pixel offsets of a filled disc, dx²+dy² <= r².
func discOffsets(r int) []image.Point {
	var pts []image.Point
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				pts = append(pts, image.Point{X: dx, Y: dy})
			}
		}
	}
	return pts
}

// EncodePNG encodes an overlay for publishing.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode overlay png: %w", err)
	}
	return buf.Bytes(), nil
}
