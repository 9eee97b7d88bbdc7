package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/sensor.fusion/internal/fusion/l6overlay"
)

// maxScenePoints caps how many cloud points are drawn in the scene plot.
const maxScenePoints = 20000

// topDown maps a camera body point (x forward, y left) onto a plan view
// with the horizontal axis pointing right and the vertical axis forward.
func topDown(x, y float64) (across, forward float64) {
	return -y, x
}

// renderClusterChart writes an HTML scatter of cluster centroids for every
// camera, seen from above. Symbol size grows with point count.
func renderClusterChart(w io.Writer, snaps []CameraSnapshot) error {
	scatter := charts.NewScatter()
	maxAcross, maxForward, minForward := 1.0, 1.0, 0.0
	for _, s := range snaps {
		for _, c := range s.Clusters {
			a, f := topDown(c.X, c.Y)
			maxAcross = math.Max(maxAcross, math.Abs(a))
			maxForward = math.Max(maxForward, f)
			minForward = math.Min(minForward, f)
		}
	}

	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Clusters", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Ranked clusters", Subtitle: fmt.Sprintf("cameras=%d", len(snaps))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -maxAcross * 1.1, Max: maxAcross * 1.1, Name: "right (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: minForward * 1.1, Max: maxForward * 1.1, Name: "forward (m)", NameLocation: "middle", NameGap: 30}),
	)
	for _, s := range snaps {
		data := make([]opts.ScatterData, 0, len(s.Clusters))
		for _, c := range s.Clusters {
			size := 4 + int(math.Min(30, math.Sqrt(float64(c.Points))/2))
			a, f := topDown(c.X, c.Y)
			data = append(data, opts.ScatterData{
				Name:       fmt.Sprintf("#%d %.2fm", c.ID, c.Distance),
				Value:      []interface{}{a, f, c.Points},
				SymbolSize: size,
			})
		}
		scatter.AddSeries(s.CameraID, data)
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// renderScenePlot writes a PNG top-down view of a camera's non-ground
// cloud, coloured by range, with cluster centroids marked.
func renderScenePlot(w io.Writer, snap CameraSnapshot, maxRange float64) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Camera %s - frame %s", snap.CameraID, snap.FrameID)
	p.X.Label.Text = "right (m)"
	p.Y.Label.Text = "forward (m)"
	p.Add(plotter.NewGrid())

	stride := 1
	if n := len(snap.Cloud.Points); n > maxScenePoints {
		stride = int(math.Ceil(float64(n) / maxScenePoints))
	}
	pts := make(plotter.XYs, 0, len(snap.Cloud.Points)/stride+1)
	ranges := make([]float64, 0, cap(pts))
	for i := 0; i < len(snap.Cloud.Points); i += stride {
		pt := snap.Cloud.Points[i]
		a, f := topDown(pt.X, pt.Y)
		pts = append(pts, plotter.XY{X: a, Y: f})
		ranges = append(ranges, pt.Range())
	}
	if len(pts) > 0 {
		cloud, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		cloud.GlyphStyle.Radius = vg.Points(1)
		cloud.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			return draw.GlyphStyle{
				Color:  l6overlay.DepthColor(ranges[i], maxRange),
				Radius: vg.Points(1),
				Shape:  draw.CircleGlyph{},
			}
		}
		p.Add(cloud)
	}

	if len(snap.Clusters) > 0 {
		centroids := make(plotter.XYs, len(snap.Clusters))
		for i, c := range snap.Clusters {
			a, f := topDown(c.X, c.Y)
			centroids[i] = plotter.XY{X: a, Y: f}
		}
		marks, err := plotter.NewScatter(centroids)
		if err != nil {
			return err
		}
		marks.GlyphStyle = draw.GlyphStyle{
			Color:  color.RGBA{R: 255, G: 255, B: 255, A: 255},
			Radius: vg.Points(5),
			Shape:  draw.CrossGlyph{},
		}
		p.Add(marks)
		p.Legend.Add("clusters", marks)
	}

	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
