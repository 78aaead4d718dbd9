package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"cellcurvature/internal/models"
	"cellcurvature/pkg/analysis"
	"cellcurvature/pkg/statistics"
)

var (
	scatterColor = color.RGBA{R: 128, G: 0, B: 128, A: 160}
	trendColor   = color.RGBA{R: 220, A: 255}
	profileColor = color.RGBA{B: 200, A: 255}

	referenceColors = []color.Color{
		color.RGBA{G: 140, A: 255},
		color.RGBA{R: 230, G: 130, A: 255},
		color.RGBA{R: 120, G: 120, B: 120, A: 255},
	}
)

// addReferences draws each reference curvature as a labelled horizontal
// line and returns the names in drawing order. Lines outside the data range
// are clipped but keep their legend entry.
func addReferences(p *plot.Plot) []string {
	names := make([]string, 0, len(models.ReferenceCurvatures))
	for name := range models.ReferenceCurvatures {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		k := models.ReferenceCurvatures[name]
		line := plotter.NewFunction(func(float64) float64 { return k })
		line.Color = referenceColors[i%len(referenceColors)]
		line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (1/%.0f nm)", name, 1/k), line)
	}
	p.Legend.Top = true
	return names
}

// points pairs x and y, skipping non-finite pairs.
func points(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(x))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) || math.IsInf(x[i], 0) || math.IsInf(y[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
	}
	return pts
}

// Scatter builds the intensity against curvature plot over the correlated
// measurements of every successful frame, with the least-squares trend line.
func Scatter(batch *analysis.BatchResult) (*plot.Plot, error) {
	var curv, inten []float64
	for _, f := range batch.Frames {
		if !f.OK() {
			continue
		}
		x, y := f.Series()
		curv = append(curv, x...)
		inten = append(inten, y...)
	}
	pts := points(curv, inten)
	if len(pts) == 0 {
		return nil, fmt.Errorf("nothing to plot: %w", models.ErrNoValidPoints)
	}

	p := plot.New()
	p.Title.Text = "Curvature vs Intensity"
	if r, ok := statistics.Pearson(curv, inten); ok {
		p.Title.Text = fmt.Sprintf("Curvature vs Intensity (r = %.3f)", r)
	}
	p.X.Label.Text = "Curvature (1/nm)"
	p.Y.Label.Text = "Mean fluorescence intensity"
	p.Add(plotter.NewGrid())

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %w", err)
	}
	s.GlyphStyle.Color = scatterColor
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(s)

	if trend, ok := statistics.FitTrend(curv, inten); ok {
		line := plotter.NewFunction(trend.At)
		line.Color = trendColor
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		line.Width = vg.Points(1)
		p.Add(line)
	}
	return p, nil
}

// ScatterPlot saves Scatter as an image; the format follows the extension.
func ScatterPlot(batch *analysis.BatchResult, path string) error {
	p, err := Scatter(batch)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// profile builds a line plot of one series along the measurement order.
func profile(title, ylabel string, values []float64) (*plot.Plot, error) {
	x := make([]float64, len(values))
	for i := range x {
		x[i] = float64(i)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Position along edge"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	p.X.Min, p.X.Max = 0, math.Max(1, float64(len(values)-1))

	pts := points(x, values)
	if len(pts) == 0 {
		// keep the axes finite for a mode that skipped this series
		p.Y.Min, p.Y.Max = -1, 1
	} else {
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		l.Color = profileColor
		l.Width = vg.Points(1.5)
		p.Add(l)
	}
	return p, nil
}

// ProfilePlot writes a PNG with the intensity profile above the curvature
// profile of one frame, both along the shared index order.
func ProfilePlot(frame *analysis.FrameResult, path string) error {
	if !frame.OK() || len(frame.Measurements) == 0 {
		return fmt.Errorf("frame %d: %w", frame.Index, models.ErrNoValidPoints)
	}

	inten := make([]float64, len(frame.Measurements))
	curv := make([]float64, len(frame.Measurements))
	for i, m := range frame.Measurements {
		inten[i], curv[i] = math.NaN(), math.NaN()
		if m.Intensity != nil {
			inten[i] = m.Intensity.Mean
		}
		if m.Curvature != nil {
			curv[i] = m.Curvature.Curvature
		}
	}

	top, err := profile("Edge Intensity Profile", "Intensity", inten)
	if err != nil {
		return err
	}
	bottom, err := profile("Edge Curvature Profile", "Curvature (1/nm)", curv)
	if err != nil {
		return err
	}
	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	bottom.Add(zero)
	addReferences(bottom)

	img := vgimg.New(12*vg.Inch, 8*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadX: vg.Millimeter, PadY: 4 * vg.Millimeter,
		PadTop: 2 * vg.Millimeter, PadBottom: 2 * vg.Millimeter, PadLeft: 2 * vg.Millimeter, PadRight: 2 * vg.Millimeter}
	canvases := plot.Align([][]*plot.Plot{{top}, {bottom}}, tiles, dc)
	top.Draw(canvases[0][0])
	bottom.Draw(canvases[1][0])

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
