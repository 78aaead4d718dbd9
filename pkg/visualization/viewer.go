// Package visualization renders debug images of an analysed frame: the
// fluorescence channel with the traced boundary, the sampling windows and
// the inward normals drawn on top.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/image/vector"
	"gonum.org/v1/gonum/stat"

	"cellcurvature/internal/models"
	"cellcurvature/pkg/analysis"
)

// Overlay colours.
var (
	BoundaryColor = color.RGBA{B: 255, A: 255}
	WindowColor   = color.RGBA{R: 160, G: 160, A: 160}
	NormalColor   = color.RGBA{R: 255, G: 255, A: 255}
	InvalidColor  = color.RGBA{R: 255, A: 255}
)

// Viewer renders one frame together with its analysis result.
type Viewer struct {
	frame  models.Frame
	result *analysis.FrameResult

	// NormalLength is the drawn length of the normals in pixels
	NormalLength float64

	// LowPercentile and HighPercentile set the contrast stretch of the
	// fluorescence background
	LowPercentile  float64
	HighPercentile float64
}

// NewViewer creates a viewer for a frame and its result. result may be nil,
// in which case only the background is drawn.
func NewViewer(frame models.Frame, result *analysis.FrameResult) *Viewer {
	return &Viewer{
		frame:          frame,
		result:         result,
		NormalLength:   20,
		LowPercentile:  0.01,
		HighPercentile: 0.99,
	}
}

// contrastRange returns the intensities at the low and high percentiles.
func contrastRange(im models.Image, low, high float64) (float64, float64) {
	if len(im.Pix) == 0 {
		return 0, 1
	}
	sorted := slices.Clone(im.Pix)
	slices.Sort(sorted)
	lo := stat.Quantile(low, stat.Empirical, sorted, nil)
	hi := stat.Quantile(high, stat.Empirical, sorted, nil)
	return lo, hi
}

// Background returns the fluorescence channel contrast-stretched to 8 bits.
func (v *Viewer) Background() *image.Gray {
	im := v.frame.Fluorescence
	img := image.NewGray(image.Rect(0, 0, im.Width, im.Height))
	lo, hi := contrastRange(im, v.LowPercentile, v.HighPercentile)
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}
	for i, p := range im.Pix {
		img.Pix[i] = uint8(math.Max(0, math.Min(255, (p-lo)*scale)))
	}
	return img
}

// Render draws the overlay on top of the background.
func (v *Viewer) Render() *image.RGBA {
	bg := v.Background()
	b := bg.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, bg, image.Point{}, draw.Src)

	if v.result == nil {
		return dst
	}

	// windows first so that boundary and normals stay visible
	if len(v.result.Measurements) > 0 {
		z := vector.NewRasterizer(b.Dx(), b.Dy())
		for _, m := range v.result.Measurements {
			polygon(z, m.Window[:])
		}
		z.Draw(dst, b, image.NewUniform(WindowColor), image.Point{})
	}

	bd := v.result.Boundary
	for i, on := range bd.Pix {
		if on {
			dst.SetRGBA(i%bd.Width, i/bd.Width, BoundaryColor)
		}
	}

	for _, m := range v.result.Measurements {
		c := NormalColor
		if m.Curvature != nil && !m.Curvature.Valid {
			c = InvalidColor
		}
		end := m.Position.Add(m.Normal.Vector.Scale(v.NormalLength))
		line(dst, m.Position, end, c)
	}
	return dst
}

// polygon adds a closed path through pts to the rasterizer.
func polygon(z *vector.Rasterizer, pts []models.Point) {
	if len(pts) == 0 {
		return
	}
	z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
}

// line draws a one-pixel line from a to b.
func line(dst *image.RGBA, a, b models.Point, c color.RGBA) {
	steps := int(math.Ceil(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))))
	for s := 0; s <= steps; s++ {
		t := 0.0
		if steps > 0 {
			t = float64(s) / float64(steps)
		}
		x := int(math.Round(a.X + t*(b.X-a.X)))
		y := int(math.Round(a.Y + t*(b.Y-a.Y)))
		if image.Pt(x, y).In(dst.Bounds()) {
			dst.SetRGBA(x, y, c)
		}
	}
}

// SaveImage writes img as PNG or JPEG depending on the filename extension.
func SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	case ".png":
		err = png.Encode(file, img)
	default:
		return fmt.Errorf("unsupported image format %q", filepath.Ext(filename))
	}
	if err != nil {
		return err
	}
	return file.Close()
}

// SaveSequence renders every frame with its result and writes
// frame_NNN.png files into outputDir.
func SaveSequence(frames []models.Frame, batch *analysis.BatchResult, outputDir string) error {
	if len(frames) != len(batch.Frames) {
		return fmt.Errorf("%d frames, %d results: %w", len(frames), len(batch.Frames), models.ErrDimensionMismatch)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for i, f := range frames {
		var res *analysis.FrameResult
		if batch.Frames[i].OK() {
			res = &batch.Frames[i]
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("frame_%03d.png", f.Index))
		if err := SaveImage(NewViewer(f, res).Render(), filename); err != nil {
			return err
		}
	}
	return nil
}
