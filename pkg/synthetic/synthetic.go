// Package synthetic generates cell masks and fluorescence frames with known
// geometry. It backs the -simulate mode of the CLI and the package tests.
package synthetic

import (
	"math"
	"math/rand/v2"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"cellcurvature/internal/models"
)

// Shape describes a round cell with an optional bleb. Angles are in radians,
// lengths in pixels.
type Shape struct {
	CenterX float64
	CenterY float64
	Radius  float64

	// BlebSize is the radial displacement at the bleb apex; negative values
	// push the membrane inward
	BlebSize float64

	// BlebAngle is the polar angle of the bleb apex
	BlebAngle float64

	// BlebWidth is the angular extent of the bleb
	BlebWidth float64
}

// Circle returns a plain round cell.
func Circle(cx, cy, r float64) Shape {
	return Shape{CenterX: cx, CenterY: cy, Radius: r}
}

// RadiusAt returns the outline radius at polar angle theta.
func (s Shape) RadiusAt(theta float64) float64 {
	r := s.Radius
	if s.BlebSize == 0 || s.BlebWidth <= 0 {
		return r
	}
	d := math.Remainder(theta-s.BlebAngle, 2*math.Pi)
	half := s.BlebWidth / 2
	if math.Abs(d) >= half {
		return r
	}
	bump := math.Abs(s.BlebSize) * (math.Cos(d/half*math.Pi) + 1) / 2
	if s.BlebSize < 0 {
		return r - bump
	}
	return r + bump
}

// Outline samples the shape boundary at n evenly spaced polar angles.
func (s Shape) Outline(n int) models.Contour {
	c := make(models.Contour, n)
	for i := range c {
		theta := 2 * math.Pi * float64(i) / float64(n)
		r := s.RadiusAt(theta)
		c[i] = models.Pt(s.CenterX+r*math.Cos(theta), s.CenterY+r*math.Sin(theta))
	}
	return c
}

// Mask rasterises the shape: a pixel is foreground when its coordinate lies
// inside the outline, boundary included.
func (s Shape) Mask(width, height int) models.Mask {
	if s.BlebSize == 0 {
		return Disc(width, height, s.CenterX, s.CenterY, s.Radius)
	}
	return Fill(s.Outline(720), width, height)
}

// Disc returns a mask with every pixel within r of (cx, cy) set.
func Disc(width, height int, cx, cy, r float64) models.Mask {
	m := models.NewMask(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy <= r*r {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

// Fill rasterises a closed polygon onto a new mask.
func Fill(c models.Contour, width, height int) models.Mask {
	m := models.NewMask(width, height)
	if len(c) < 3 {
		return m
	}
	ring := make(orb.Ring, 0, len(c)+1)
	for _, p := range c {
		ring = append(ring, orb.Point{p.X, p.Y})
	}
	ring = append(ring, ring[0])

	b := ring.Bound()
	x0, y0 := max(0, int(math.Floor(b.Min[0]))), max(0, int(math.Floor(b.Min[1])))
	x1, y1 := min(width-1, int(math.Ceil(b.Max[0]))), min(height-1, int(math.Ceil(b.Max[1])))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if planar.RingContains(ring, orb.Point{float64(x), float64(y)}) {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

// Rect returns a mask with the axis-aligned rectangle [x0, x1] x [y0, y1] set.
func Rect(width, height, x0, y0, x1, y1 int) models.Mask {
	m := models.NewMask(width, height)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

// Uniform returns an image filled with v.
func Uniform(width, height int, v float64) models.Image {
	im := models.NewImage(width, height)
	for i := range im.Pix {
		im.Pix[i] = v
	}
	return im
}

// Angular returns an image whose value at each pixel is fn of the polar angle
// of that pixel around (cx, cy).
func Angular(width, height int, cx, cy float64, fn func(theta float64) float64) models.Image {
	im := models.NewImage(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			theta := math.Atan2(float64(y)-cy, float64(x)-cx)
			im.Set(x, y, fn(theta))
		}
	}
	return im
}

// AddNoise adds zero-mean Gaussian noise with the given standard deviation.
// The result is deterministic for a given seed.
func AddNoise(im models.Image, sigma float64, seed uint64) models.Image {
	out := models.Image{Width: im.Width, Height: im.Height, Pix: make([]float64, len(im.Pix)), MaxValue: im.MaxValue}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i, v := range im.Pix {
		out.Pix[i] = v + rng.NormFloat64()*sigma
	}
	return out
}

// BlebStack generates a time series of n frames in which a bleb grows from
// nothing to maxBleb pixels. Fluorescence is brighter near the bleb so that
// intensity and curvature are related.
func BlebStack(n, width, height int, radius, maxBleb float64) []models.Frame {
	frames := make([]models.Frame, n)
	cx, cy := float64(width)/2, float64(height)/2
	for i := range frames {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		s := Shape{
			CenterX:   cx,
			CenterY:   cy,
			Radius:    radius,
			BlebSize:  maxBleb * frac,
			BlebAngle: math.Pi / 4,
			BlebWidth: math.Pi / 3,
		}
		fluor := Angular(width, height, cx, cy, func(theta float64) float64 {
			d := math.Remainder(theta-s.BlebAngle, 2*math.Pi)
			return 100 + 50*frac*math.Exp(-d*d/(2*0.3*0.3))
		})
		frames[i] = models.Frame{Index: i, Mask: s.Mask(width, height), Fluorescence: fluor}
	}
	return frames
}

// WithNoise returns a copy of frames whose fluorescence carries Gaussian
// noise of the given standard deviation. Frame i is seeded with seed+i.
func WithNoise(frames []models.Frame, sigma float64, seed uint64) []models.Frame {
	out := make([]models.Frame, len(frames))
	for i, f := range frames {
		f.Fluorescence = AddNoise(f.Fluorescence, sigma, seed+uint64(i))
		out[i] = f
	}
	return out
}
