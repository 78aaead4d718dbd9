package sampling

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"cellcurvature/internal/models"
)

// Window returns the corners of the oriented sampling rectangle anchored at
// p. The rectangle extends width across the normal and depth along the
// inward normal, starting at p.
func Window(p, inward models.Point, width, depth float64) [4]models.Point {
	across := inward.Perp()
	center := p.Add(inward.Scale(depth / 2))
	hw, hd := across.Scale(width/2), inward.Scale(depth/2)
	return [4]models.Point{
		center.Sub(hw).Sub(hd),
		center.Add(hw).Sub(hd),
		center.Add(hw).Add(hd),
		center.Sub(hw).Add(hd),
	}
}

// cornersInside reports whether every corner falls on a pixel of a
// width x height image.
func cornersInside(corners [4]models.Point, width, height int) bool {
	for _, c := range corners {
		if !c.IsFinite() {
			return false
		}
		x, y := c.Pixel()
		if x < 0 || y < 0 || x >= width || y >= height {
			return false
		}
	}
	return true
}

// Rasterize returns the row-major indices of the pixels whose centres lie
// inside the window polygon, boundary included. Centres sit at integer
// coordinates, matching models.Point.Pixel. Membership is hard: a pixel
// either belongs to the window or it does not.
func Rasterize(corners [4]models.Point, width, height int) []int {
	ring := make(orb.Ring, 0, 5)
	for _, c := range corners {
		ring = append(ring, orb.Point{c.X, c.Y})
	}
	ring = append(ring, ring[0])

	b := ring.Bound()
	x0 := max(0, int(math.Floor(b.Min[0])))
	y0 := max(0, int(math.Floor(b.Min[1])))
	x1 := min(width-1, int(math.Ceil(b.Max[0])))
	y1 := min(height-1, int(math.Ceil(b.Max[1])))

	var pixels []int
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if planar.RingContains(ring, orb.Point{float64(x), float64(y)}) {
				pixels = append(pixels, y*width+x)
			}
		}
	}
	return pixels
}

// InteriorOverlap returns the percentage of pixels that are foreground in
// mask. An empty pixel set has no overlap.
func InteriorOverlap(pixels []int, mask models.Mask) float64 {
	if len(pixels) == 0 {
		return 0
	}
	inside := 0
	for _, i := range pixels {
		if mask.Pix[i] {
			inside++
		}
	}
	return 100 * float64(inside) / float64(len(pixels))
}
