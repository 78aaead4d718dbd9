package models

import (
	"fmt"
	"math"
)

// Point is a 2D position or direction in pixel coordinates.
// X runs along image columns and Y along image rows.
type Point struct {
	X float64
	Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Scale returns p scaled by f.
func (p Point) Scale(f float64) Point { return Point{X: p.X * f, Y: p.Y * f} }

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 { return p.X*q.X + p.Y*q.Y }

// Norm returns the Euclidean length of p.
func (p Point) Norm() float64 { return math.Hypot(p.X, p.Y) }

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 { return p.Sub(q).Norm() }

// Perp returns p rotated by 90 degrees: (-y, x).
func (p Point) Perp() Point { return Point{X: -p.Y, Y: p.X} }

// Neg returns -p.
func (p Point) Neg() Point { return Point{X: -p.X, Y: -p.Y} }

// Normalize returns p scaled to unit length. The second return value is false
// when p is too short to have a direction.
func (p Point) Normalize() (Point, bool) {
	n := p.Norm()
	if n < 1e-10 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Point{}, false
	}
	return p.Scale(1 / n), true
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Pixel returns the pixel whose centre is nearest to the point. Pixel (x, y)
// has its centre at integer coordinates and covers [x-0.5, x+0.5).
func (p Point) Pixel() (int, int) {
	return int(math.Floor(p.X + 0.5)), int(math.Floor(p.Y + 0.5))
}

// Contour is an ordered, implicitly closed sequence of boundary points.
// Index len-1 is adjacent to index 0. Contours are replaced wholesale and
// never modified after creation.
type Contour []Point

// Len returns the number of points.
func (c Contour) Len() int { return len(c) }

// At returns the point at index i, wrapping around the closed curve.
func (c Contour) At(i int) Point {
	n := len(c)
	return c[((i%n)+n)%n]
}

// Window returns the indices of a window of length points centred on i,
// wrapping at 0/N. For even lengths the extra point falls after i.
func (c Contour) Window(i, length int) []int {
	n := len(c)
	half := length / 2
	idx := make([]int, 0, 2*half+1)
	for k := i - half; k <= i+half; k++ {
		idx = append(idx, ((k%n)+n)%n)
	}
	return idx
}

// Perimeter returns the closed polyline length.
func (c Contour) Perimeter() float64 {
	var total float64
	for i := range c {
		total += c[i].Distance(c.At(i + 1))
	}
	return total
}

// Centroid returns the mean of the points.
func (c Contour) Centroid() Point {
	var sx, sy float64
	for _, p := range c {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(c))
	return Point{X: sx / n, Y: sy / n}
}

// Clone returns a copy that can be modified without affecting c.
func (c Contour) Clone() Contour {
	out := make(Contour, len(c))
	copy(out, c)
	return out
}

// Validate checks the contour invariants: at least three points and no
// duplicate consecutive points (including the closing pair).
func (c Contour) Validate() error {
	if len(c) < 3 {
		return fmt.Errorf("contour has %d points, need at least 3: %w", len(c), ErrInvalidContour)
	}
	for i := range c {
		if c[i] == c.At(i+1) {
			return fmt.Errorf("duplicate consecutive point at index %d: %w", i, ErrInvalidContour)
		}
	}
	return nil
}

// Dedupe drops consecutive duplicate points, including a closing duplicate.
func Dedupe(points []Point) Contour {
	out := make(Contour, 0, len(points))
	for _, p := range points {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}
