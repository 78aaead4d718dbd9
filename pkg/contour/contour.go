// Package contour extracts the ordered outer boundary of the dominant cell
// from a binary mask.
package contour

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"cellcurvature/internal/models"
)

// Result holds the outcome of boundary extraction for one mask.
type Result struct {
	// Contour is the ordered, closed outer boundary of the largest component
	Contour models.Contour

	// Cell is the mask restricted to the largest component
	Cell models.Mask

	// Boundary is a raster of the contour pixels, for display only
	Boundary models.Mask

	// Area is the pixel count of the largest component
	Area int

	// Components is the number of 8-connected components before filtering
	Components int

	// Removed is the number of components dropped for being smaller than minSize
	Removed int
}

// Extract labels the 8-connected foreground components of mask, drops those
// smaller than minSize pixels and traces the outer boundary of the largest
// survivor. It is a pure function of its inputs.
//
// Returns models.ErrNoCellFound when nothing survives the size filter or the
// surviving component has no usable boundary.
func Extract(mask models.Mask, minSize int) (*Result, error) {
	if mask.Width <= 0 || mask.Height <= 0 || len(mask.Pix) != mask.Width*mask.Height {
		return nil, fmt.Errorf("mask %dx%d with %d pixels: %w",
			mask.Width, mask.Height, len(mask.Pix), models.ErrDimensionMismatch)
	}

	labels, areas := labelComponents(mask)
	components := len(areas) - 1

	best, removed := 0, 0
	for l := 1; l < len(areas); l++ {
		if areas[l] < minSize {
			removed++
			continue
		}
		if best == 0 || areas[l] > areas[best] {
			best = l
		}
	}
	if best == 0 {
		return nil, fmt.Errorf("%d components, none with at least %d pixels: %w",
			components, minSize, models.ErrNoCellFound)
	}

	c := traceBoundary(labels, mask.Width, mask.Height, best)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("component of %d pixels: %w: %w", areas[best], models.ErrNoCellFound, err)
	}

	cell := models.NewMask(mask.Width, mask.Height)
	for i, l := range labels {
		cell.Pix[i] = l == best
	}

	return &Result{
		Contour:    c,
		Cell:       cell,
		Boundary:   Rasterize(c, mask.Width, mask.Height),
		Area:       areas[best],
		Components: components,
		Removed:    removed,
	}, nil
}

// Rasterize marks the pixels visited by a contour on an empty mask.
func Rasterize(c models.Contour, width, height int) models.Mask {
	m := models.NewMask(width, height)
	for _, p := range c {
		x, y := int(math.Round(p.X)), int(math.Round(p.Y))
		m.Set(x, y, true)
	}
	return m
}

// Ring converts a contour to a closed orb ring.
func Ring(c models.Contour) orb.Ring {
	r := make(orb.Ring, 0, len(c)+1)
	for _, p := range c {
		r = append(r, orb.Point{p.X, p.Y})
	}
	if len(c) > 0 {
		r = append(r, orb.Point{c[0].X, c[0].Y})
	}
	return r
}

// Morphology summarises the shape of an extracted cell.
type Morphology struct {
	// Area is the pixel count of the cell
	Area float64

	// PolygonArea is the area enclosed by the traced boundary
	PolygonArea float64

	// Perimeter is the length of the traced boundary
	Perimeter float64

	// Circularity is 4*pi*Area/Perimeter^2, 1 for a perfect disc
	Circularity float64

	// EquivalentRadius is the radius of the disc with the same pixel area
	EquivalentRadius float64

	// Centroid is the mean position of the boundary polygon
	Centroid models.Point
}

// Measure computes shape descriptors for r.
func (r *Result) Measure() Morphology {
	ring := Ring(r.Contour)
	centroid, signed := planar.CentroidArea(ring)
	perimeter := planar.Length(ring)

	m := Morphology{
		Area:             float64(r.Area),
		PolygonArea:      math.Abs(signed),
		Perimeter:        perimeter,
		EquivalentRadius: math.Sqrt(float64(r.Area) / math.Pi),
		Centroid:         models.Pt(centroid[0], centroid[1]),
	}
	if perimeter > 0 {
		m.Circularity = 4 * math.Pi * m.Area / (perimeter * perimeter)
	}
	return m
}
