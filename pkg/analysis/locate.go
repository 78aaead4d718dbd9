package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// site is a measurement position in the lookup tree.
type site struct {
	X, Y float64

	// slot is the position in FrameResult.Measurements
	slot int
}

// Compare implements the kdtree.Comparable interface
func (p site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(site)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p site) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two sites
func (p site) Distance(c kdtree.Comparable) float64 {
	q := c.(site)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// sites is a collection of site that satisfies kdtree.Interface
type sites []site

func (p sites) Index(i int) kdtree.Comparable         { return p[i] }
func (p sites) Len() int                              { return len(p) }
func (p sites) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p sites) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(sitePlane{sites: p, Dim: d}, kdtree.MedianOfRandoms(sitePlane{sites: p, Dim: d}, 100))
}

// sitePlane implements sort.Interface and kdtree.SortSlicer for sites
type sitePlane struct {
	sites
	kdtree.Dim
}

func (p sitePlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.sites[i].X < p.sites[j].X
	case 1:
		return p.sites[i].Y < p.sites[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p sitePlane) Slice(start, end int) kdtree.SortSlicer {
	return sitePlane{sites: p.sites[start:end], Dim: p.Dim}
}

func (p sitePlane) Swap(i, j int) {
	p.sites[i], p.sites[j] = p.sites[j], p.sites[i]
}

// Locator answers cursor queries against the measurements of one frame.
type Locator struct {
	measurements []Measurement
	tree         *kdtree.Tree
}

// NewLocator indexes the measurement positions of r.
func NewLocator(r *FrameResult) *Locator {
	pts := make(sites, len(r.Measurements))
	for i, m := range r.Measurements {
		pts[i] = site{X: m.Position.X, Y: m.Position.Y, slot: i}
	}
	return &Locator{
		measurements: r.Measurements,
		tree:         kdtree.New(pts, false),
	}
}

// Nearest returns the measurement closest to (x, y) and its distance in
// pixels. ok is false when the frame has no measurements.
func (l *Locator) Nearest(x, y float64) (m Measurement, dist float64, ok bool) {
	c, d := l.tree.Nearest(site{X: x, Y: y})
	if c == nil {
		return Measurement{}, math.Inf(1), false
	}
	return l.measurements[c.(site).slot], math.Sqrt(d), true
}

// Within returns the measurements no further than radius pixels from (x, y),
// ordered by contour index.
func (l *Locator) Within(x, y, radius float64) []Measurement {
	keep := kdtree.NewDistKeeper(radius * radius)
	l.tree.NearestSet(keep, site{X: x, Y: y})

	var slots []int
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		slots = append(slots, cd.Comparable.(site).slot)
	}
	sort.Ints(slots)

	out := make([]Measurement, len(slots))
	for i, s := range slots {
		out[i] = l.measurements[s]
	}
	return out
}

// Locate returns the measurement of r nearest to the cursor position (x, y)
// if it lies within maxDist pixels.
func Locate(r *FrameResult, x, y, maxDist float64) (Measurement, bool) {
	m, d, ok := NewLocator(r).Nearest(x, y)
	if !ok || d > maxDist {
		return Measurement{}, false
	}
	return m, true
}
