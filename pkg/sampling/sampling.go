// Package sampling selects the boundary locations shared by the curvature and
// intensity measurements. Every validity check runs once per location, so both
// measurements always refer to the same index set.
package sampling

import (
	"fmt"
	"sort"

	"cellcurvature/internal/models"
	"cellcurvature/pkg/normals"
)

// Reason names why a candidate location was rejected.
type Reason string

const (
	ReasonBorder      Reason = "border"
	ReasonNoNormal    Reason = "no_normal"
	ReasonOutOfBounds Reason = "out_of_bounds"
	ReasonLowOverlap  Reason = "low_overlap"
)

// Err maps a rejection reason onto the error taxonomy.
func (r Reason) Err() error {
	switch r {
	case ReasonLowOverlap:
		return models.ErrInsufficientInteriorOverlap
	case ReasonNoNormal:
		return normals.ErrZeroTangent
	default:
		return models.ErrSamplingOutOfBounds
	}
}

// SamplePoint is a boundary location that passed every check.
type SamplePoint struct {
	// Index is the position on the conditioned contour
	Index int

	// Position is the contour point at Index
	Position models.Point

	// Normal is the resolved inward normal
	Normal normals.Normal

	// Window holds the corners of the intensity sampling rectangle
	Window [4]models.Point

	// Pixels are the row-major indices of the pixels inside Window
	Pixels []int

	// InteriorOverlap is the percentage of Pixels inside the cell
	InteriorOverlap float64

	// SegmentIndices are the contour indices used for the curvature fit
	SegmentIndices []int
}

// Plan is the coordinated sampling result for one contour.
type Plan struct {
	// Points are the accepted locations in increasing index order
	Points []SamplePoint

	// Rejections counts rejected locations by reason
	Rejections map[Reason]int

	// Requested is the number of candidate locations examined
	Requested int
}

// Indices returns the shared index set.
func (p *Plan) Indices() []int {
	idx := make([]int, len(p.Points))
	for i, pt := range p.Points {
		idx[i] = pt.Index
	}
	return idx
}

// Rejected returns the total number of rejected candidates.
func (p *Plan) Rejected() int {
	n := 0
	for _, v := range p.Rejections {
		n += v
	}
	return n
}

// Reasons returns the rejection reasons present, sorted for stable output.
func (p *Plan) Reasons() []Reason {
	out := make([]Reason, 0, len(p.Rejections))
	for r := range p.Rejections {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sampler applies the validity checks with a fixed parameter set.
type Sampler struct {
	Params   models.AnalysisParameters
	Resolver normals.Resolver
}

// New returns a Sampler whose resolver is configured from params.
func New(params models.AnalysisParameters) *Sampler {
	return &Sampler{Params: params, Resolver: normals.FromParameters(params)}
}

// Candidates returns min(n, length) indices spread evenly over [0, length-1],
// truncated towards zero.
func Candidates(length, n int) []int {
	k := min(n, length)
	if k <= 0 {
		return nil
	}
	if k == 1 {
		return []int{0}
	}
	idx := make([]int, k)
	for j := range idx {
		idx[j] = j * (length - 1) / (k - 1)
	}
	return idx
}

// Sample examines evenly spaced candidate indices on the contour and keeps
// those that pass every check. The mask fixes the image size and the cell
// interior.
//
// The plan is returned even when no location survives, together with an
// error wrapping models.ErrNoValidPoints, so that rejection counts remain
// available.
func (s *Sampler) Sample(c models.Contour, mask models.Mask) (*Plan, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	candidates := Candidates(len(c), s.Params.NSamples)
	plan := &Plan{
		Rejections: make(map[Reason]int),
		Requested:  len(candidates),
	}
	for _, idx := range candidates {
		pt, reason, err := s.Evaluate(c, idx, mask)
		if err != nil {
			plan.Rejections[reason]++
			continue
		}
		plan.Points = append(plan.Points, pt)
	}

	if len(plan.Points) == 0 {
		return plan, fmt.Errorf("all %d candidates rejected: %w", plan.Requested, models.ErrNoValidPoints)
	}
	return plan, nil
}

// Evaluate runs the checks for a single index in order: border margin,
// normal resolution, window bounds, interior overlap. A rejection returns the
// reason and an error wrapping the matching sentinel.
func (s *Sampler) Evaluate(c models.Contour, idx int, mask models.Mask) (SamplePoint, Reason, error) {
	p := s.Params
	pos := c.At(idx)
	w, h := float64(mask.Width), float64(mask.Height)

	if pos.X < p.BorderMargin || pos.X > w-p.BorderMargin || pos.Y < p.BorderMargin || pos.Y > h-p.BorderMargin {
		return SamplePoint{}, ReasonBorder, fmt.Errorf("index %d at (%.1f, %.1f) within %g px of the border: %w",
			idx, pos.X, pos.Y, p.BorderMargin, models.ErrSamplingOutOfBounds)
	}

	n, err := s.Resolver.Resolve(c, idx, p.EdgeSegment, mask)
	if err != nil {
		return SamplePoint{}, ReasonNoNormal, err
	}

	corners := Window(pos, n.Vector, p.VectorWidth, p.VectorDepth)
	if !cornersInside(corners, mask.Width, mask.Height) {
		return SamplePoint{}, ReasonOutOfBounds, fmt.Errorf("index %d: window leaves the image: %w",
			idx, models.ErrSamplingOutOfBounds)
	}

	pixels := Rasterize(corners, mask.Width, mask.Height)
	if len(pixels) == 0 {
		return SamplePoint{}, ReasonOutOfBounds, fmt.Errorf("index %d: window covers no pixels: %w",
			idx, models.ErrSamplingOutOfBounds)
	}

	overlap := InteriorOverlap(pixels, mask)
	if overlap < p.InteriorThreshold {
		return SamplePoint{}, ReasonLowOverlap, fmt.Errorf("index %d: overlap %.1f%% below %.1f%%: %w",
			idx, overlap, p.InteriorThreshold, models.ErrInsufficientInteriorOverlap)
	}

	return SamplePoint{
		Index:           idx,
		Position:        pos,
		Normal:          n,
		Window:          corners,
		Pixels:          pixels,
		InteriorOverlap: overlap,
		SegmentIndices:  c.Window(idx, p.SegmentLength),
	}, "", nil
}
