// Package curvature estimates signed local membrane curvature by fitting
// circles to short contour segments.
//
// Sign convention: curvature is positive where the membrane bulges into the
// cytosol, that is where the fitted centre lies on the interior side of the
// boundary. A filled disc of radius R pixels therefore yields +1/(R*PixelSize)
// everywhere. Negative values mark concave stretches such as a bleb neck.
package curvature

import (
	"errors"
	"fmt"
	"math"

	"cellcurvature/internal/models"
)

var (
	errRadiusTooSmall = errors.New("radius below segment scale")
	errRadiusTooLarge = errors.New("radius above maximum")
	errNoSign         = errors.New("orientation undetermined")
)

// Estimator holds the fixed parameters of curvature estimation.
type Estimator struct {
	// PixelSize converts pixel distances to physical units (nm)
	PixelSize float64

	// SegmentLength is the number of contour points per fit (odd)
	SegmentLength int

	// MaxRadius is the largest accepted radius in physical units; 0 disables
	// the check
	MaxRadius float64
}

// NewEstimator builds an Estimator from analysis parameters. The maximum
// radius is MaxRadiusFactor times the cell's equivalent radius, given in
// pixels.
func NewEstimator(params models.AnalysisParameters, equivalentRadius float64) Estimator {
	return Estimator{
		PixelSize:     params.PixelSize,
		SegmentLength: params.SegmentLength,
		MaxRadius:     params.MaxRadiusFactor * equivalentRadius * params.PixelSize,
	}
}

// Measurement is the curvature result at one boundary location.
type Measurement struct {
	// Index is the contour index the segment is centred on
	Index int

	// Curvature is the signed curvature in inverse physical units
	Curvature float64

	// Radius is the fitted radius in physical units
	Radius float64

	// Center is the fitted circle centre in pixel coordinates
	Center models.Point

	// SegmentIndices are the contour indices used for the fit
	SegmentIndices []int

	// Valid is false when any gate rejected the fit
	Valid bool

	// Err explains an invalid measurement and wraps models.ErrDegenerateFit
	Err error
}

// Estimate fits a circle to the segment centred on index and returns the
// signed curvature. inward is the verified inward normal at index and only
// its direction matters. Invalid fits are reported through Valid and Err;
// they never produce a zero curvature.
func (e Estimator) Estimate(c models.Contour, index int, inward models.Point) Measurement {
	m := Measurement{
		Index:          index,
		SegmentIndices: c.Window(index, e.SegmentLength),
	}
	invalid := func(err error) Measurement {
		m.Curvature = math.NaN()
		m.Valid = false
		if !errors.Is(err, models.ErrDegenerateFit) {
			err = fmt.Errorf("%w: %w", models.ErrDegenerateFit, err)
		}
		m.Err = fmt.Errorf("index %d: %w", index, err)
		return m
	}

	segment := make([]models.Point, len(m.SegmentIndices))
	for i, idx := range m.SegmentIndices {
		segment[i] = c[idx]
	}

	circle, err := FitCircle(segment, e.PixelSize)
	if err != nil {
		return invalid(err)
	}
	m.Center = circle.Center
	m.Radius = circle.Radius

	if minRadius := float64(e.SegmentLength) * e.PixelSize / 2; circle.Radius < minRadius {
		return invalid(fmt.Errorf("%w: %.4g < %.4g", errRadiusTooSmall, circle.Radius, minRadius))
	}
	if e.MaxRadius > 0 && circle.Radius > e.MaxRadius {
		return invalid(fmt.Errorf("%w: %.4g > %.4g", errRadiusTooLarge, circle.Radius, e.MaxRadius))
	}

	var mean models.Point
	for _, p := range segment {
		mean = mean.Add(p)
	}
	mean = mean.Scale(1 / float64(len(segment)))

	tangent := segment[len(segment)-1].Sub(segment[0])
	sign := Sign(tangent, circle.Center.Sub(mean), inward)
	if sign == 0 {
		return invalid(errNoSign)
	}

	m.Curvature = sign / circle.Radius
	if math.IsNaN(m.Curvature) || math.IsInf(m.Curvature, 0) {
		return invalid(errNonFinite)
	}
	m.Valid = true
	return m
}

// Sign returns +1 when the fitted centre lies on the interior side of the
// boundary and -1 when it lies outside. The outward candidate is the tangent
// rotated by 90 degrees, flipped if needed so that it opposes inward. A zero
// inward vector leaves the rotated tangent as is. Sign returns 0 when the
// orientation cannot be decided.
func Sign(tangent, toCenter, inward models.Point) float64 {
	outward, ok := tangent.Perp().Normalize()
	if !ok {
		return 0
	}
	if outward.Dot(inward) > 0 {
		outward = outward.Neg()
	}
	dir, ok := toCenter.Normalize()
	if !ok {
		return 0
	}
	switch d := dir.Dot(outward); {
	case d < 0:
		return 1
	case d > 0:
		return -1
	default:
		return 0
	}
}

// Region classifies a curvature value.
type Region int

const (
	Flat Region = iota
	Convex
	Concave
)

func (r Region) String() string {
	switch r {
	case Convex:
		return "convex"
	case Concave:
		return "concave"
	default:
		return "flat"
	}
}

// Classify labels k as convex or concave when its magnitude exceeds
// threshold, flat otherwise.
func Classify(k, threshold float64) Region {
	switch {
	case k > threshold:
		return Convex
	case k < -threshold:
		return Concave
	default:
		return Flat
	}
}
