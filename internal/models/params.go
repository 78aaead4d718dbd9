package models

import (
	"fmt"
	"math"
)

// Smoothing strategies understood by the contour conditioner.
const (
	SmoothingSavitzkyGolay = "savgol"
	SmoothingSpline        = "spline"
)

// Reference curvatures in nm^-1 used to put measurements in context.
var ReferenceCurvatures = map[string]float64{
	"plasma_membrane":   1.0 / 10000,
	"transport_vesicle": 1.0 / 40,
	"endocytic_vesicle": 1.0 / 100,
}

// MembraneThickness is the bilayer thickness in nm used for h/R reporting.
const MembraneThickness = 4.0

// DefaultResampleSize is the point count of a conditioned contour. A fit
// segment must span several pixel steps of the traced boundary.
const DefaultResampleSize = 128

// AnalysisParameters holds every tunable of a run. A value is fixed for the
// duration of a run and shared read-only by all workers.
type AnalysisParameters struct {
	// NSamples is the number of evenly spaced boundary locations requested
	NSamples int

	// SegmentLength is the number of contour points used per circle fit (odd, >= 3)
	SegmentLength int

	// EdgeSegment is the number of points used to estimate the tangent for normals
	EdgeSegment int

	// PixelSize converts pixels to nanometres
	PixelSize float64

	// VectorWidth is the sampling window extent along the tangent, in pixels
	VectorWidth float64

	// VectorDepth is the sampling window extent along the inward normal, in pixels
	VectorDepth float64

	// InteriorThreshold is the minimum percentage of window pixels inside the cell
	InteriorThreshold float64

	// BorderMargin rejects boundary points closer than this to the image edge
	BorderMargin float64

	// SmoothingSigma is the smoothing strength; 0 disables smoothing
	SmoothingSigma float64

	// SmoothingMethod selects SmoothingSavitzkyGolay or SmoothingSpline
	SmoothingMethod string

	// ResampleSize is the number of points after arc-length resampling; 0 keeps
	// the traced contour as is
	ResampleSize int

	// MinSize is the minimum connected component area in pixels
	MinSize int

	// MaxRadiusFactor caps the fitted radius at this multiple of the cell's
	// equivalent radius
	MaxRadiusFactor float64

	// NormalTestDistance is the single-step probe distance for normal orientation
	NormalTestDistance float64

	// NormalProbeDistances are the probe distances used by the interior vote
	NormalProbeDistances []float64

	// NormalVoteRatio is the fraction of probes that must land inside to accept
	// a candidate normal
	NormalVoteRatio float64
}

// DefaultParameters returns the parameter set used when nothing is configured.
func DefaultParameters() AnalysisParameters {
	return AnalysisParameters{
		NSamples:             75,
		SegmentLength:        9,
		EdgeSegment:          10,
		PixelSize:            100,
		VectorWidth:          5,
		VectorDepth:          20,
		InteriorThreshold:    0,
		BorderMargin:         20,
		SmoothingSigma:       2,
		SmoothingMethod:      SmoothingSpline,
		ResampleSize:         DefaultResampleSize,
		MinSize:              100,
		MaxRadiusFactor:      1000,
		NormalTestDistance:   5,
		NormalProbeDistances: []float64{2, 4, 6, 8, 10},
		NormalVoteRatio:      0.6,
	}
}

// Validate checks parameter ranges. Errors wrap ErrInvalidParameters.
func (p AnalysisParameters) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidParameters)
	}

	switch {
	case p.NSamples < 1:
		return invalid("n_samples must be positive, got %d", p.NSamples)
	case p.SegmentLength < 3 || p.SegmentLength%2 == 0:
		return invalid("segment_length must be odd and at least 3, got %d", p.SegmentLength)
	case p.EdgeSegment < 2:
		return invalid("edge_segment must be at least 2, got %d", p.EdgeSegment)
	case !(p.PixelSize > 0) || math.IsInf(p.PixelSize, 0):
		return invalid("pixel_size must be positive, got %g", p.PixelSize)
	case !(p.VectorWidth > 0):
		return invalid("vector_width must be positive, got %g", p.VectorWidth)
	case !(p.VectorDepth > 0):
		return invalid("vector_depth must be positive, got %g", p.VectorDepth)
	case p.InteriorThreshold < 0 || p.InteriorThreshold > 100 || math.IsNaN(p.InteriorThreshold):
		return invalid("interior_threshold must be within [0, 100], got %g", p.InteriorThreshold)
	case p.BorderMargin < 0:
		return invalid("border_margin must not be negative, got %g", p.BorderMargin)
	case p.SmoothingSigma < 0 || math.IsNaN(p.SmoothingSigma):
		return invalid("smoothing_sigma must not be negative, got %g", p.SmoothingSigma)
	case p.SmoothingMethod != SmoothingSavitzkyGolay && p.SmoothingMethod != SmoothingSpline:
		return invalid("unknown smoothing method %q", p.SmoothingMethod)
	case p.ResampleSize != 0 && p.ResampleSize < 3:
		return invalid("resample_size must be 0 or at least 3, got %d", p.ResampleSize)
	case p.MinSize < 0:
		return invalid("min_size must not be negative, got %d", p.MinSize)
	case !(p.MaxRadiusFactor > 0):
		return invalid("max_radius_factor must be positive, got %g", p.MaxRadiusFactor)
	case !(p.NormalTestDistance > 0):
		return invalid("normal test distance must be positive, got %g", p.NormalTestDistance)
	case len(p.NormalProbeDistances) == 0:
		return invalid("at least one normal probe distance is required")
	case !(p.NormalVoteRatio > 0) || p.NormalVoteRatio >= 1:
		return invalid("normal vote ratio must be within (0, 1), got %g", p.NormalVoteRatio)
	}
	return nil
}

// ThicknessRatio returns h/R for a curvature in nm^-1, the membrane thickness
// relative to the radius of curvature.
func ThicknessRatio(curvature float64) float64 {
	return MembraneThickness * math.Abs(curvature)
}
