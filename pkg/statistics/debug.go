package statistics

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Diagnostic thresholds.
const (
	// HighVariation is the coefficient of variation above which window means
	// are reported as highly variable
	HighVariation = 1.0

	// ExtremeFactor multiplies the 99th percentile of |curvature| to obtain
	// the extreme curvature threshold
	ExtremeFactor = 2.0

	// LowOverlap is the interior overlap percentage below which a window is
	// reported
	LowOverlap = 50.0

	// LowValidFraction is the fraction of valid points below which a frame
	// is flagged
	LowValidFraction = 0.5
)

// Report is the per-frame debug summary.
type Report struct {
	Samples          int
	ValidCurvature   int
	InvalidCurvature int

	Curvature Summary
	Intensity Summary

	// Variation is the coefficient of variation of the window means
	Variation float64

	Extreme    int
	LowOverlap int
	Saturated  int
	Warnings   []string
}

// Debug builds a Report from the per-point series of one frame. curvatures
// hold NaN for invalid fits; intensities and overlaps are per window;
// saturated is the number of windows containing saturated pixels.
func Debug(curvatures, intensities, overlaps []float64, saturated int) Report {
	r := Report{
		Samples:   len(curvatures),
		Curvature: Summarize(curvatures),
		Intensity: Summarize(intensities),
		Saturated: saturated,
	}
	r.ValidCurvature = r.Curvature.N
	r.InvalidCurvature = r.Samples - r.ValidCurvature

	if r.InvalidCurvature > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d points with invalid curvature", r.InvalidCurvature))
	}

	if abs := absFinite(curvatures); len(abs) > 0 {
		slices.Sort(abs)
		threshold := ExtremeFactor * stat.Quantile(0.99, stat.LinInterp, abs, nil)
		for _, v := range abs {
			if v > threshold {
				r.Extreme++
			}
		}
		if r.Extreme > 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%d points with extreme curvature", r.Extreme))
		}
	}

	for _, o := range overlaps {
		if o < LowOverlap {
			r.LowOverlap++
		}
	}
	if r.LowOverlap > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d windows with <%g%% interior overlap", r.LowOverlap, LowOverlap))
	}

	if saturated > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d windows contain saturated pixels", saturated))
	}

	r.Variation = math.NaN()
	if r.Intensity.N > 0 && r.Intensity.Mean != 0 {
		r.Variation = r.Intensity.Std / r.Intensity.Mean
		if r.Variation > HighVariation {
			r.Warnings = append(r.Warnings, "high variation in fluorescence intensities")
		}
	}
	return r
}

func absFinite(values []float64) []float64 {
	x := finite(values)
	for i, v := range x {
		x[i] = math.Abs(v)
	}
	return x
}

// FrameStats is the per-frame input to FlagOutliers.
type FrameStats struct {
	Index     int
	Mean      float64
	Valid     int
	Requested int
	Saturated int
}

// FlagKind names a frame-level diagnostic.
type FlagKind string

const (
	FlagMeanOutlier FlagKind = "mean_outlier"
	FlagLowValid    FlagKind = "low_valid_fraction"
	FlagSaturated   FlagKind = "saturated"
)

// Flag marks a frame worth inspecting.
type Flag struct {
	Frame int
	Kind  FlagKind
	Value float64
}

func (f Flag) String() string {
	return fmt.Sprintf("frame %d: %s (%.3g)", f.Frame, f.Kind, f.Value)
}

// FlagOutliers flags frames whose mean intensity lies more than z standard
// deviations from the mean over frames, frames with a low fraction of valid
// points, and frames with saturated windows. Flags are in frame order.
func FlagOutliers(frames []FrameStats, z float64) []Flag {
	means := make([]float64, 0, len(frames))
	for _, f := range frames {
		if !math.IsNaN(f.Mean) {
			means = append(means, f.Mean)
		}
	}
	var mu, sd float64
	if len(means) > 1 {
		var variance float64
		mu, variance = stat.PopMeanVariance(means, nil)
		sd = math.Sqrt(variance)
	}

	var flags []Flag
	for _, f := range frames {
		if sd > 0 && !math.IsNaN(f.Mean) {
			if score := (f.Mean - mu) / sd; math.Abs(score) > z {
				flags = append(flags, Flag{Frame: f.Index, Kind: FlagMeanOutlier, Value: score})
			}
		}
		if f.Requested > 0 {
			if frac := float64(f.Valid) / float64(f.Requested); frac < LowValidFraction {
				flags = append(flags, Flag{Frame: f.Index, Kind: FlagLowValid, Value: frac})
			}
		}
		if f.Saturated > 0 {
			flags = append(flags, Flag{Frame: f.Index, Kind: FlagSaturated, Value: float64(f.Saturated)})
		}
	}
	return flags
}
