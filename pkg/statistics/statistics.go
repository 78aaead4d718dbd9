// Package statistics summarises paired curvature and intensity samples and
// derives debug diagnostics. Nothing here modifies measurements.
package statistics

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of a set of values.
type Summary struct {
	N      int
	Mean   float64
	Median float64

	// Std is the population standard deviation
	Std float64

	Min float64
	Max float64
	P5  float64
	P95 float64
}

// finite returns the values that are neither NaN nor infinite.
func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// Summarize computes a Summary over the finite values. An empty input yields
// N == 0 and NaN everywhere else.
func Summarize(values []float64) Summary {
	x := finite(values)
	if len(x) == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, Median: nan, Std: nan, Min: nan, Max: nan, P5: nan, P95: nan}
	}
	slices.Sort(x)

	mean, variance := stat.PopMeanVariance(x, nil)
	return Summary{
		N:      len(x),
		Mean:   mean,
		Median: median(x),
		Std:    math.Sqrt(variance),
		Min:    x[0],
		Max:    x[len(x)-1],
		P5:     stat.Quantile(0.05, stat.LinInterp, x, nil),
		P95:    stat.Quantile(0.95, stat.LinInterp, x, nil),
	}
}

// median of sorted data, averaging the middle pair for even lengths.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// pairs drops every pair in which either value is not finite.
func pairs(x, y []float64) ([]float64, []float64) {
	n := min(len(x), len(y))
	px, py := make([]float64, 0, n), make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) || math.IsInf(x[i], 0) || math.IsInf(y[i], 0) {
			continue
		}
		px = append(px, x[i])
		py = append(py, y[i])
	}
	return px, py
}

// Pearson returns the correlation coefficient of the finite pairs of x and y.
// ok is false, and r NaN, when fewer than two pairs remain, the lengths
// differ, or either series has zero variance.
func Pearson(x, y []float64) (r float64, ok bool) {
	if len(x) != len(y) {
		return math.NaN(), false
	}
	px, py := pairs(x, y)
	if len(px) < 2 {
		return math.NaN(), false
	}
	if stat.Variance(px, nil) == 0 || stat.Variance(py, nil) == 0 {
		return math.NaN(), false
	}
	r = stat.Correlation(px, py, nil)
	if math.IsNaN(r) {
		return r, false
	}
	return r, true
}

// Trend is the least-squares line intensity = Intercept + Slope*curvature.
type Trend struct {
	Intercept float64
	Slope     float64
}

// At evaluates the line at x.
func (t Trend) At(x float64) float64 {
	return t.Intercept + t.Slope*x
}

// FitTrend fits a straight line to the finite pairs. ok is false when the
// x values do not span a range.
func FitTrend(x, y []float64) (Trend, bool) {
	if len(x) != len(y) {
		return Trend{}, false
	}
	px, py := pairs(x, y)
	if len(px) < 2 || floats.Max(px) == floats.Min(px) {
		return Trend{}, false
	}
	alpha, beta := stat.LinearRegression(px, py, nil, false)
	return Trend{Intercept: alpha, Slope: beta}, true
}
