// Package smoothing conditions traced contours before curvature estimation:
// arc-length resampling followed by one of two interchangeable smoothers.
package smoothing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"

	"cellcurvature/internal/models"
)

// Smoother maps a closed contour to a smoothed closed contour. A smoother at
// zero strength returns its input unchanged.
type Smoother interface {
	Smooth(c models.Contour) models.Contour
}

// SavitzkyGolay fits a local polynomial of degree Order over Window points
// centred on each vertex, treating the contour as periodic.
type SavitzkyGolay struct {
	Window int
	Order  int
}

// Coefficients returns the convolution weights that evaluate the local
// least-squares polynomial at the window centre.
func (sg SavitzkyGolay) Coefficients() ([]float64, error) {
	w := sg.Window
	half := w / 2
	cols := sg.Order + 1

	// Vandermonde matrix of offsets -half..half
	v := mat.NewDense(w, cols, nil)
	for i := 0; i < w; i++ {
		x := float64(i - half)
		pow := 1.0
		for j := 0; j < cols; j++ {
			v.Set(i, j, pow)
			pow *= x
		}
	}

	eye := mat.NewDense(w, w, nil)
	for i := 0; i < w; i++ {
		eye.Set(i, i, 1)
	}

	// Least-squares pseudo-inverse; row 0 evaluates the polynomial at offset 0
	var pinv mat.Dense
	if err := pinv.Solve(v, eye); err != nil {
		return nil, fmt.Errorf("savitzky-golay window %d order %d: %w", sg.Window, sg.Order, err)
	}
	return mat.Row(nil, 0, &pinv), nil
}

// Smooth implements Smoother.
func (sg SavitzkyGolay) Smooth(c models.Contour) models.Contour {
	if sg.Window <= 1 {
		return c.Clone()
	}
	if sg.Window%2 == 0 {
		sg.Window++
	}
	if sg.Order < 0 || sg.Order >= sg.Window || len(c) < sg.Window {
		return c.Clone()
	}

	h, err := sg.Coefficients()
	if err != nil {
		return c.Clone()
	}
	return convolve(c, h)
}

// Spline applies periodic Gaussian smoothing and then passes a closed natural
// cubic spline through the result, sampling Points positions evenly along the
// curve parameter. Points of 0 keeps the input length.
type Spline struct {
	Sigma  float64
	Points int
}

// Smooth implements Smoother.
func (s Spline) Smooth(c models.Contour) models.Contour {
	if s.Sigma <= 0 || len(c) < 4 {
		return c.Clone()
	}
	g := Gaussian(c, s.Sigma)

	n := s.Points
	if n <= 0 {
		n = len(g)
	}
	out, ok := closedSpline(g, n)
	if !ok {
		return g
	}
	return out
}

// closedSpline fits x(t) and y(t) with natural cubic splines over a
// chord-length parameter t. The contour is wrapped on both sides so that the
// free end conditions fall outside the evaluated range.
func closedSpline(c models.Contour, n int) (models.Contour, bool) {
	cum := arcLengths(c)
	total := cum[len(cum)-1]
	if total <= 0 {
		return nil, false
	}

	pad := min(len(c), 5)
	size := len(c) + 2*pad + 1
	ts := make([]float64, 0, size)
	xs := make([]float64, 0, size)
	ys := make([]float64, 0, size)
	for k := -pad; k <= len(c)+pad; k++ {
		i := ((k % len(c)) + len(c)) % len(c)
		turns := math.Floor(float64(k) / float64(len(c)))
		t := cum[i] + turns*total
		if len(ts) > 0 && t <= ts[len(ts)-1] {
			return nil, false
		}
		ts = append(ts, t)
		xs = append(xs, c[i].X)
		ys = append(ys, c[i].Y)
	}

	var fx, fy interp.NaturalCubic
	if err := fx.Fit(ts, xs); err != nil {
		return nil, false
	}
	if err := fy.Fit(ts, ys); err != nil {
		return nil, false
	}

	out := make(models.Contour, n)
	for k := range out {
		t := total * float64(k) / float64(n)
		out[k] = models.Pt(fx.Predict(t), fy.Predict(t))
		if !out[k].IsFinite() {
			return nil, false
		}
	}
	return out, true
}

// Gaussian convolves the contour coordinates with a periodic Gaussian kernel
// truncated at four standard deviations.
func Gaussian(c models.Contour, sigma float64) models.Contour {
	if sigma <= 0 || len(c) == 0 {
		return c.Clone()
	}
	radius := int(4*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for k := range kernel {
		d := float64(k-radius) / sigma
		kernel[k] = math.Exp(-0.5 * d * d)
		sum += kernel[k]
	}
	for k := range kernel {
		kernel[k] /= sum
	}
	return convolve(c, kernel)
}

// convolve applies an odd-length kernel centred on each vertex with
// wrap-around indexing.
func convolve(c models.Contour, kernel []float64) models.Contour {
	half := len(kernel) / 2
	out := make(models.Contour, len(c))
	for i := range c {
		var p models.Point
		for k, w := range kernel {
			p = p.Add(c.At(i + k - half).Scale(w))
		}
		out[i] = p
	}
	return out
}

// New returns the smoother selected by method at the given strength. Sigma is
// in contour points; for Savitzky-Golay it sets a window of 2*ceil(2*sigma)+1
// points with a quadratic fit.
func New(method string, sigma float64) (Smoother, error) {
	switch method {
	case models.SmoothingSpline:
		return Spline{Sigma: sigma}, nil
	case models.SmoothingSavitzkyGolay:
		if sigma <= 0 {
			return SavitzkyGolay{Window: 1}, nil
		}
		return SavitzkyGolay{Window: 2*int(math.Ceil(2*sigma)) + 1, Order: 2}, nil
	default:
		return nil, fmt.Errorf("unknown smoothing method %q: %w", method, models.ErrInvalidParameters)
	}
}

// Condition resamples the contour when params.ResampleSize is set and then
// applies the configured smoother. The result satisfies the contour
// invariants or an error wrapping models.ErrInvalidContour is returned.
func Condition(c models.Contour, params models.AnalysisParameters) (models.Contour, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	sm, err := New(params.SmoothingMethod, params.SmoothingSigma)
	if err != nil {
		return nil, err
	}

	out := c
	if params.ResampleSize > 0 {
		out = Resample(out, params.ResampleSize)
	}
	out = sm.Smooth(out)

	if err := out.Validate(); err != nil {
		out = models.Dedupe(out)
		if err := out.Validate(); err != nil {
			return nil, fmt.Errorf("conditioned contour: %w", err)
		}
	}
	return out, nil
}
