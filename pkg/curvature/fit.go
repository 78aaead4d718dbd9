package curvature

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"cellcurvature/internal/models"
)

// degenerateTolerance bounds |A| relative to the linear terms, scaled by the
// segment size. Below it the points are treated as collinear.
const degenerateTolerance = 1e-10

var (
	errCollinear    = errors.New("points are collinear")
	errRadicand     = errors.New("non-positive radius term")
	errEigen        = errors.New("eigen decomposition failed")
	errNonFinite    = errors.New("non-finite value")
	errTooFewPoints = errors.New("fewer than 3 points")
)

// Circle is the result of an algebraic circle fit.
type Circle struct {
	// Center is the fitted centre in pixel coordinates
	Center models.Point

	// Radius is in physical units (pixel size units, typically nm)
	Radius float64
}

// FitCircle fits a circle to points with Taubin's algebraic method. Points are
// centred on their mean and scaled by pixelSize before fitting. The fit
// minimises the algebraic distance subject to a gradient-weighted constraint,
// which makes it unbiased for short arcs.
//
// Errors wrap models.ErrDegenerateFit.
func FitCircle(points []models.Point, pixelSize float64) (Circle, error) {
	fail := func(err error) (Circle, error) {
		return Circle{}, fmt.Errorf("%w: %w", models.ErrDegenerateFit, err)
	}
	n := len(points)
	if n < 3 {
		return fail(errTooFewPoints)
	}

	var mean models.Point
	for _, p := range points {
		mean = mean.Add(p)
	}
	mean = mean.Scale(1 / float64(n))

	xs := make([]float64, n)
	ys := make([]float64, n)
	zs := make([]float64, n)
	var zmean float64
	for i, p := range points {
		d := p.Sub(mean).Scale(pixelSize)
		xs[i], ys[i] = d.X, d.Y
		zs[i] = d.X*d.X + d.Y*d.Y
		zmean += zs[i]
	}
	zmean /= float64(n)
	if !(zmean > 0) || math.IsInf(zmean, 0) {
		return fail(errNonFinite)
	}

	// Moment matrix of the columns [z - mean(z), x, y]
	cols := [3][]float64{make([]float64, n), xs, ys}
	for i := range zs {
		cols[0][i] = zs[i] - zmean
	}
	moments := mat.NewSymDense(3, nil)
	for r := 0; r < 3; r++ {
		for c := r; c < 3; c++ {
			var s float64
			for i := 0; i < n; i++ {
				s += cols[r][i] * cols[c][i]
			}
			moments.SetSym(r, c, s/float64(n))
		}
	}

	// The generalised problem M v = eta N v with N = diag(4*mean(z), 1, 1) is
	// symmetrised as (N^-1/2 M N^-1/2) u = eta u, v = N^-1/2 u.
	scale := [3]float64{1 / math.Sqrt(4*zmean), 1, 1}
	sym := mat.NewSymDense(3, nil)
	for r := 0; r < 3; r++ {
		for c := r; c < 3; c++ {
			sym.SetSym(r, c, moments.At(r, c)*scale[r]*scale[c])
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return fail(errEigen)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	best := 0
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fail(errNonFinite)
		}
		if math.Abs(v) < math.Abs(values[best]) {
			best = i
		}
	}

	a := vectors.At(0, best) * scale[0]
	b := vectors.At(1, best) * scale[1]
	c := vectors.At(2, best) * scale[2]
	for _, v := range []float64{a, b, c} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fail(errNonFinite)
		}
	}

	linear := math.Hypot(b, c)
	if math.Abs(a)*math.Sqrt(zmean) <= degenerateTolerance*linear {
		return fail(errCollinear)
	}

	// Conic a*(x^2+y^2) + b*x + c*y + d = 0 with d = -a*mean(z)
	d := -a * zmean
	cx, cy := -b/(2*a), -c/(2*a)
	radicand := cx*cx + cy*cy - d/a
	if !(radicand > 0) {
		return fail(errRadicand)
	}
	r := math.Sqrt(radicand)

	center := models.Pt(cx/pixelSize, cy/pixelSize).Add(mean)
	if math.IsInf(r, 0) || math.IsNaN(r) || !center.IsFinite() {
		return fail(errNonFinite)
	}
	return Circle{Center: center, Radius: r}, nil
}
