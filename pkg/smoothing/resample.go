package smoothing

import (
	"gonum.org/v1/gonum/floats"

	"cellcurvature/internal/models"
)

// arcLengths returns the cumulative length at every vertex of the closed
// contour, with the total perimeter appended as the final element.
func arcLengths(c models.Contour) []float64 {
	steps := make([]float64, len(c)+1)
	for i := range c {
		steps[i+1] = c[i].Distance(c.At(i + 1))
	}
	return floats.CumSum(steps, steps)
}

// Resample returns n points spaced evenly by arc length along the closed
// contour, starting at c[0]. Contours too short to resample are returned as a
// copy.
func Resample(c models.Contour, n int) models.Contour {
	if n < 3 || len(c) < 2 {
		return c.Clone()
	}
	cum := arcLengths(c)
	total := cum[len(cum)-1]
	if total <= 0 {
		return c.Clone()
	}

	out := make(models.Contour, n)
	j := 0
	for k := range out {
		s := total * float64(k) / float64(n)
		for j < len(c)-1 && cum[j+1] < s {
			j++
		}
		a, b := c[j], c.At(j+1)
		seg := cum[j+1] - cum[j]
		t := 0.0
		if seg > 0 {
			t = (s - cum[j]) / seg
		}
		out[k] = a.Add(b.Sub(a).Scale(t))
	}
	return out
}
