// Package intensity measures fluorescence inside the sampling windows chosen
// by the coordinated sampler. Pixel membership is hard and values are read
// without interpolation.
package intensity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"cellcurvature/internal/models"
	"cellcurvature/pkg/sampling"
)

// Stats summarises the fluorescence values of one window.
type Stats struct {
	Mean float64
	Min  float64
	Max  float64

	// Std is the population standard deviation
	Std float64

	// Count is the number of pixels read
	Count int

	// Saturated counts pixels at or above the image's MaxValue; always 0 for
	// images of unknown bit depth
	Saturated int
}

// Values returns the image values at the given row-major pixel indices.
func Values(img models.Image, pixels []int) ([]float64, error) {
	out := make([]float64, len(pixels))
	for i, p := range pixels {
		if p < 0 || p >= len(img.Pix) {
			return nil, fmt.Errorf("pixel %d outside %dx%d image: %w", p, img.Width, img.Height, models.ErrSamplingOutOfBounds)
		}
		out[i] = img.Pix[p]
	}
	return out, nil
}

// Measure computes window statistics over the given pixels. An empty pixel set
// yields an error wrapping models.ErrSamplingOutOfBounds.
func Measure(img models.Image, pixels []int) (Stats, error) {
	if len(pixels) == 0 {
		return Stats{}, fmt.Errorf("empty window: %w", models.ErrSamplingOutOfBounds)
	}
	values, err := Values(img, pixels)
	if err != nil {
		return Stats{}, err
	}

	mean, variance := stat.PopMeanVariance(values, nil)
	s := Stats{
		Mean:  mean,
		Min:   floats.Min(values),
		Max:   floats.Max(values),
		Std:   math.Sqrt(variance),
		Count: len(values),
	}
	if img.MaxValue > 0 {
		for _, v := range values {
			if v >= img.MaxValue {
				s.Saturated++
			}
		}
	}
	return s, nil
}

// Window measures the window attached to a sample point.
func Window(img models.Image, pt sampling.SamplePoint) (Stats, error) {
	s, err := Measure(img, pt.Pixels)
	if err != nil {
		return Stats{}, fmt.Errorf("index %d: %w", pt.Index, err)
	}
	return s, nil
}

// Profile reads the image along the inward normal of a sample point at unit
// steps from 0 to depth, using the nearest pixel. Positions outside the
// image are NaN. A negative depth yields nil.
func Profile(img models.Image, pt sampling.SamplePoint, depth int) []float64 {
	if depth < 0 {
		return nil
	}
	out := make([]float64, depth+1)
	for d := range out {
		q := pt.Position.Add(pt.Normal.Vector.Scale(float64(d)))
		x, y := int(math.Round(q.X)), int(math.Round(q.Y))
		if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
			out[d] = math.NaN()
			continue
		}
		out[d] = img.At(x, y)
	}
	return out
}
