// Package analysis runs the per-frame curvature and fluorescence pipeline and
// the batch runner that applies it to a stack of frames.
//
// One frame flows through boundary extraction, contour conditioning and the
// coordinated sampler. Curvature and intensity are then measured at the
// sampled locations only, so every requested measurement refers to the same
// index set.
package analysis

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"cellcurvature/internal/models"
	"cellcurvature/pkg/contour"
	"cellcurvature/pkg/curvature"
	"cellcurvature/pkg/intensity"
	"cellcurvature/pkg/normals"
	"cellcurvature/pkg/sampling"
	"cellcurvature/pkg/smoothing"
	"cellcurvature/pkg/statistics"
)

// Mode selects which measurements a run produces.
type Mode int

const (
	// ModeCoordinated measures curvature and intensity at the same locations
	ModeCoordinated Mode = iota

	// ModeCurvatureOnly skips intensity measurement
	ModeCurvatureOnly

	// ModeIntensityOnly skips curvature estimation
	ModeIntensityOnly
)

func (m Mode) String() string {
	switch m {
	case ModeCoordinated:
		return "coordinated"
	case ModeCurvatureOnly:
		return "curvature"
	case ModeIntensityOnly:
		return "intensity"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a configuration string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "coordinated", "both":
		return ModeCoordinated, nil
	case "curvature":
		return ModeCurvatureOnly, nil
	case "intensity":
		return ModeIntensityOnly, nil
	default:
		return 0, fmt.Errorf("unknown analysis mode %q: %w", s, models.ErrInvalidParameters)
	}
}

func (m Mode) curvature() bool { return m != ModeIntensityOnly }
func (m Mode) intensity() bool { return m != ModeCurvatureOnly }

// Status tags a frame result.
type Status string

const (
	StatusOK        Status = "ok"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Measurement is everything recorded at one shared sample location.
type Measurement struct {
	// Index is the position on the conditioned contour
	Index int

	// Position is the boundary point in pixel coordinates
	Position models.Point

	// Normal is the inward normal used by both measurements
	Normal normals.Normal

	// Window holds the intensity sampling rectangle
	Window [4]models.Point

	// Overlap is the interior overlap percentage of the window
	Overlap float64

	// Curvature is nil when the mode skips curvature
	Curvature *curvature.Measurement

	// Intensity is nil when the mode skips intensity
	Intensity *intensity.Stats
}

// Correlated reports whether the measurement belongs to the correlated set:
// both values present and the curvature fit valid.
func (m Measurement) Correlated() bool {
	return m.Curvature != nil && m.Curvature.Valid && m.Intensity != nil
}

// Summary aggregates one frame.
type Summary struct {
	// Requested is the number of candidate locations examined
	Requested int

	// Sampled is the number of locations that passed the sampler
	Sampled int

	// ValidCurvature counts locations with a valid curvature fit
	ValidCurvature int

	// Correlation is the Pearson coefficient of curvature against mean
	// intensity over the correlated set; NaN when undefined
	Correlation   float64
	CorrelationOK bool

	Curvature statistics.Summary
	Intensity statistics.Summary
	Trend     statistics.Trend
	TrendOK   bool

	// Convex, Concave and Flat count valid fits by region; a fit is flat
	// when its magnitude is within the plasma membrane reference
	Convex, Concave, Flat int

	// ThicknessRatio is h/R of the median curvature; NaN without fits
	ThicknessRatio float64

	Morphology contour.Morphology
	Debug      statistics.Report
}

// FrameResult is the tagged outcome of analysing one frame.
type FrameResult struct {
	Index  int
	Status Status
	Err    error

	Mode         Mode
	Measurements []Measurement
	Summary      Summary

	// Rejections counts sampler rejections by reason
	Rejections map[sampling.Reason]int

	// Contour is the conditioned contour the indices refer to
	Contour models.Contour

	// Boundary is the traced boundary raster, for display
	Boundary models.Mask
}

// OK reports whether the frame was analysed successfully.
func (r *FrameResult) OK() bool { return r.Status == StatusOK }

// Indices returns the shared index set of the frame.
func (r *FrameResult) Indices() []int {
	idx := make([]int, len(r.Measurements))
	for i, m := range r.Measurements {
		idx[i] = m.Index
	}
	return idx
}

// Series returns the curvature and mean intensity of the correlated set, in
// index order.
func (r *FrameResult) Series() (curv, mean []float64) {
	for _, m := range r.Measurements {
		if !m.Correlated() {
			continue
		}
		curv = append(curv, m.Curvature.Curvature)
		mean = append(mean, m.Intensity.Mean)
	}
	return curv, mean
}

// Analyzer runs the pipeline with a fixed parameter set. It holds no
// per-frame state and is safe for concurrent use.
type Analyzer struct {
	params  models.AnalysisParameters
	mode    Mode
	logger  *logrus.Logger
	sampler *sampling.Sampler
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logrus.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithMode selects the measurements to produce.
func WithMode(m Mode) Option {
	return func(a *Analyzer) { a.mode = m }
}

// NewAnalyzer validates params and returns an Analyzer.
func NewAnalyzer(params models.AnalysisParameters, opts ...Option) (*Analyzer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{
		params:  params,
		mode:    ModeCoordinated,
		sampler: sampling.New(params),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logrus.New()
		a.logger.SetOutput(io.Discard)
	}
	return a, nil
}

// Params returns the parameter set of the analyzer.
func (a *Analyzer) Params() models.AnalysisParameters { return a.params }

// Mode returns the configured mode.
func (a *Analyzer) Mode() Mode { return a.mode }

// AnalyzeFrame runs the whole pipeline on one frame. Failures are reported
// in the result rather than returned; point-level rejections never fail the
// frame.
func (a *Analyzer) AnalyzeFrame(frame models.Frame) FrameResult {
	res := FrameResult{Index: frame.Index, Mode: a.mode}
	log := a.logger.WithFields(logrus.Fields{"frame": frame.Index, "mode": a.mode.String()})

	fail := func(err error) FrameResult {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("frame %d: %w", frame.Index, err)
		log.WithError(err).Warn("Frame failed")
		return res
	}

	if err := frame.CheckDimensions(); err != nil {
		return fail(err)
	}

	extracted, err := contour.Extract(frame.Mask, a.params.MinSize)
	if err != nil {
		return fail(err)
	}
	res.Boundary = extracted.Boundary
	res.Summary.Morphology = extracted.Measure()
	log.WithFields(logrus.Fields{
		"area":       extracted.Area,
		"components": extracted.Components,
		"removed":    extracted.Removed,
		"points":     len(extracted.Contour),
	}).Debug("Boundary extracted")

	conditioned, err := smoothing.Condition(extracted.Contour, a.params)
	if err != nil {
		return fail(err)
	}
	res.Contour = conditioned

	plan, err := a.sampler.Sample(conditioned, extracted.Cell)
	if plan != nil {
		res.Rejections = plan.Rejections
		res.Summary.Requested = plan.Requested
	}
	if err != nil {
		return fail(err)
	}
	res.Summary.Sampled = len(plan.Points)

	estimator := curvature.NewEstimator(a.params, res.Summary.Morphology.EquivalentRadius)
	res.Measurements = make([]Measurement, 0, len(plan.Points))
	for _, pt := range plan.Points {
		m := Measurement{
			Index:    pt.Index,
			Position: pt.Position,
			Normal:   pt.Normal,
			Window:   pt.Window,
			Overlap:  pt.InteriorOverlap,
		}
		if a.mode.curvature() {
			k := estimator.Estimate(conditioned, pt.Index, pt.Normal.Vector)
			if !k.Valid {
				log.WithField("index", pt.Index).WithError(k.Err).Trace("Curvature rejected")
			}
			m.Curvature = &k
		}
		if a.mode.intensity() {
			s, err := intensity.Window(frame.Fluorescence, pt)
			if err != nil {
				// The sampler only emits windows with pixels inside the image.
				return fail(err)
			}
			m.Intensity = &s
		}
		res.Measurements = append(res.Measurements, m)
	}

	a.summarize(&res)
	res.Status = StatusOK

	entry := log.WithFields(logrus.Fields{
		"sampled":   res.Summary.Sampled,
		"requested": res.Summary.Requested,
		"valid":     res.Summary.ValidCurvature,
	})
	if res.Summary.CorrelationOK {
		entry = entry.WithField("r", res.Summary.Correlation)
	}
	entry.Debug("Frame analysed")
	for _, w := range res.Summary.Debug.Warnings {
		log.Debug(w)
	}
	return res
}

// flatCurvature is the magnitude below which a fit counts as flat.
var flatCurvature = models.ReferenceCurvatures["plasma_membrane"]

func (s *Summary) count(r curvature.Region) {
	switch r {
	case curvature.Convex:
		s.Convex++
	case curvature.Concave:
		s.Concave++
	default:
		s.Flat++
	}
}

// summarize fills the statistics of an analysed frame.
func (a *Analyzer) summarize(res *FrameResult) {
	var curv, mean, overlaps []float64
	saturated := 0
	for _, m := range res.Measurements {
		overlaps = append(overlaps, m.Overlap)
		if m.Curvature != nil {
			curv = append(curv, m.Curvature.Curvature)
			if m.Curvature.Valid {
				res.Summary.ValidCurvature++
				res.Summary.count(curvature.Classify(m.Curvature.Curvature, flatCurvature))
			}
		}
		if m.Intensity != nil {
			mean = append(mean, m.Intensity.Mean)
			if m.Intensity.Saturated > 0 {
				saturated++
			}
		}
	}

	s := &res.Summary
	s.Curvature = statistics.Summarize(curv)
	s.ThicknessRatio = models.ThicknessRatio(s.Curvature.Median)
	s.Intensity = statistics.Summarize(mean)
	s.Debug = statistics.Debug(curv, mean, overlaps, saturated)

	x, y := res.Series()
	s.Correlation, s.CorrelationOK = statistics.Pearson(x, y)
	s.Trend, s.TrendOK = statistics.FitTrend(x, y)
}

// IsSkippable reports whether a frame error is one that batch mode records
// and moves past.
func IsSkippable(err error) bool {
	return errors.Is(err, models.ErrNoCellFound) ||
		errors.Is(err, models.ErrNoValidPoints) ||
		errors.Is(err, models.ErrInvalidContour)
}
