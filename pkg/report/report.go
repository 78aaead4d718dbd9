// Package report flattens batch results into tables and writes them as
// delimited text, one file per sheet.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"cellcurvature/pkg/analysis"
	"cellcurvature/pkg/statistics"
)

// Sheet names, also used as file stems by WriteDir.
const (
	SheetMeasurements = "measurements"
	SheetSummary      = "summary"
	SheetFrames       = "frames"
)

// Row is one measurement of the batch export.
type Row struct {
	Frame     int
	Index     int
	X, Y      float64
	NormalX   float64
	NormalY   float64
	Curvature float64
	Valid     bool
	Intensity float64
	Std       float64
	Min, Max  float64
	Overlap   float64

	// Correlation is the frame-level Pearson coefficient, repeated per row
	Correlation float64
}

// Rows flattens every successful frame of the batch in frame then index
// order. Missing values are NaN.
func Rows(batch *analysis.BatchResult) []Row {
	var rows []Row
	for _, f := range batch.Frames {
		if !f.OK() {
			continue
		}
		for _, m := range f.Measurements {
			r := Row{
				Frame:       f.Index,
				Index:       m.Index,
				X:           m.Position.X,
				Y:           m.Position.Y,
				NormalX:     m.Normal.Vector.X,
				NormalY:     m.Normal.Vector.Y,
				Curvature:   math.NaN(),
				Intensity:   math.NaN(),
				Std:         math.NaN(),
				Min:         math.NaN(),
				Max:         math.NaN(),
				Overlap:     m.Overlap,
				Correlation: f.Summary.Correlation,
			}
			if m.Curvature != nil {
				r.Curvature = m.Curvature.Curvature
				r.Valid = m.Curvature.Valid
			}
			if m.Intensity != nil {
				r.Intensity = m.Intensity.Mean
				r.Std = m.Intensity.Std
				r.Min = m.Intensity.Min
				r.Max = m.Intensity.Max
			}
			rows = append(rows, r)
		}
	}
	return rows
}

// Stat is one line of the summary sheet.
type Stat struct {
	Measure string
	Summary statistics.Summary
}

// SummaryTable pools the correlated measurements of all frames and
// summarises curvature and intensity, plus the per-frame correlations.
func SummaryTable(batch *analysis.BatchResult) []Stat {
	var curv, inten, corr []float64
	for _, f := range batch.Frames {
		if !f.OK() {
			continue
		}
		x, y := f.Series()
		curv = append(curv, x...)
		inten = append(inten, y...)
		if f.Summary.CorrelationOK {
			corr = append(corr, f.Summary.Correlation)
		}
	}
	return []Stat{
		{Measure: "curvature", Summary: statistics.Summarize(curv)},
		{Measure: "intensity", Summary: statistics.Summarize(inten)},
		{Measure: "correlation", Summary: statistics.Summarize(corr)},
	}
}

// MeasurementHeader returns the column names of the measurements sheet.
func MeasurementHeader() []string {
	return []string{"frame", "index", "x", "y", "normal_x", "normal_y",
		"curvature", "valid", "intensity_mean", "intensity_std", "intensity_min", "intensity_max",
		"interior_overlap", "frame_correlation"}
}

// SummaryHeader returns the column names of the summary sheet.
func SummaryHeader() []string {
	return []string{"measure", "n", "mean", "median", "std", "min", "max", "p5", "p95"}
}

// FrameHeader returns the column names of the frames sheet.
func FrameHeader() []string {
	return []string{"frame", "status", "requested", "sampled", "valid_curvature",
		"correlation", "slope", "intercept", "circularity", "equivalent_radius",
		"convex", "concave", "flat", "thickness_ratio", "error"}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', 8, 64)
}

// CSVWriter writes the three sheets to separate writers.
type CSVWriter struct {
	Measurements *csv.Writer
	Summary      *csv.Writer
	Frames       *csv.Writer
}

// NewCSVWriter creates a CSVWriter over the given destinations.
func NewCSVWriter(measurements, summary, frames io.Writer) *CSVWriter {
	return &CSVWriter{
		Measurements: csv.NewWriter(measurements),
		Summary:      csv.NewWriter(summary),
		Frames:       csv.NewWriter(frames),
	}
}

// Write emits all three sheets with headers and flushes them.
func (c *CSVWriter) Write(batch *analysis.BatchResult) error {
	if err := c.writeMeasurements(Rows(batch)); err != nil {
		return fmt.Errorf("measurements sheet: %w", err)
	}
	if err := c.writeSummary(SummaryTable(batch)); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := c.writeFrames(batch.Frames); err != nil {
		return fmt.Errorf("frames sheet: %w", err)
	}
	return nil
}

func (c *CSVWriter) writeMeasurements(rows []Row) error {
	if err := c.Measurements.Write(MeasurementHeader()); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Frame),
			strconv.Itoa(r.Index),
			fmt.Sprintf("%.3f", r.X),
			fmt.Sprintf("%.3f", r.Y),
			fmt.Sprintf("%.6f", r.NormalX),
			fmt.Sprintf("%.6f", r.NormalY),
			formatFloat(r.Curvature),
			strconv.FormatBool(r.Valid),
			formatFloat(r.Intensity),
			formatFloat(r.Std),
			formatFloat(r.Min),
			formatFloat(r.Max),
			fmt.Sprintf("%.2f", r.Overlap),
			formatFloat(r.Correlation),
		}
		if err := c.Measurements.Write(rec); err != nil {
			return err
		}
	}
	c.Measurements.Flush()
	return c.Measurements.Error()
}

func (c *CSVWriter) writeSummary(stats []Stat) error {
	if err := c.Summary.Write(SummaryHeader()); err != nil {
		return err
	}
	for _, s := range stats {
		rec := []string{
			s.Measure,
			strconv.Itoa(s.Summary.N),
			formatFloat(s.Summary.Mean),
			formatFloat(s.Summary.Median),
			formatFloat(s.Summary.Std),
			formatFloat(s.Summary.Min),
			formatFloat(s.Summary.Max),
			formatFloat(s.Summary.P5),
			formatFloat(s.Summary.P95),
		}
		if err := c.Summary.Write(rec); err != nil {
			return err
		}
	}
	c.Summary.Flush()
	return c.Summary.Error()
}

func (c *CSVWriter) writeFrames(frames []analysis.FrameResult) error {
	if err := c.Frames.Write(FrameHeader()); err != nil {
		return err
	}
	for _, f := range frames {
		s := f.Summary
		slope, intercept := math.NaN(), math.NaN()
		if s.TrendOK {
			slope, intercept = s.Trend.Slope, s.Trend.Intercept
		}
		corr := math.NaN()
		if s.CorrelationOK {
			corr = s.Correlation
		}
		ratio := math.NaN()
		if f.OK() {
			ratio = s.ThicknessRatio
		}
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		rec := []string{
			strconv.Itoa(f.Index),
			string(f.Status),
			strconv.Itoa(s.Requested),
			strconv.Itoa(s.Sampled),
			strconv.Itoa(s.ValidCurvature),
			formatFloat(corr),
			formatFloat(slope),
			formatFloat(intercept),
			formatFloat(s.Morphology.Circularity),
			formatFloat(s.Morphology.EquivalentRadius),
			strconv.Itoa(s.Convex),
			strconv.Itoa(s.Concave),
			strconv.Itoa(s.Flat),
			formatFloat(ratio),
			msg,
		}
		if err := c.Frames.Write(rec); err != nil {
			return err
		}
	}
	c.Frames.Flush()
	return c.Frames.Error()
}

// WriteDir writes measurements.csv, summary.csv and frames.csv into dir,
// creating it if needed. It returns the paths written.
func WriteDir(dir string, batch *analysis.BatchResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, name := range []string{SheetMeasurements, SheetSummary, SheetFrames} {
		path := filepath.Join(dir, name+".csv")
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		files = append(files, f)
		paths = append(paths, path)
	}

	if err := NewCSVWriter(files[0], files[1], files[2]).Write(batch); err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := f.Close(); err != nil {
			return nil, err
		}
	}
	files = nil
	return paths, nil
}
