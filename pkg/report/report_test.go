package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"

	"cellcurvature/internal/models"
	"cellcurvature/pkg/analysis"
	"cellcurvature/pkg/curvature"
	"cellcurvature/pkg/intensity"
	"cellcurvature/pkg/statistics"
	"cellcurvature/pkg/synthetic"
)

// fakeBatch builds a two-frame batch by hand: one analysed frame with three
// measurements, one of them with an invalid fit, and one failed frame.
func fakeBatch() *analysis.BatchResult {
	meas := func(idx int, k float64, valid bool, mean float64) analysis.Measurement {
		c := curvature.Measurement{Index: idx, Curvature: k, Valid: valid}
		if !valid {
			c.Curvature = math.NaN()
		}
		return analysis.Measurement{
			Index:     idx,
			Position:  models.Pt(float64(idx), 2*float64(idx)),
			Overlap:   90,
			Curvature: &c,
			Intensity: &intensity.Stats{Mean: mean, Min: mean - 5, Max: mean + 5, Count: 10},
		}
	}
	ok := analysis.FrameResult{
		Index:  0,
		Status: analysis.StatusOK,
		Measurements: []analysis.Measurement{
			meas(0, 1e-4, true, 100),
			meas(5, 0, false, 110),
			meas(9, 2e-4, true, 120),
		},
		Summary: analysis.Summary{
			Requested:      4,
			Sampled:        3,
			ValidCurvature: 2,
			Correlation:    1,
			CorrelationOK:  true,
			Trend:          statistics.Trend{Intercept: 80, Slope: 2e5},
			TrendOK:        true,
			Convex:         2,
			ThicknessRatio: 6e-4,
		},
	}
	failed := analysis.FrameResult{
		Index:  1,
		Status: analysis.StatusFailed,
		Err:    errors.New("frame 1: no cell found"),
	}
	return &analysis.BatchResult{Frames: []analysis.FrameResult{ok, failed}}
}

func TestRows(t *testing.T) {
	rows := Rows(fakeBatch())
	require.Len(t, rows, 3)
	assert.Equal(t, 0, rows[0].Frame)
	assert.Equal(t, 5, rows[1].Index)
	assert.False(t, rows[1].Valid)
	assert.True(t, math.IsNaN(rows[1].Curvature))
	assert.Equal(t, 110.0, rows[1].Intensity)
	assert.Equal(t, 105.0, rows[1].Min)
	assert.Equal(t, 115.0, rows[1].Max)
	assert.Equal(t, 18.0, rows[2].Y)
	assert.Equal(t, 1.0, rows[2].Correlation)
}

func TestSummaryTable(t *testing.T) {
	stats := SummaryTable(fakeBatch())
	require.Len(t, stats, 3)
	assert.Equal(t, "curvature", stats[0].Measure)
	assert.Equal(t, 2, stats[0].Summary.N)
	assert.InDelta(t, 1.5e-4, stats[0].Summary.Mean, 1e-12)
	assert.Equal(t, 2, stats[1].Summary.N, "intensity pools the correlated set only")
	assert.Equal(t, 110.0, stats[1].Summary.Mean)
	assert.Equal(t, 1, stats[2].Summary.N)
}

func TestCSVWriter(t *testing.T) {
	var meas, summary, frames bytes.Buffer
	require.NoError(t, NewCSVWriter(&meas, &summary, &frames).Write(fakeBatch()))

	records, err := csv.NewReader(&meas).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, MeasurementHeader(), records[0])
	assert.Equal(t, "", records[2][6], "invalid curvature is left empty")
	assert.Equal(t, "false", records[2][7])
	assert.Equal(t, "0.0001", records[1][6])
	assert.Equal(t, []string{"100", "0", "95", "105"}, records[1][8:12], "mean, std, min, max")

	records, err = csv.NewReader(&summary).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, SummaryHeader(), records[0])
	assert.Equal(t, []string{"curvature", "2"}, records[1][:2])

	records, err = csv.NewReader(&frames).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, FrameHeader(), records[0])
	assert.Equal(t, "ok", records[1][1])
	assert.Equal(t, "200000", records[1][6])
	assert.Equal(t, []string{"2", "0", "0", "0.0006"}, records[1][10:14], "convex, concave, flat, thickness_ratio")
	assert.Equal(t, "failed", records[2][1])
	assert.Equal(t, "", records[2][5])
	assert.Equal(t, "", records[2][13])
	assert.Contains(t, records[2][len(records[2])-1], "no cell found")
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteDir(dir, fakeBatch())
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
	assert.Equal(t, filepath.Join(dir, "measurements.csv"), paths[0])

	data, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
}

func TestScatterPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scatter.png")
	require.NoError(t, ScatterPlot(fakeBatch(), path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	p, err := Scatter(fakeBatch())
	require.NoError(t, err)
	assert.Equal(t, "Curvature vs Intensity (r = 1.000)", p.Title.Text)

	empty := &analysis.BatchResult{Frames: []analysis.FrameResult{{Status: analysis.StatusFailed}}}
	err = ScatterPlot(empty, path)
	assert.True(t, errors.Is(err, models.ErrNoValidPoints))
}

func TestProfilePlot(t *testing.T) {
	a, err := analysis.NewAnalyzer(models.DefaultParameters(), analysis.WithMode(analysis.ModeIntensityOnly))
	require.NoError(t, err)
	frame := models.Frame{
		Mask:         synthetic.Disc(256, 256, 128, 128, 80),
		Fluorescence: synthetic.Uniform(256, 256, 50),
	}
	batch, err := a.RunBatch(context.Background(), []models.Frame{frame}, analysis.BatchOptions{Workers: 1})
	require.NoError(t, err)
	require.True(t, batch.Frames[0].OK())

	path := filepath.Join(t.TempDir(), "profile.png")
	require.NoError(t, ProfilePlot(&batch.Frames[0], path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	err = ProfilePlot(&analysis.FrameResult{Status: analysis.StatusFailed}, path)
	assert.True(t, errors.Is(err, models.ErrNoValidPoints))
}

func TestAddReferences(t *testing.T) {
	p := plot.New()
	names := addReferences(p)
	assert.Equal(t, []string{"endocytic_vesicle", "plasma_membrane", "transport_vesicle"}, names)
	assert.True(t, p.Legend.Top)
}
