package analysis

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellcurvature/internal/models"
	"cellcurvature/pkg/synthetic"
)

func TestRunBatchKeepsFrameOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping batch analysis in short mode")
	}

	frames := []models.Frame{
		discFrame(0, 100),
		{Index: 1, Mask: models.NewMask(256, 256), Fluorescence: synthetic.Uniform(256, 256, 100)},
		discFrame(2, 150),
		discFrame(3, 120),
	}

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.InfoLevel)

	var calls []int
	a := newAnalyzer(t, WithLogger(logger))
	batch, err := a.RunBatch(context.Background(), frames, BatchOptions{
		Workers: 2,
		Progress: func(completed, total int, message string) {
			assert.Equal(t, 4, total)
			assert.NotEmpty(t, message)
			calls = append(calls, completed)
		},
	})
	require.NoError(t, err)
	require.NoError(t, batch.Err)
	require.Len(t, batch.Frames, 4)

	assert.Equal(t, []int{1, 2, 3, 4}, calls)
	assert.Equal(t, 3, batch.Succeeded())

	for i, f := range batch.Frames {
		assert.Equal(t, i, f.Index)
	}
	assert.Equal(t, StatusFailed, batch.Frames[1].Status)
	assert.True(t, errors.Is(batch.Frames[1].Err, models.ErrNoCellFound))

	// the failed frame leaves its neighbours intact
	assert.Equal(t, 100.0, batch.Frames[0].Summary.Intensity.Mean)
	assert.Equal(t, 150.0, batch.Frames[2].Summary.Intensity.Mean)
	assert.Equal(t, 120.0, batch.Frames[3].Summary.Intensity.Mean)
	assert.Equal(t, batch.Frames[0].Indices(), batch.Frames[2].Indices())

	failed := batch.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Index)

	stats := batch.FrameStats()
	require.Len(t, stats, 3)
	assert.Equal(t, 40, stats[0].Valid)
	assert.Equal(t, 40, stats[0].Requested)

	assert.Contains(t, buf.String(), "Batch complete")
	assert.Contains(t, buf.String(), "Frame failed")
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames := []models.Frame{discFrame(0, 100), discFrame(1, 100)}
	batch, err := newAnalyzer(t).RunBatch(ctx, frames, BatchOptions{Workers: 1})
	require.NoError(t, err)
	assert.True(t, errors.Is(batch.Err, context.Canceled))
	for _, f := range batch.Frames {
		assert.Equal(t, StatusCancelled, f.Status)
		assert.True(t, errors.Is(f.Err, context.Canceled))
	}
	assert.Equal(t, 0, batch.Succeeded())
}

func TestRunBatchCancelMidway(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping batch analysis in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make([]models.Frame, 6)
	for i := range frames {
		frames[i] = discFrame(i, 100)
	}
	batch, err := newAnalyzer(t).RunBatch(ctx, frames, BatchOptions{
		Workers: 1,
		Progress: func(completed, total int, message string) {
			if completed == 1 {
				cancel()
			}
		},
	})
	require.NoError(t, err)

	// the first frame finished; a frame already handed to the worker may
	// also finish, the rest never start
	assert.True(t, batch.Frames[0].OK())
	assert.Less(t, batch.Succeeded(), len(frames))
	assert.True(t, errors.Is(batch.Err, context.Canceled))
	assert.Equal(t, StatusCancelled, batch.Frames[5].Status)
}

func TestRunBatchDimensionMismatch(t *testing.T) {
	frames := []models.Frame{
		discFrame(0, 100),
		{Index: 1, Mask: models.NewMask(256, 256), Fluorescence: synthetic.Uniform(128, 256, 1)},
	}
	batch, err := newAnalyzer(t).RunBatch(context.Background(), frames, BatchOptions{})
	assert.Nil(t, batch)
	assert.True(t, errors.Is(err, models.ErrDimensionMismatch))
}

func TestRunBatchEmpty(t *testing.T) {
	batch, err := newAnalyzer(t).RunBatch(context.Background(), nil, BatchOptions{})
	require.NoError(t, err)
	assert.Empty(t, batch.Frames)
	assert.NoError(t, batch.Err)
}
