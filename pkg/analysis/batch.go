package analysis

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"cellcurvature/internal/models"
	"cellcurvature/pkg/statistics"
)

// ProgressCallback is a function that reports batch progress
type ProgressCallback func(completed, total int, message string)

// BatchOptions configures RunBatch.
type BatchOptions struct {
	// Workers is the number of frames analysed concurrently; values below 1
	// use the number of CPUs
	Workers int

	// Progress is called from the collecting goroutine after each frame
	Progress ProgressCallback
}

// BatchResult holds one slot per input frame, in input order.
type BatchResult struct {
	Frames []FrameResult

	// Err is the context error when the batch was cancelled
	Err error
}

// Succeeded returns the number of frames analysed successfully.
func (b *BatchResult) Succeeded() int {
	n := 0
	for i := range b.Frames {
		if b.Frames[i].OK() {
			n++
		}
	}
	return n
}

// Failed returns the results of frames that failed.
func (b *BatchResult) Failed() []FrameResult {
	var out []FrameResult
	for _, f := range b.Frames {
		if f.Status == StatusFailed {
			out = append(out, f)
		}
	}
	return out
}

// FrameStats condenses the batch for statistics.FlagOutliers.
func (b *BatchResult) FrameStats() []statistics.FrameStats {
	out := make([]statistics.FrameStats, 0, len(b.Frames))
	for _, f := range b.Frames {
		if !f.OK() {
			continue
		}
		valid := f.Summary.Sampled
		if f.Mode.curvature() {
			valid = f.Summary.ValidCurvature
		}
		out = append(out, statistics.FrameStats{
			Index:     f.Index,
			Mean:      f.Summary.Intensity.Mean,
			Valid:     valid,
			Requested: f.Summary.Requested,
			Saturated: f.Summary.Debug.Saturated,
		})
	}
	return out
}

// RunBatch analyses frames concurrently. Every frame is checked for matching
// dimensions before any work starts. Each result lands in the slot of its
// input position, so no merge step is needed. A failed frame is recorded and
// never stops the batch.
//
// Cancellation is checked between frames: frames already being analysed
// complete, frames not yet started are marked StatusCancelled.
func (a *Analyzer) RunBatch(ctx context.Context, frames []models.Frame, opts BatchOptions) (*BatchResult, error) {
	for _, f := range frames {
		if err := f.CheckDimensions(); err != nil {
			return nil, err
		}
	}

	out := &BatchResult{Frames: make([]FrameResult, len(frames))}
	for i, f := range frames {
		out.Frames[i] = FrameResult{Index: f.Index, Status: StatusCancelled, Mode: a.mode}
	}
	if len(frames) == 0 {
		return out, nil
	}

	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(frames))

	a.logger.WithFields(logrus.Fields{
		"frames":  len(frames),
		"workers": workers,
		"mode":    a.mode.String(),
	}).Info("Starting batch")

	type processingResult struct {
		slot   int
		result FrameResult
	}
	jobs := make(chan int)
	resultChan := make(chan processingResult)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for slot := range jobs {
				resultChan <- processingResult{slot: slot, result: a.AnalyzeFrame(frames[slot])}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for slot := range frames {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- slot:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	completed := 0
	for res := range resultChan {
		out.Frames[res.slot] = res.result
		completed++
		if opts.Progress != nil {
			msg := fmt.Sprintf("frame %d %s", res.result.Index, res.result.Status)
			opts.Progress(completed, len(frames), msg)
		}
	}

	if err := ctx.Err(); err != nil && completed < len(frames) {
		out.Err = err
		for i := range out.Frames {
			if out.Frames[i].Status == StatusCancelled {
				out.Frames[i].Err = err
			}
		}
		a.logger.WithFields(logrus.Fields{
			"completed": completed,
			"frames":    len(frames),
		}).Warn("Batch cancelled")
		return out, nil
	}

	a.logger.WithFields(logrus.Fields{
		"succeeded": out.Succeeded(),
		"failed":    len(out.Failed()),
	}).Info("Batch complete")
	return out, nil
}
