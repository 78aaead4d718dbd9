package models

import "errors"

// Failure taxonomy shared by every stage. Callers branch with errors.Is.
var (
	// ErrNoCellFound means no connected component survived the size filter.
	// Fatal for a single frame, skipped in batch mode.
	ErrNoCellFound = errors.New("no cell found")

	// ErrDegenerateFit means the local circle fit was unstable. The point is
	// marked invalid and the frame continues.
	ErrDegenerateFit = errors.New("degenerate circle fit")

	// ErrSamplingOutOfBounds means a window or border check left the image.
	ErrSamplingOutOfBounds = errors.New("sampling window out of bounds")

	// ErrInsufficientInteriorOverlap means a window did not cover enough of
	// the cell interior.
	ErrInsufficientInteriorOverlap = errors.New("insufficient interior overlap")

	// ErrDimensionMismatch means mask and fluorescence shapes disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNoValidPoints means every sample point was rejected.
	ErrNoValidPoints = errors.New("no valid points")

	// ErrInvalidContour means a contour broke the ≥3 points / no duplicate
	// consecutive points invariant.
	ErrInvalidContour = errors.New("invalid contour")

	// ErrInvalidParameters means AnalysisParameters failed validation.
	ErrInvalidParameters = errors.New("invalid analysis parameters")
)
