// Package normals resolves the inward-pointing unit normal at a contour
// index by probing the cell mask on both sides of the boundary.
package normals

import (
	"errors"
	"fmt"

	"cellcurvature/internal/models"
)

// ErrZeroTangent is returned when the tangent chord has no length.
var ErrZeroTangent = errors.New("zero-length tangent")

// Method records which rule decided the normal orientation.
type Method string

const (
	// MethodSingleStep means exactly one candidate's test point was inside
	MethodSingleStep Method = "single-step"

	// MethodVote means a candidate won the multi-distance interior vote
	MethodVote Method = "vote"

	// MethodFallback means neither rule decided and the candidate was kept
	// unless its own test point was outside
	MethodFallback Method = "fallback"
)

// Normal is a resolved inward normal.
type Normal struct {
	// Vector is the unit inward normal
	Vector models.Point

	// Tangent is the unit chord direction of the edge segment
	Tangent models.Point

	// Method is the rule that fixed the orientation
	Method Method
}

// Resolver decides normal orientation. The zero value is not usable; start
// from DefaultResolver or FromParameters.
type Resolver struct {
	// TestDistance is the single-step probe distance in pixels
	TestDistance float64

	// ProbeDistances are the distances used by the interior vote
	ProbeDistances []float64

	// VoteRatio is the fraction of probes that must be inside to win the vote
	VoteRatio float64
}

// DefaultResolver probes 5 px for the single step and votes over
// 2, 4, 6, 8 and 10 px with a 60% quorum.
func DefaultResolver() Resolver {
	return Resolver{
		TestDistance:   5,
		ProbeDistances: []float64{2, 4, 6, 8, 10},
		VoteRatio:      0.6,
	}
}

// FromParameters builds a Resolver from analysis parameters.
func FromParameters(p models.AnalysisParameters) Resolver {
	return Resolver{
		TestDistance:   p.NormalTestDistance,
		ProbeDistances: p.NormalProbeDistances,
		VoteRatio:      p.NormalVoteRatio,
	}
}

// Resolve returns the inward normal at index. The tangent is the chord across
// the edgeSegment-point window centred on index; the candidate normal is the
// tangent rotated by 90 degrees.
//
// Orientation is decided in three steps:
//  1. single step: if exactly one of the two candidates lands inside the
//     mask at TestDistance, take it;
//  2. vote: otherwise take a candidate for which more than VoteRatio of the
//     probe points are inside;
//  3. fallback: otherwise flip the candidate only if its own test point is
//     outside.
func (r Resolver) Resolve(c models.Contour, index, edgeSegment int, mask models.Mask) (Normal, error) {
	window := c.Window(index, edgeSegment)
	chord := c[window[len(window)-1]].Sub(c[window[0]])
	tangent, ok := chord.Normalize()
	if !ok {
		return Normal{}, fmt.Errorf("index %d: %w", index, ErrZeroTangent)
	}

	p := c.At(index)
	candidate := tangent.Perp()
	opposite := candidate.Neg()

	forwardIn := mask.Inside(p.Add(candidate.Scale(r.TestDistance)))
	backwardIn := mask.Inside(p.Add(opposite.Scale(r.TestDistance)))

	switch {
	case forwardIn && !backwardIn:
		return Normal{Vector: candidate, Tangent: tangent, Method: MethodSingleStep}, nil
	case backwardIn && !forwardIn:
		return Normal{Vector: opposite, Tangent: tangent, Method: MethodSingleStep}, nil
	}

	forwardRatio := r.interiorRatio(mask, p, candidate)
	backwardRatio := r.interiorRatio(mask, p, opposite)
	switch {
	case forwardRatio > r.VoteRatio && forwardRatio >= backwardRatio:
		return Normal{Vector: candidate, Tangent: tangent, Method: MethodVote}, nil
	case backwardRatio > r.VoteRatio:
		return Normal{Vector: opposite, Tangent: tangent, Method: MethodVote}, nil
	}

	v := candidate
	if !forwardIn {
		v = opposite
	}
	return Normal{Vector: v, Tangent: tangent, Method: MethodFallback}, nil
}

// interiorRatio is the fraction of probe points p + dir*d inside the mask.
func (r Resolver) interiorRatio(mask models.Mask, p, dir models.Point) float64 {
	if len(r.ProbeDistances) == 0 {
		return 0
	}
	inside := 0
	for _, d := range r.ProbeDistances {
		if mask.Inside(p.Add(dir.Scale(d))) {
			inside++
		}
	}
	return float64(inside) / float64(len(r.ProbeDistances))
}
