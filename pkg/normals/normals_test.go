package normals

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellcurvature/internal/models"
	"cellcurvature/pkg/contour"
	"cellcurvature/pkg/smoothing"
	"cellcurvature/pkg/synthetic"
)

// horizontal returns a contour whose index 10 sits at (50, 30) on a
// horizontal run, so the candidate normal is (0, 1).
func horizontal() models.Contour {
	var c models.Contour
	for x := 40; x <= 60; x++ {
		c = append(c, models.Pt(float64(x), 30))
	}
	return append(c, models.Pt(50, 90))
}

// column returns a 100x100 mask with only the given rows of column 50 set.
func column(rows ...int) models.Mask {
	m := models.NewMask(100, 100)
	for _, y := range rows {
		m.Set(50, y, true)
	}
	return m
}

func TestResolveDisc(t *testing.T) {
	mask := synthetic.Disc(256, 256, 128, 128, 80)
	res, err := contour.Extract(mask, 100)
	require.NoError(t, err)

	params := models.DefaultParameters()
	c, err := smoothing.Condition(res.Contour, params)
	require.NoError(t, err)

	r := DefaultResolver()
	for i := range c {
		n, err := r.Resolve(c, i, params.EdgeSegment, mask)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, n.Vector.Norm(), 1e-9)
		assert.True(t, mask.Inside(c[i].Add(n.Vector.Scale(5))), "index %d", i)
		assert.Greater(t, n.Vector.Dot(models.Pt(128, 128).Sub(c[i])), 0.0, "index %d", i)
		assert.Equal(t, MethodSingleStep, n.Method)
	}
}

func TestResolveIndependentOfTraversal(t *testing.T) {
	mask := synthetic.Disc(128, 128, 64, 64, 40)
	c := synthetic.Circle(64, 64, 40).Outline(100)
	rev := c.Clone()
	slices.Reverse(rev)

	r := DefaultResolver()
	for i := range c {
		a, err := r.Resolve(c, i, 10, mask)
		require.NoError(t, err)
		b, err := r.Resolve(rev, len(c)-1-i, 10, mask)
		require.NoError(t, err)
		assert.InDelta(t, a.Vector.X, b.Vector.X, 1e-9)
		assert.InDelta(t, a.Vector.Y, b.Vector.Y, 1e-9)
	}
}

func TestResolveOrientationRules(t *testing.T) {
	down := models.Pt(0, 1)
	up := models.Pt(0, -1)

	tests := []struct {
		name   string
		mask   models.Mask
		want   models.Point
		method Method
	}{
		{
			name:   "single step below",
			mask:   column(35),
			want:   down,
			method: MethodSingleStep,
		},
		{
			name:   "single step above",
			mask:   column(25),
			want:   up,
			method: MethodSingleStep,
		},
		{
			// both test points inside; 4 of 5 probes below, 2 of 5 above
			name:   "vote below",
			mask:   column(25, 35, 32, 36, 38, 40, 28, 26),
			want:   down,
			method: MethodVote,
		},
		{
			// both test points outside; 4 of 5 probes above
			name:   "vote above",
			mask:   column(28, 26, 24, 22),
			want:   up,
			method: MethodVote,
		},
		{
			// exactly 60% is not a quorum; both test points inside keeps the candidate
			name:   "fallback keeps",
			mask:   column(25, 35, 32, 34, 36),
			want:   down,
			method: MethodFallback,
		},
		{
			// nothing inside: candidate test point is outside so it is flipped
			name:   "fallback flips",
			mask:   column(),
			want:   up,
			method: MethodFallback,
		},
	}

	c := horizontal()
	r := DefaultResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := r.Resolve(c, 10, 10, tt.mask)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.X, n.Vector.X, 1e-12)
			assert.InDelta(t, tt.want.Y, n.Vector.Y, 1e-12)
			assert.Equal(t, tt.method, n.Method)
			assert.Equal(t, models.Pt(1, 0), n.Tangent)
		})
	}
}

func TestResolveVoteRatioConfigurable(t *testing.T) {
	c := horizontal()
	mask := column(25, 35, 32, 34, 36)

	r := DefaultResolver()
	r.VoteRatio = 0.5
	n, err := r.Resolve(c, 10, 10, mask)
	require.NoError(t, err)
	assert.Equal(t, MethodVote, n.Method)

	p := models.DefaultParameters()
	p.NormalVoteRatio = 0.5
	assert.Equal(t, r, FromParameters(p))
}

func TestResolveZeroTangent(t *testing.T) {
	c := synthetic.Circle(50, 50, 20).Outline(10)
	_, err := DefaultResolver().Resolve(c, 3, 10, synthetic.Disc(100, 100, 50, 50, 20))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrZeroTangent))
}
