package sampling

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellcurvature/internal/models"
	"cellcurvature/pkg/contour"
	"cellcurvature/pkg/normals"
	"cellcurvature/pkg/smoothing"
	"cellcurvature/pkg/synthetic"
)

// scenario returns the conditioned contour and mask of a disc of radius 80
// in a 256x256 frame, with the parameters used throughout these tests.
func scenario(t *testing.T) (models.Contour, models.Mask, models.AnalysisParameters) {
	t.Helper()
	mask := synthetic.Disc(256, 256, 128, 128, 80)
	res, err := contour.Extract(mask, 100)
	require.NoError(t, err)

	p := models.DefaultParameters()
	p.NSamples = 40
	p.SegmentLength = 9
	p.VectorWidth = 5
	p.VectorDepth = 10
	p.InteriorThreshold = 50

	c, err := smoothing.Condition(res.Contour, p)
	require.NoError(t, err)
	return c, res.Cell, p
}

func TestCandidates(t *testing.T) {
	idx := Candidates(128, 40)
	require.Len(t, idx, 40)
	assert.Equal(t, 0, idx[0])
	assert.Equal(t, 127, idx[39])
	for i := 1; i < len(idx); i++ {
		assert.Greater(t, idx[i], idx[i-1])
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, Candidates(5, 40))
	assert.Equal(t, []int{0, 3, 6, 9}, Candidates(10, 4))
	assert.Equal(t, []int{0}, Candidates(10, 1))
	assert.Nil(t, Candidates(0, 10))
}

func TestWindowGeometry(t *testing.T) {
	corners := Window(models.Pt(10, 10), models.Pt(0, 1), 4, 6)
	assert.Equal(t, [4]models.Point{{12, 10}, {8, 10}, {8, 16}, {12, 16}}, corners)

	pixels := Rasterize(corners, 64, 64)
	assert.Len(t, pixels, 35, "boundary pixels are included")

	mask := models.NewMask(64, 64)
	for y := 13; y < 64; y++ {
		for x := 0; x < 64; x++ {
			mask.Set(x, y, true)
		}
	}
	assert.InDelta(t, 100*4.0/7.0, InteriorOverlap(pixels, mask), 1e-9)
	assert.Equal(t, 0.0, InteriorOverlap(nil, mask))
}

func TestRotatedWindowArea(t *testing.T) {
	inward := models.Pt(1, 1).Scale(1 / math.Sqrt2)
	corners := Window(models.Pt(30, 30), inward, 5, 10)
	pixels := Rasterize(corners, 64, 64)
	assert.InDelta(t, 50, len(pixels), 12)

	// The anchor sits at the middle of the outer edge
	mid := corners[0].Add(corners[1]).Scale(0.5)
	assert.InDelta(t, 30, mid.X, 1e-9)
	assert.InDelta(t, 30, mid.Y, 1e-9)
}

func TestSampleDisc(t *testing.T) {
	c, mask, p := scenario(t)
	plan, err := New(p).Sample(c, mask)
	require.NoError(t, err)

	assert.Equal(t, 40, plan.Requested)
	assert.Len(t, plan.Points, 40)
	assert.Equal(t, 0, plan.Rejected())
	assert.Equal(t, Candidates(len(c), 40), plan.Indices())

	for _, pt := range plan.Points {
		assert.Equal(t, c[pt.Index], pt.Position)
		assert.InDelta(t, 1.0, pt.Normal.Vector.Norm(), 1e-9)
		assert.True(t, mask.Inside(pt.Position.Add(pt.Normal.Vector.Scale(5))))
		assert.GreaterOrEqual(t, pt.InteriorOverlap, p.InteriorThreshold)
		assert.NotEmpty(t, pt.Pixels)
		require.Len(t, pt.SegmentIndices, 9)
		assert.Equal(t, pt.Index, pt.SegmentIndices[4])
		for _, corner := range pt.Window {
			assert.True(t, corner.X >= 0 && corner.Y >= 0 && corner.X < 256 && corner.Y < 256)
		}
	}
}

func TestRasterizeMatchesMaskPixels(t *testing.T) {
	inward := models.Pt(0.6, 0.8)
	corners := Window(models.Pt(30.3, 40.7), inward, 5, 10)
	pixels := Rasterize(corners, 64, 64)
	require.NotEmpty(t, pixels)

	mask := models.NewMask(64, 64)
	for _, i := range pixels {
		mask.Pix[i] = true
	}
	for _, i := range pixels {
		centre := models.Pt(float64(i%64), float64(i/64))
		assert.True(t, mask.Inside(centre), "pixel %d", i)
		assert.True(t, mask.Inside(centre.Add(models.Pt(-0.4, -0.4))), "pixel %d", i)
	}
	assert.True(t, mask.Inside(models.Pt(30.3, 40.7).Add(inward.Scale(5))))
	assert.Equal(t, 100.0, InteriorOverlap(pixels, mask))
}

func TestSampleBorderRejections(t *testing.T) {
	mask := synthetic.Disc(256, 256, 40, 128, 30)
	c := synthetic.Circle(40, 128, 29).Outline(120)
	p := models.DefaultParameters()
	p.NSamples = 60

	plan, err := New(p).Sample(c, mask)
	require.NoError(t, err)
	assert.Greater(t, plan.Rejections[ReasonBorder], 0)
	assert.Equal(t, plan.Requested, len(plan.Points)+plan.Rejected())
	for _, pt := range plan.Points {
		assert.GreaterOrEqual(t, pt.Position.X, p.BorderMargin)
	}
}

func TestSampleNoValidPoints(t *testing.T) {
	c, mask, p := scenario(t)
	p.BorderMargin = 200

	plan, err := New(p).Sample(c, mask)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNoValidPoints))
	require.NotNil(t, plan)
	assert.Equal(t, plan.Requested, plan.Rejections[ReasonBorder])
	assert.Empty(t, plan.Indices())
}

func TestSampleLowOverlap(t *testing.T) {
	mask := synthetic.Rect(256, 256, 40, 100, 200, 105)
	res, err := contour.Extract(mask, 10)
	require.NoError(t, err)

	p := models.DefaultParameters()
	p.VectorDepth = 10
	p.InteriorThreshold = 80

	plan, _ := New(p).Sample(res.Contour, mask)
	require.NotNil(t, plan)
	assert.Greater(t, plan.Rejections[ReasonLowOverlap], 0)
	for _, pt := range plan.Points {
		assert.GreaterOrEqual(t, pt.InteriorOverlap, 80.0)
	}
}

func TestEvaluateWindowOutOfImage(t *testing.T) {
	var c models.Contour
	for x := 40; x <= 60; x++ {
		c = append(c, models.Pt(float64(x), 5))
	}
	c = append(c, models.Pt(50, 1))

	mask := models.NewMask(100, 100)
	for y := 0; y <= 5; y++ {
		for x := 0; x < 100; x++ {
			mask.Set(x, y, true)
		}
	}

	p := models.DefaultParameters()
	p.BorderMargin = 0
	_, reason, err := New(p).Evaluate(c, 10, mask)
	assert.Equal(t, ReasonOutOfBounds, reason)
	assert.True(t, errors.Is(err, models.ErrSamplingOutOfBounds))
}

func TestSampleNoNormal(t *testing.T) {
	mask := synthetic.Disc(256, 256, 128, 128, 40)
	c := synthetic.Circle(128, 128, 40).Outline(10)

	plan, err := New(models.DefaultParameters()).Sample(c, mask)
	assert.True(t, errors.Is(err, models.ErrNoValidPoints))
	assert.Equal(t, 10, plan.Rejections[ReasonNoNormal])
	assert.Equal(t, []Reason{ReasonNoNormal}, plan.Reasons())
}

func TestSampleInvalidContour(t *testing.T) {
	_, err := New(models.DefaultParameters()).Sample(models.Contour{{0, 0}}, models.NewMask(4, 4))
	assert.True(t, errors.Is(err, models.ErrInvalidContour))
}

func TestReasonErr(t *testing.T) {
	assert.Equal(t, models.ErrInsufficientInteriorOverlap, ReasonLowOverlap.Err())
	assert.Equal(t, models.ErrSamplingOutOfBounds, ReasonBorder.Err())
	assert.Equal(t, models.ErrSamplingOutOfBounds, ReasonOutOfBounds.Err())
	assert.Equal(t, normals.ErrZeroTangent, ReasonNoNormal.Err())
}
