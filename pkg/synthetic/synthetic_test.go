package synthetic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisc(t *testing.T) {
	m := Disc(64, 64, 32, 32, 10)
	assert.True(t, m.At(32, 32))
	assert.True(t, m.At(42, 32))
	assert.False(t, m.At(43, 32))
	assert.InDelta(t, math.Pi*100, float64(m.Count()), 20)
}

func TestShapeRadius(t *testing.T) {
	s := Shape{Radius: 50, BlebSize: 10, BlebAngle: math.Pi / 2, BlebWidth: math.Pi / 4}
	assert.InDelta(t, 60, s.RadiusAt(math.Pi/2), 1e-9)
	assert.InDelta(t, 50, s.RadiusAt(0), 1e-9)
	assert.InDelta(t, 50, s.RadiusAt(math.Pi/2+math.Pi/8), 1e-9)

	s.BlebSize = -10
	assert.InDelta(t, 40, s.RadiusAt(math.Pi/2), 1e-9)
}

func TestFillMatchesDisc(t *testing.T) {
	s := Circle(50, 50, 20)
	filled := Fill(s.Outline(720), 100, 100)
	disc := Disc(100, 100, 50, 50, 20)

	diff := 0
	for i := range disc.Pix {
		if disc.Pix[i] != filled.Pix[i] {
			diff++
		}
	}
	// polygon chords cut slightly inside the circle
	assert.Less(t, diff, 20)
}

func TestBlebMaskGrowsOutward(t *testing.T) {
	base := Circle(100, 100, 50).Mask(200, 200)
	bleb := Shape{CenterX: 100, CenterY: 100, Radius: 50, BlebSize: 15, BlebAngle: 0, BlebWidth: math.Pi / 3}.Mask(200, 200)

	assert.False(t, base.At(160, 100))
	assert.True(t, bleb.At(160, 100))
	assert.Greater(t, bleb.Count(), base.Count())
}

func TestAddNoiseDeterministic(t *testing.T) {
	im := Uniform(16, 16, 100)
	a := AddNoise(im, 5, 42)
	b := AddNoise(im, 5, 42)
	assert.Equal(t, a.Pix, b.Pix)
	assert.Equal(t, 100.0, im.Pix[0], "input must not be modified")
}

func TestWithNoise(t *testing.T) {
	frames := BlebStack(2, 64, 64, 15, 5)
	noisy := WithNoise(frames, 3, 7)
	require.Len(t, noisy, 2)
	assert.Equal(t, frames[1].Mask, noisy[1].Mask)
	assert.NotEqual(t, frames[0].Fluorescence.Pix, noisy[0].Fluorescence.Pix)
	assert.NotEqual(t, noisy[0].Fluorescence.Pix[:8], noisy[1].Fluorescence.Pix[:8], "frames draw different noise")
	assert.Equal(t, 100.0, frames[0].Fluorescence.At(0, 32), "input must not be modified")
}

func TestBlebStack(t *testing.T) {
	frames := BlebStack(4, 128, 128, 30, 12)
	require.Len(t, frames, 4)
	for i, f := range frames {
		assert.Equal(t, i, f.Index)
		assert.NoError(t, f.CheckDimensions())
	}
	assert.Greater(t, frames[3].Mask.Count(), frames[0].Mask.Count())
	assert.Equal(t, 100.0, frames[0].Fluorescence.At(0, 64))
}
