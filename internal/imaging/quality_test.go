package imaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreQuality_AllBlack(t *testing.T) {
	buf := NewPixelBuffer(32, 32) // zeroed = black

	q := ScoreQuality(buf)
	assert.Equal(t, 0.0, q.Brightness) // |0-128|*1.5 > 100, clamped
	assert.Equal(t, 0.0, q.Contrast)
	assert.Equal(t, 0.0, q.Sharpness)
	assert.Equal(t, 0, q.Overall)
}

func TestScoreQuality_MidGrayUniform(t *testing.T) {
	buf := NewPixelBuffer(32, 32)
	fillRect(buf, 0, 0, 32, 32, 128)

	q := ScoreQuality(buf)
	assert.Equal(t, 100.0, q.Brightness)
	assert.Equal(t, 0.0, q.Contrast)
	assert.Equal(t, 0.0, q.Sharpness)
	assert.Equal(t, 30, q.Overall) // 0.3 * brightness only
}

func TestScoreQuality_CheckerboardIsSharp(t *testing.T) {
	buf := NewPixelBuffer(32, 32)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			buf.SetRGBA(x, y, v, v, v, 255)
		}
	}

	q := ScoreQuality(buf)
	assert.Equal(t, 100.0, q.Sharpness)
	assert.Equal(t, 100.0, q.Contrast)
}

func TestScoreQuality_AlwaysBounded(t *testing.T) {
	cases := []*PixelBuffer{
		NewPixelBuffer(0, 0),
		NewPixelBuffer(1, 1),
		NewPixelBuffer(2, 3),
		lightFrame(16, 16),
		func() *PixelBuffer {
			b := lightFrame(40, 40)
			fillRect(b, 5, 5, 35, 35, 10)
			return b
		}(),
	}

	for _, buf := range cases {
		q := ScoreQuality(buf)
		assert.GreaterOrEqual(t, q.Sharpness, 0.0)
		assert.LessOrEqual(t, q.Sharpness, 100.0)
		assert.GreaterOrEqual(t, q.Brightness, 0.0)
		assert.LessOrEqual(t, q.Brightness, 100.0)
		assert.GreaterOrEqual(t, q.Contrast, 0.0)
		assert.LessOrEqual(t, q.Contrast, 100.0)
		assert.GreaterOrEqual(t, q.Overall, 0)
		assert.LessOrEqual(t, q.Overall, 100)
	}
}

func TestScoreCapture_CropsDetectedBorder(t *testing.T) {
	// Frame with a detectable subject: the crop excludes the light matte,
	// so brightness reflects the dark subject, not the background.
	buf := lightFrame(100, 100)
	fillRect(buf, 20, 8, 80, 92, 40)

	q, border := ScoreCapture(buf)
	assert.True(t, border.Detected)
	full := ScoreQuality(buf)
	assert.NotEqual(t, full.Brightness, q.Brightness)
}

func TestScoreCapture_FallsBackToFullFrame(t *testing.T) {
	buf := lightFrame(64, 64)

	q, border := ScoreCapture(buf)
	assert.False(t, border.Detected)
	assert.Equal(t, ScoreQuality(buf), q)
}
