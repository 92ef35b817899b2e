package imaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fillRect paints a solid rectangle onto the buffer.
func fillRect(buf *PixelBuffer, x0, y0, x1, y1 int, v uint8) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			buf.SetRGBA(x, y, v, v, v, 255)
		}
	}
}

// lightFrame returns a uniform light-gray buffer.
func lightFrame(w, h int) *PixelBuffer {
	buf := NewPixelBuffer(w, h)
	fillRect(buf, 0, 0, w, h, 220)
	return buf
}

func TestDetectBorder_ComicShapedSubject(t *testing.T) {
	// Dark height-dominant rectangle: 60 wide x 84 tall on a 100x100 frame.
	buf := lightFrame(100, 100)
	fillRect(buf, 20, 8, 80, 92, 30)

	res := DetectBorder(buf)
	require.NotNil(t, res.Bounds)
	assert.True(t, res.Detected)
	assert.Greater(t, res.Confidence, 30)
	// Bounding box should hug the rectangle's edges.
	assert.InDelta(t, 20, res.Bounds.X, 2)
	assert.InDelta(t, 8, res.Bounds.Y, 2)
	assert.InDelta(t, 60, res.Bounds.W, 4)
	assert.InDelta(t, 84, res.Bounds.H, 4)
}

func TestDetectBorder_NarrowBoxRejected(t *testing.T) {
	// Box width is 15% of the image width: rejected outright with zero
	// confidence, whatever the aspect ratio works out to.
	buf := lightFrame(100, 100)
	fillRect(buf, 40, 10, 55, 90, 30)

	res := DetectBorder(buf)
	assert.False(t, res.Detected)
	assert.Equal(t, 0, res.Confidence)
	assert.Nil(t, res.Bounds)
}

func TestDetectBorder_SquareAspectNotAccepted(t *testing.T) {
	// A square subject falls outside the height-dominant aspect band.
	buf := lightFrame(100, 100)
	fillRect(buf, 20, 20, 80, 80, 30)

	res := DetectBorder(buf)
	assert.False(t, res.Detected)
	require.NotNil(t, res.Bounds)
	// Confidence is still computed for diagnostics on aspect rejection.
	assert.Greater(t, res.Confidence, 0)
}

func TestDetectBorder_UniformFrame(t *testing.T) {
	// No edges at all: nothing to detect.
	buf := lightFrame(64, 64)

	res := DetectBorder(buf)
	assert.False(t, res.Detected)
	assert.Equal(t, 0, res.Confidence)
	assert.Nil(t, res.Bounds)
}

func TestDetectBorder_TinyImage(t *testing.T) {
	buf := NewPixelBuffer(2, 2)
	res := DetectBorder(buf)
	assert.False(t, res.Detected)
	assert.Equal(t, 0, res.Confidence)
}

func TestCrop_ClampsToBounds(t *testing.T) {
	buf := lightFrame(10, 10)
	out := buf.Crop(Rect{X: 5, Y: 5, W: 20, H: 20})
	assert.Equal(t, 5, out.Width)
	assert.Equal(t, 5, out.Height)
}

func TestCrop_EmptyIntersection(t *testing.T) {
	buf := lightFrame(10, 10)
	out := buf.Crop(Rect{X: 20, Y: 20, W: 5, H: 5})
	assert.Equal(t, 0, out.Width)
	assert.Equal(t, 0, out.Height)
}
