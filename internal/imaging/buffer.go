// Package imaging implements the deterministic image metrics used to gate
// captures before grading: luminance conversion, Sobel border detection,
// and composite quality scoring. Everything here is pure computation on a
// pixel buffer; no I/O, no external calls.
package imaging

import (
	"image"
)

// PixelBuffer holds one captured photograph as interleaved RGBA samples.
// It is owned by the capture that produced it and consumed once for metrics
// and once for upload; the pipeline does not retain it past the run.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8 // 4 bytes per pixel, RGBA order
}

// NewPixelBuffer allocates a zeroed buffer of the given dimensions.
func NewPixelBuffer(w, h int) *PixelBuffer {
	return &PixelBuffer{Width: w, Height: h, Pix: make([]uint8, w*h*4)}
}

// FromImage converts a decoded image into a PixelBuffer.
func FromImage(img image.Image) *PixelBuffer {
	b := img.Bounds()
	buf := NewPixelBuffer(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			buf.Pix[i] = uint8(r >> 8)
			buf.Pix[i+1] = uint8(g >> 8)
			buf.Pix[i+2] = uint8(bl >> 8)
			buf.Pix[i+3] = uint8(a >> 8)
			i += 4
		}
	}
	return buf
}

// SetRGBA writes one pixel. Out-of-range coordinates are ignored.
func (p *PixelBuffer) SetRGBA(x, y int, r, g, b, a uint8) {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return
	}
	i := (y*p.Width + x) * 4
	p.Pix[i], p.Pix[i+1], p.Pix[i+2], p.Pix[i+3] = r, g, b, a
}

// Crop returns a copy of the rectangle [x, x+w) x [y, y+h), clamped to the
// buffer bounds.
func (p *PixelBuffer) Crop(r Rect) *PixelBuffer {
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.W, p.Width), min(r.Y+r.H, p.Height)
	if x1 <= x0 || y1 <= y0 {
		return NewPixelBuffer(0, 0)
	}
	out := NewPixelBuffer(x1-x0, y1-y0)
	for y := y0; y < y1; y++ {
		src := (y*p.Width + x0) * 4
		dst := (y - y0) * out.Width * 4
		copy(out.Pix[dst:dst+out.Width*4], p.Pix[src:src+out.Width*4])
	}
	return out
}

// Luminance returns the per-pixel luminance plane using the standard
// Rec. 601 weighted sum.
func (p *PixelBuffer) Luminance() []float64 {
	lum := make([]float64, p.Width*p.Height)
	for i := range lum {
		o := i * 4
		lum[i] = 0.299*float64(p.Pix[o]) + 0.587*float64(p.Pix[o+1]) + 0.114*float64(p.Pix[o+2])
	}
	return lum
}

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Area returns W*H.
func (r Rect) Area() int { return r.W * r.H }
