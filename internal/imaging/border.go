package imaging

import (
	"math"
	"sort"
)

// BorderResult reports whether a height-dominant rectangular item was found
// in the frame, and where. Bounds is nil when no candidate box was found.
type BorderResult struct {
	Detected   bool  `json:"detected"`
	Confidence int   `json:"confidence"`
	Bounds     *Rect `json:"bounds,omitempty"`
}

const (
	// minDimensionFraction rejects candidate boxes smaller than this share
	// of the corresponding image dimension.
	minDimensionFraction = 0.20

	// Expected aspect band for a height-dominant comic in frame.
	minAspect = 0.5
	maxAspect = 0.9

	// edgePercentile sets the gradient-magnitude threshold.
	edgePercentile = 0.90

	// minDetectConfidence is the floor below which a candidate is not
	// reported as detected even when the aspect band is satisfied.
	minDetectConfidence = 30
)

// DetectBorder runs Sobel edge detection over the buffer and infers the
// bounding box of the photographed item. Border pixels are excluded from
// the gradient pass; the edge threshold is the 90th percentile of all
// interior gradient magnitudes.
func DetectBorder(buf *PixelBuffer) BorderResult {
	w, h := buf.Width, buf.Height
	if w < 3 || h < 3 {
		return BorderResult{}
	}

	lum := buf.Luminance()
	mags := make([]float64, 0, (w-2)*(h-2))
	at := func(x, y int) float64 { return lum[y*w+x] }

	type edgePoint struct{ x, y int }
	var (
		minX, minY = w, h
		maxX, maxY = -1, -1
		edgeCount  int
	)

	// First pass: gradient magnitudes for threshold selection.
	grid := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			m := math.Sqrt(gx*gx + gy*gy)
			grid[y*w+x] = m
			mags = append(mags, m)
		}
	}

	sorted := make([]float64, len(mags))
	copy(sorted, mags)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)) * edgePercentile)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	threshold := sorted[idx]

	// Second pass: bounding box of pixels above the threshold.
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			if grid[y*w+x] <= threshold {
				continue
			}
			edgeCount++
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if edgeCount == 0 || maxX < minX || maxY < minY {
		return BorderResult{}
	}

	box := Rect{X: minX, Y: minY, W: maxX - minX + 1, H: maxY - minY + 1}
	if float64(box.W) < minDimensionFraction*float64(w) || float64(box.H) < minDimensionFraction*float64(h) {
		return BorderResult{}
	}

	aspect := float64(box.W) / float64(box.H)
	accepted := aspect >= minAspect && aspect <= maxAspect

	areaCoverage := float64(box.Area()) / float64(w*h)
	edgeDensity := float64(edgeCount) / float64(w*h)
	confidence := int(math.Round(areaCoverage*100 + edgeDensity*50))
	if confidence > 100 {
		confidence = 100
	}

	return BorderResult{
		Detected:   accepted && confidence > minDetectConfidence,
		Confidence: confidence,
		Bounds:     &box,
	}
}
