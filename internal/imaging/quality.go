package imaging

import "math"

// QualityScore is the composite capture-quality metric. Every field is
// bounded to [0,100]; degenerate inputs (all-black, all-white, empty)
// produce low scores rather than errors.
type QualityScore struct {
	Sharpness  float64 `json:"sharpness"`
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Overall    int     `json:"overall"`
}

// ScoreQuality computes sharpness, brightness, contrast, and the weighted
// overall score for a buffer. Callers should pass the border-detection crop
// when one is available and the full frame otherwise.
func ScoreQuality(buf *PixelBuffer) QualityScore {
	n := buf.Width * buf.Height
	if n == 0 {
		return QualityScore{}
	}

	lum := buf.Luminance()

	var sum float64
	for _, v := range lum {
		sum += v
	}
	mean := sum / float64(n)

	brightness := clamp(100-math.Abs(mean-128)*1.5, 0, 100)

	var variance float64
	for _, v := range lum {
		d := v - mean
		variance += d * d
	}
	stdDev := math.Sqrt(variance / float64(n))
	contrast := math.Min(100, stdDev*1.5)

	sharpness := 0.0
	if buf.Width >= 3 && buf.Height >= 3 {
		w := buf.Width
		var lapSum float64
		var count int
		for y := 1; y < buf.Height-1; y++ {
			for x := 1; x < w-1; x++ {
				lap := 4*lum[y*w+x] - lum[y*w+x-1] - lum[y*w+x+1] - lum[(y-1)*w+x] - lum[(y+1)*w+x]
				lapSum += lap * lap
				count++
			}
		}
		lapVariance := lapSum / float64(count)
		sharpness = math.Min(100, lapVariance/10)
	}

	overall := int(math.Round(0.4*sharpness + 0.3*brightness + 0.3*contrast))

	return QualityScore{
		Sharpness:  sharpness,
		Brightness: brightness,
		Contrast:   contrast,
		Overall:    overall,
	}
}

// ScoreCapture runs border detection and scores the cropped region when a
// border was found, falling back to the full frame when it was not. The
// fallback is expected behavior for flat or busy frames, not an error.
func ScoreCapture(buf *PixelBuffer) (QualityScore, BorderResult) {
	border := DetectBorder(buf)
	target := buf
	if border.Detected && border.Bounds != nil {
		target = buf.Crop(*border.Bounds)
	}
	return ScoreQuality(target), border
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
