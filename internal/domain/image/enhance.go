package image

import (
	stdimage "image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	sharpenSigma  = 0.5
	normalizeLow  = 0.01
	normalizeHigh = 0.99
)

// enhance applies a light sharpen then stretches luminance so the 1st and
// 99th percentiles land on black and white.
func enhance(img stdimage.Image) *stdimage.NRGBA {
	sharpened := imaging.Sharpen(img, sharpenSigma)
	return normalizeContrast(sharpened)
}

func normalizeContrast(img *stdimage.NRGBA) *stdimage.NRGBA {
	lo, hi := luminanceBounds(imaging.Histogram(img), normalizeLow, normalizeHigh)
	if hi <= lo || (lo == 0 && hi == 255) {
		return img
	}

	scale := 255.0 / float64(hi-lo)
	var lut [256]uint8
	for i := range lut {
		v := (float64(i) - float64(lo)) * scale
		switch {
		case v < 0:
			lut[i] = 0
		case v > 255:
			lut[i] = 255
		default:
			lut[i] = uint8(v + 0.5)
		}
	}

	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
}

// luminanceBounds returns the histogram bins at the given cumulative fractions.
func luminanceBounds(hist [256]float64, low, high float64) (int, int) {
	lo, hi := 0, 255
	var acc float64
	foundLo := false
	for i, v := range hist {
		acc += v
		if !foundLo && acc >= low {
			lo = i
			foundLo = true
		}
		if acc >= high {
			hi = i
			break
		}
	}
	return lo, hi
}
