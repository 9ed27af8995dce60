package image

import (
	stdimage "image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLuminanceBounds(t *testing.T) {
	var hist [256]float64
	hist[50] = 0.5
	hist[200] = 0.5
	lo, hi := luminanceBounds(hist, normalizeLow, normalizeHigh)
	assert.Equal(t, 50, lo)
	assert.Equal(t, 200, hi)
}

func TestNormalizeContrastStretchesRange(t *testing.T) {
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, 100, 1))
	for x := 0; x < 100; x++ {
		v := uint8(100 + x/2)
		img.SetNRGBA(x, 0, color.NRGBA{R: v, G: v, B: v, A: 255})
	}

	out := normalizeContrast(img)
	first := out.NRGBAAt(0, 0)
	last := out.NRGBAAt(99, 0)
	assert.Equal(t, uint8(0), first.R)
	assert.Equal(t, uint8(255), last.R)
	assert.Equal(t, uint8(255), last.A)
}

func TestNormalizeContrastLeavesFullRangeAlone(t *testing.T) {
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	assert.Same(t, img, normalizeContrast(img))
}

func TestEnhanceKeepsBounds(t *testing.T) {
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, 30, 20))
	out := enhance(img)
	assert.Equal(t, 30, out.Bounds().Dx())
	assert.Equal(t, 20, out.Bounds().Dy())
}
