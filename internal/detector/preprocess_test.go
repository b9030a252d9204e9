package detector

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func solidImage(w, h int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestPrepareInputSquareImage(t *testing.T) {
	size := 32
	buf := make([]float32, 3*size*size)

	lb := prepareInput(solidImage(64, 64, color.NRGBA{R: 255, A: 255}), size, buf)

	assert.InDelta(t, 0.5, lb.scale, 1e-9)
	assert.Equal(t, 0, lb.padX)
	assert.Equal(t, 0, lb.padY)

	// Red channel saturated, green and blue empty at the center pixel.
	center := (size/2)*size + size/2
	assert.InDelta(t, 1.0, buf[center], 0.02)
	assert.InDelta(t, 0.0, buf[size*size+center], 0.02)
	assert.InDelta(t, 0.0, buf[2*size*size+center], 0.02)
}

func TestPrepareInputLetterboxPadding(t *testing.T) {
	size := 32
	buf := make([]float32, 3*size*size)

	// A wide image gets vertical padding.
	lb := prepareInput(solidImage(64, 32, color.NRGBA{A: 255}), size, buf)

	assert.InDelta(t, 0.5, lb.scale, 1e-9)
	assert.Equal(t, 0, lb.padX)
	assert.Equal(t, 8, lb.padY)

	// Top rows are pad gray (114/255), center rows are the black image.
	assert.InDelta(t, 114.0/255.0, buf[0], 0.02)
	center := (size/2)*size + size/2
	assert.InDelta(t, 0.0, buf[center], 0.02)
}
