package detector

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// letterbox records how an image was fitted into the square model input
// so detections can be mapped back to original pixel space.
type letterbox struct {
	scale float64
	padX  int
	padY  int
}

// prepareInput letterboxes img into a size×size canvas and writes the
// normalized CHW float buffer into dst, which must hold 3*size*size
// values. Padding uses the neutral gray YOLO models are trained with.
func prepareInput(img image.Image, size int, dst []float32) letterbox {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale := float64(size) / float64(w)
	if s := float64(size) / float64(h); s < scale {
		scale = s
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	resized := imaging.Resize(img, newW, newH, imaging.Linear)
	canvas := imaging.New(size, size, color.NRGBA{R: 114, G: 114, B: 114, A: 255})
	canvas = imaging.PasteCenter(canvas, resized)

	channelSize := size * size
	for y := 0; y < size; y++ {
		offset := y * size
		for x := 0; x < size; x++ {
			i := offset + x
			r, g, b, _ := canvas.At(x, y).RGBA()
			dst[i] = float32(r>>8) / 255.0
			dst[channelSize+i] = float32(g>>8) / 255.0
			dst[channelSize*2+i] = float32(b>>8) / 255.0
		}
	}

	return letterbox{
		scale: scale,
		padX:  (size - newW) / 2,
		padY:  (size - newH) / 2,
	}
}
