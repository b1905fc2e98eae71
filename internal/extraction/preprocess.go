package extraction

import (
	"image"

	"github.com/disintegration/imaging"
)

// Preprocess prepares a rendered page for recognition: grayscale, a contrast
// boost and light sharpening.
func Preprocess(img image.Image) image.Image {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 20)
	out = imaging.Sharpen(out, 1.0)
	return out
}
