package imaging

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// Orient rotates img clockwise by degrees so that a frame captured with the
// given rotation metadata comes out upright. Only multiples of 90 are valid;
// negative values and values past 360 are normalised.
func Orient(img image.Image, degrees int) (image.Image, error) {
	switch normalizeRotation(degrees) {
	case 0:
		return img, nil
	case 90:
		// imaging rotates counter-clockwise.
		return imaging.Rotate270(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate90(img), nil
	default:
		return nil, fmt.Errorf("unsupported rotation %d: must be a multiple of 90", degrees)
	}
}

func normalizeRotation(degrees int) int {
	d := degrees % 360
	if d < 0 {
		d += 360
	}
	return d
}

// PrepareOptions tunes PrepareForOCR.
type PrepareOptions struct {
	// Contrast is the bild contrast change in [-1, 1]. Zero leaves contrast alone.
	Contrast float64

	// MinHeight upscales frames shorter than this many pixels. Zero disables it.
	MinHeight int
}

// DefaultPrepareOptions are tuned for phone-camera sized frames of print.
func DefaultPrepareOptions() PrepareOptions {
	return PrepareOptions{
		Contrast:  0.3,
		MinHeight: 480,
	}
}

// PrepareForOCR converts a frame to grayscale, raises its contrast and
// upscales small frames. Tesseract copes poorly with colour noise and with
// glyphs only a few pixels tall.
func PrepareForOCR(img image.Image, opts PrepareOptions) image.Image {
	var out image.Image = effect.Grayscale(img)
	if opts.Contrast != 0 {
		out = adjust.Contrast(out, opts.Contrast)
	}

	h := out.Bounds().Dy()
	if opts.MinHeight > 0 && h > 0 && h < opts.MinHeight {
		out = imaging.Resize(out, 0, opts.MinHeight, imaging.Lanczos)
	}
	return out
}

// CropRect extracts r from img. r is clipped to the image bounds.
func CropRect(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return img
	}
	return imaging.Crop(img, r)
}

// Thumbnail scales img to fit inside width x height, preserving aspect ratio.
func Thumbnail(img image.Image, width, height int) *image.NRGBA {
	return imaging.Fit(img, width, height, imaging.Box)
}
