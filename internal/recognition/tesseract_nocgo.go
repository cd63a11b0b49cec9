//go:build !cgo

package recognition

import (
	"context"
	"image"
)

// DefaultLanguages matches the cgo build so configuration stays portable.
var DefaultLanguages = []string{"eng", "hin"}

// TesseractConfig configures NewTesseract.
type TesseractConfig struct {
	Languages      []string
	TessdataPrefix string
}

// Tesseract is not available without cgo.
type Tesseract struct{}

// NewTesseract always fails with ErrUnavailable in builds without cgo.
func NewTesseract(TesseractConfig) (*Tesseract, error) {
	return nil, ErrUnavailable
}

func (*Tesseract) Recognize(context.Context, image.Image) (string, error) {
	return "", ErrUnavailable
}

func (*Tesseract) Languages() []string { return nil }

func (*Tesseract) Close() error { return nil }

// EngineInfo describes the compiled-in OCR backend.
func EngineInfo() Info {
	return Info{
		Available: false,
		Backend:   "none (built without cgo)",
		Error:     ErrUnavailable.Error(),
	}
}
