// Package recognition turns camera frames into recognized text.
//
// The Adapter is a camera.Analyzer: it orients each frame using its rotation
// metadata, prepares it for OCR, hands it to a Recognizer and reports the
// plain text through a callback. Failures are logged and the frame is
// dropped; the next frame from the continuous feed replaces it. The frame is
// released on every path.
package recognition

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ironsheep/smart-ocr/internal/camera"
	"github.com/ironsheep/smart-ocr/internal/imaging"
)

// ErrUnavailable is returned when no OCR engine is compiled in or installed.
var ErrUnavailable = errors.New("text recognizer unavailable")

// Recognizer converts an upright image into text.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
	Close() error
}

// Options controls frame preparation ahead of recognition.
type Options struct {
	// CropToText crops frames to the detected print area before OCR.
	CropToText bool

	// MinTextConfidence is the region score used when CropToText is set.
	MinTextConfidence float64

	// Prepare enables grayscale, contrast and upscaling.
	Prepare bool

	PrepareOptions imaging.PrepareOptions
}

// DefaultOptions prepares frames but does not crop them.
func DefaultOptions() Options {
	return Options{
		MinTextConfidence: 0.3,
		Prepare:           true,
		PrepareOptions:    imaging.DefaultPrepareOptions(),
	}
}

// Adapter feeds frames to a Recognizer.
type Adapter struct {
	recognizer Recognizer
	onText     func(text string)
	opts       Options
	log        *log.Logger
}

// NewAdapter creates an adapter that calls onText with the text of every
// successfully recognized frame, including "" when the frame has no text.
// onText runs on the analysis goroutine.
func NewAdapter(r Recognizer, onText func(text string), opts Options, logger *log.Logger) *Adapter {
	return &Adapter{
		recognizer: r,
		onText:     onText,
		opts:       opts,
		log:        logger.WithPrefix("ocr"),
	}
}

var _ camera.Analyzer = (*Adapter)(nil)

// Analyze recognizes one frame.
func (a *Adapter) Analyze(ctx context.Context, f *camera.Frame) {
	defer f.Close()

	if f.Image == nil {
		return
	}

	img, err := imaging.Orient(f.Image, f.Rotation)
	if err != nil {
		a.log.Error("Text recognition failed", "seq", f.Seq, "err", err)
		return
	}
	if a.opts.CropToText {
		if r, ok := imaging.TextBounds(img, a.opts.MinTextConfidence); ok {
			img = imaging.CropRect(img, r)
		}
	}
	if a.opts.Prepare {
		img = imaging.PrepareForOCR(img, a.opts.PrepareOptions)
	}

	text, err := a.recognizer.Recognize(ctx, img)
	if err != nil {
		a.log.Error("Text recognition failed", "seq", f.Seq, "err", err)
		return
	}
	text = strings.TrimSpace(text)
	a.log.Debug("Recognized frame", "seq", f.Seq, "chars", len([]rune(text)))
	a.onText(text)
}

// Unavailable is the Recognizer used when no OCR engine can be loaded.
// Every frame fails with ErrUnavailable and is dropped.
type Unavailable struct{}

func (Unavailable) Recognize(context.Context, image.Image) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) Close() error { return nil }
