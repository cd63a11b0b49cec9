//go:build cgo

package recognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguages covers Latin-script English and Devanagari-script Hindi
// in one recognizer, so mixed-script print needs no
// reconfiguration between frames.
var DefaultLanguages = []string{"eng", "hin"}

// TesseractConfig configures NewTesseract.
type TesseractConfig struct {
	Languages []string

	// TessdataPrefix overrides the directory holding *.traineddata.
	TessdataPrefix string
}

// Tesseract is a Recognizer backed by a single gosseract client.
// gosseract clients are not safe for concurrent use, so calls are serialised.
type Tesseract struct {
	mu        sync.Mutex
	client    *gosseract.Client
	closed    bool
	languages []string
}

// NewTesseract creates the client and loads the configured languages,
// DefaultLanguages when cfg.Languages is empty.
//
// # Errors
//
// It fails when the tessdata prefix cannot be applied or a language's
// traineddata is missing. The client is closed before returning, so a
// failed call holds no resources.
func NewTesseract(cfg TesseractConfig) (*Tesseract, error) {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = DefaultLanguages
	}

	client := gosseract.NewClient()
	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(langs...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set languages %s: %w", strings.Join(langs, "+"), err)
	}

	return &Tesseract{client: client, languages: langs}, nil
}

// Recognize runs OCR over img. It fails with ErrUnavailable after Close.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", fmt.Errorf("tesseract closed: %w", ErrUnavailable)
	}

	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}

// Languages returns the loaded Tesseract language codes.
func (t *Tesseract) Languages() []string {
	return append([]string(nil), t.languages...)
}

// Close releases the Tesseract client. It waits for a running Recognize and
// is a no-op on later calls.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.client.Close()
}

// EngineInfo describes the compiled-in OCR backend.
func EngineInfo() Info {
	client := gosseract.NewClient()
	defer client.Close()
	return Info{
		Available: true,
		Backend:   "gosseract",
		Version:   client.Version(),
	}
}
