package imaging

import (
	"fmt"
	"image"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ParseHex parses "#RRGGBB" or "#RRGGBBAA". The alpha byte, when present,
// blends the colour over black, which is how a translucent overlay looks on
// a terminal that has no alpha channel.
func ParseHex(hex string) (colorful.Color, error) {
	s := strings.TrimSpace(hex)
	switch len(s) {
	case 7:
		c, err := colorful.Hex(s)
		if err != nil {
			return colorful.Color{}, fmt.Errorf("invalid colour %q: %w", hex, err)
		}
		return c, nil
	case 9:
		c, err := colorful.Hex(s[:7])
		if err != nil {
			return colorful.Color{}, fmt.Errorf("invalid colour %q: %w", hex, err)
		}
		var a uint8
		if _, err := fmt.Sscanf(s[7:], "%02x", &a); err != nil {
			return colorful.Color{}, fmt.Errorf("invalid alpha in %q: %w", hex, err)
		}
		black := colorful.Color{}
		return black.BlendRgb(c, float64(a)/255), nil
	default:
		return colorful.Color{}, fmt.Errorf("invalid colour %q: want #RRGGBB or #RRGGBBAA", hex)
	}
}

// HexAt returns the "#rrggbb" colour of the pixel at (x, y).
func HexAt(img image.Image, x, y int) string {
	c, ok := colorful.MakeColor(img.At(x, y))
	if !ok {
		// Fully transparent pixels have no meaningful colour.
		return "#000000"
	}
	return c.Hex()
}
