package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ironsheep/smart-ocr/internal/imaging"
)

// InitialStatus is shown until the first text is recognized.
const InitialStatus = "Point camera at text. Double tap to read."

// DefaultPreviewLength is how many characters of detected text the status
// line shows.
const DefaultPreviewLength = 50

// StatusLine formats detected text for the overlay: the first n characters
// followed by an ellipsis. It returns "" for empty text, which callers treat
// as "leave the label alone".
func StatusLine(text string, n int) string {
	if text == "" {
		return ""
	}
	r := []rune(text)
	if len(r) > n {
		r = r[:n]
	}
	return "Detected: " + string(r) + "..."
}

// Styles holds the rendered look of the overlay.
type Styles struct {
	Status lipgloss.Style
	Toast  lipgloss.Style
	Hint   lipgloss.Style
}

// NewStyles builds styles from "#RRGGBB" or "#RRGGBBAA" colours.
func NewStyles(foreground, background string) (Styles, error) {
	fg, err := imaging.ParseHex(foreground)
	if err != nil {
		return Styles{}, err
	}
	bg, err := imaging.ParseHex(background)
	if err != nil {
		return Styles{}, err
	}
	return Styles{
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color(fg.Hex())).
			Background(lipgloss.Color(bg.Hex())).
			Padding(1, 2),
		Toast: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1),
		Hint: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}, nil
}

// DefaultStyles is white on translucent black.
func DefaultStyles() Styles {
	s, _ := NewStyles("#FFFFFF", "#00000080")
	return s
}
