package ui

import (
	"image"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ironsheep/smart-ocr/internal/imaging"
)

const halfBlock = "▀"

// RenderHalfBlocks draws img into cols x rows terminal cells. Each cell shows
// two vertically stacked pixels: the upper one as the foreground of an upper
// half block and the lower one as its background.
func RenderHalfBlocks(img image.Image, cols, rows int) string {
	if img == nil || cols <= 0 || rows <= 0 {
		return ""
	}
	b := img.Bounds()
	if b.Empty() {
		return ""
	}
	thumb := imaging.Thumbnail(img, cols, rows*2)
	tb := thumb.Bounds()

	var sb strings.Builder
	for y := tb.Min.Y; y < tb.Max.Y; y += 2 {
		if y > tb.Min.Y {
			sb.WriteByte('\n')
		}
		for x := tb.Min.X; x < tb.Max.X; x++ {
			top := imaging.HexAt(thumb, x, y)
			bottom := "#000000"
			if y+1 < tb.Max.Y {
				bottom = imaging.HexAt(thumb, x, y+1)
			}
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render(halfBlock))
		}
	}
	return sb.String()
}

type frameMsg struct{}

// Preview is the camera preview sink. It keeps only the newest frame and
// asks the UI to redraw at most once per pending frame.
type Preview struct {
	latest  atomic.Pointer[image.Image]
	pending atomic.Bool
	send    func(tea.Msg)
}

// NewPreview returns a sink that notifies the UI through send.
func NewPreview(send func(tea.Msg)) *Preview {
	return &Preview{send: send}
}

// Render implements camera.PreviewSink.
func (p *Preview) Render(img image.Image) {
	p.latest.Store(&img)
	if p.pending.CompareAndSwap(false, true) && p.send != nil {
		p.send(frameMsg{})
	}
}

// take returns the newest frame and allows the next redraw request.
func (p *Preview) take() image.Image {
	p.pending.Store(false)
	if img := p.latest.Load(); img != nil {
		return *img
	}
	return nil
}
