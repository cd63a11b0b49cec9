package imaging

import (
	"image"
	"math"
)

// edgeThreshold is the grayscale step between neighbours that counts as an edge.
const edgeThreshold = 30

// textWindows are the sliding-window sizes, roughly one line of small,
// medium and large print.
var textWindows = []image.Point{
	{X: 80, Y: 25},
	{X: 100, Y: 30},
	{X: 150, Y: 40},
	{X: 200, Y: 50},
}

// TextBounds returns the union of the windows in img whose edge pattern
// looks like horizontal print, scored against minConfidence in [0, 1].
// ok is false when no window qualifies.
//
// Printed text has a medium edge density (not blank, not texture) with more
// horizontal than vertical edge runs.
func TextBounds(img image.Image, minConfidence float64) (image.Rectangle, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	edges := edgeMap(img)

	var union image.Rectangle
	found := false
	for _, win := range textWindows {
		if win.X > w || win.Y > h {
			continue
		}
		for y := 0; y+win.Y <= h; y += win.Y / 2 {
			for x := 0; x+win.X <= w; x += win.X / 2 {
				score := windowScore(edges, x, y, win.X, win.Y)
				if score < minConfidence || score == 0 {
					continue
				}
				r := image.Rect(x, y, x+win.X, y+win.Y).Add(b.Min)
				if !found {
					union = r
					found = true
				} else {
					union = union.Union(r)
				}
			}
		}
	}
	return union, found
}

func windowScore(edges [][]bool, x, y, w, h int) float64 {
	count := 0
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			if edges[row][col] {
				count++
			}
		}
	}
	density := float64(count) / float64(w*h)
	if density < 0.05 || density > 0.4 {
		return 0
	}
	return horizontalRatio(edges, x, y, w, h) * (1.0 - math.Abs(density-0.2)/0.2)
}

// horizontalRatio is horizontal edge runs over all edge runs in the window.
func horizontalRatio(edges [][]bool, x, y, w, h int) float64 {
	horizontal, vertical := 0, 0
	for row := y; row < y+h; row++ {
		in := false
		for col := x; col < x+w; col++ {
			if edges[row][col] && !in {
				horizontal++
			}
			in = edges[row][col]
		}
	}
	for col := x; col < x+w; col++ {
		in := false
		for row := y; row < y+h; row++ {
			if edges[row][col] && !in {
				vertical++
			}
			in = edges[row][col]
		}
	}
	if horizontal+vertical == 0 {
		return 0
	}
	return float64(horizontal) / float64(horizontal+vertical)
}

// edgeMap marks pixels whose luminance differs from the right or lower
// neighbour by more than edgeThreshold. Border pixels are never edges.
func edgeMap(img image.Image) [][]bool {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	edges := make([][]bool, h)
	for y := 0; y < h; y++ {
		edges[y] = make([]bool, w)
		if y == 0 || y == h-1 {
			continue
		}
		for x := 1; x < w-1; x++ {
			c := luma(img, b.Min.X+x, b.Min.Y+y)
			dx := math.Abs(c - luma(img, b.Min.X+x+1, b.Min.Y+y))
			dy := math.Abs(c - luma(img, b.Min.X+x, b.Min.Y+y+1))
			edges[y][x] = dx > edgeThreshold || dy > edgeThreshold
		}
	}
	return edges
}

// luma uses the ITU-R BT.601 weights on 8-bit channels.
func luma(img image.Image, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114
}
