// Package camera turns a frame source into a live preview plus a frame
// analysis stream with keep-only-latest backpressure.
//
// A Source produces frames. The Pipeline renders each frame to a PreviewSink
// and submits it to a LatestExecutor, which runs the Analyzer on one frame at
// a time on a dedicated goroutine. A frame that arrives while another is
// still waiting replaces it; the replaced frame is released and never
// analyzed.
package camera

import (
	"image"
	"sync"
	"time"
)

// Frame is one captured image plus its metadata.
//
// A frame holds a resource that must be released exactly once; Close does
// that and is safe to call more than once.
type Frame struct {
	Image image.Image

	// Rotation is the clockwise rotation in degrees that makes Image upright.
	Rotation int

	// Seq is assigned by the pipeline in delivery order, starting at 1.
	Seq uint64

	Timestamp time.Time

	once    sync.Once
	release func()
}

// NewFrame wraps img. release runs on the first Close and may be nil.
func NewFrame(img image.Image, rotation int, release func()) *Frame {
	return &Frame{
		Image:     img,
		Rotation:  rotation,
		Timestamp: time.Now(),
		release:   release,
	}
}

// Close releases the frame's resource.
func (f *Frame) Close() {
	f.once.Do(func() {
		if f.release != nil {
			f.release()
		}
	})
}
