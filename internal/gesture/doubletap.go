// Package gesture recognizes a double tap from a stream of pointer events.
package gesture

import "time"

// Action is a pointer event type.
type Action int

const (
	Down Action = iota
	Move
	Up
	Cancel
)

// TouchEvent is one pointer event in screen cells.
type TouchEvent struct {
	Action Action
	X, Y   int
	Time   time.Time
}

// Config holds the double-tap thresholds.
type Config struct {
	// Timeout is the longest gap between the first release and the second
	// press.
	Timeout time.Duration
	// MinGap is the shortest such gap; anything faster is treated as bounce.
	MinGap time.Duration
	// TouchSlop is how far a press may wander and still count as a tap.
	TouchSlop int
	// DoubleTapSlop is how far apart the two presses may be.
	DoubleTapSlop int
}

// DefaultConfig mirrors common platform defaults, scaled to terminal cells.
func DefaultConfig() Config {
	return Config{
		Timeout:       300 * time.Millisecond,
		MinGap:        40 * time.Millisecond,
		TouchSlop:     1,
		DoubleTapSlop: 4,
	}
}

// DoubleTapDetector calls OnDoubleTap when two taps land close together in
// space and time. Single taps, drags and long sequences of taps beyond the
// second are ignored. It is not safe for concurrent use; feed it from the
// UI goroutine.
type DoubleTapDetector struct {
	cfg         Config
	onDoubleTap func()

	down        bool
	inTapRegion bool
	firstDown   TouchEvent
	lastUp      TouchEvent
	armed       bool // a complete first tap is waiting for its partner
	swallowUp   bool
}

// NewDoubleTapDetector returns a detector that calls onDoubleTap
// synchronously from OnTouch.
func NewDoubleTapDetector(cfg Config, onDoubleTap func()) *DoubleTapDetector {
	return &DoubleTapDetector{cfg: cfg, onDoubleTap: onDoubleTap}
}

// OnTouch feeds one event and reports whether it was consumed. Every Down is
// consumed so that a following tap can complete a double tap.
func (d *DoubleTapDetector) OnTouch(ev TouchEvent) bool {
	switch ev.Action {
	case Down:
		if d.armed && d.isDoubleTap(ev) {
			d.reset()
			d.swallowUp = true
			d.onDoubleTap()
			return true
		}
		d.down = true
		d.inTapRegion = true
		d.firstDown = ev
		d.armed = false
		return true

	case Move:
		if d.down && !within(d.firstDown, ev, d.cfg.TouchSlop) {
			d.inTapRegion = false
		}
		return false

	case Up:
		if d.swallowUp {
			d.swallowUp = false
			return true
		}
		if d.down && d.inTapRegion {
			d.lastUp = ev
			d.armed = true
		} else {
			d.armed = false
		}
		d.down = false
		return false

	case Cancel:
		d.reset()
		return false
	}
	return false
}

func (d *DoubleTapDetector) isDoubleTap(second TouchEvent) bool {
	gap := second.Time.Sub(d.lastUp.Time)
	if gap > d.cfg.Timeout || gap < d.cfg.MinGap {
		return false
	}
	return within(d.firstDown, second, d.cfg.DoubleTapSlop)
}

func (d *DoubleTapDetector) reset() {
	d.down = false
	d.inTapRegion = false
	d.armed = false
	d.swallowUp = false
}

func within(a, b TouchEvent, slop int) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx+dy*dy <= slop*slop
}
