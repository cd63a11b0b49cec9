package gesture

import (
	"testing"
	"time"
)

type tapper struct {
	d     *DoubleTapDetector
	t0    time.Time
	count int
}

func newTapper() *tapper {
	tp := &tapper{t0: time.Unix(1700000000, 0)}
	tp.d = NewDoubleTapDetector(DefaultConfig(), func() { tp.count++ })
	return tp
}

func (tp *tapper) at(ms int) time.Time {
	return tp.t0.Add(time.Duration(ms) * time.Millisecond)
}

func (tp *tapper) send(a Action, x, y, ms int) bool {
	return tp.d.OnTouch(TouchEvent{Action: a, X: x, Y: y, Time: tp.at(ms)})
}

// tap presses at ms and releases 50ms later.
func (tp *tapper) tap(x, y, ms int) {
	tp.send(Down, x, y, ms)
	tp.send(Up, x, y, ms+50)
}

func TestDoubleTap_Detected(t *testing.T) {
	tp := newTapper()
	tp.tap(10, 5, 0)
	tp.tap(10, 5, 150)

	if tp.count != 1 {
		t.Errorf("double taps: got %d, want 1", tp.count)
	}
}

func TestDoubleTap_Timing(t *testing.T) {
	tests := []struct {
		name   string
		second int // ms of the second press; first release is at 50
		want   int
	}{
		{"within timeout", 300, 1},
		{"at timeout", 350, 1},
		{"too slow", 351, 0},
		{"at minimum gap", 90, 1},
		{"bounce", 60, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTapper()
			tp.tap(3, 3, 0)
			tp.tap(3, 3, tt.second)
			if tp.count != tt.want {
				t.Errorf("double taps: got %d, want %d", tp.count, tt.want)
			}
		})
	}
}

func TestDoubleTap_SingleTapIgnored(t *testing.T) {
	tp := newTapper()
	tp.tap(0, 0, 0)

	if tp.count != 0 {
		t.Errorf("single tap fired %d times", tp.count)
	}
}

func TestDoubleTap_DownAlwaysClaimed(t *testing.T) {
	tp := newTapper()
	if !tp.send(Down, 0, 0, 0) {
		t.Error("first Down not claimed")
	}
	tp.send(Up, 0, 0, 10)
	if !tp.send(Down, 50, 50, 2000) {
		t.Error("unrelated Down not claimed")
	}
}

func TestDoubleTap_TooFarApart(t *testing.T) {
	tp := newTapper()
	tp.tap(0, 0, 0)
	tp.tap(20, 0, 150)

	if tp.count != 0 {
		t.Errorf("distant taps fired %d times", tp.count)
	}
}

func TestDoubleTap_DragIsNotATap(t *testing.T) {
	tp := newTapper()
	tp.send(Down, 0, 0, 0)
	tp.send(Move, 10, 0, 20)
	tp.send(Up, 0, 0, 40)
	tp.tap(0, 0, 150)

	if tp.count != 0 {
		t.Errorf("drag then tap fired %d times", tp.count)
	}
}

func TestDoubleTap_TripleTapFiresOnce(t *testing.T) {
	tp := newTapper()
	tp.tap(1, 1, 0)
	tp.tap(1, 1, 150)
	tp.tap(1, 1, 300)

	if tp.count != 1 {
		t.Errorf("triple tap fired %d times, want 1", tp.count)
	}
}

func TestDoubleTap_TwoPairs(t *testing.T) {
	tp := newTapper()
	tp.tap(1, 1, 0)
	tp.tap(1, 1, 150)
	tp.tap(1, 1, 1000)
	tp.tap(1, 1, 1150)

	if tp.count != 2 {
		t.Errorf("two double taps fired %d times, want 2", tp.count)
	}
}

func TestDoubleTap_CancelResets(t *testing.T) {
	tp := newTapper()
	tp.tap(0, 0, 0)
	tp.send(Cancel, 0, 0, 60)
	tp.tap(0, 0, 150)

	if tp.count != 0 {
		t.Errorf("tap after cancel fired %d times", tp.count)
	}
}
