package camera

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Analyzer consumes frames. Analyze is called from a single goroutine and
// the frame counts as in flight until it returns. Implementations should
// Close the frame; the executor closes it again afterwards regardless.
type Analyzer interface {
	Analyze(ctx context.Context, f *Frame)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, f *Frame)

func (fn AnalyzerFunc) Analyze(ctx context.Context, f *Frame) { fn(ctx, f) }

// PreviewSink displays frames. Render must not block for long; it runs on
// the delivery goroutine ahead of analysis.
type PreviewSink interface {
	Render(img image.Image)
}

// LatestExecutor runs an Analyzer on one frame at a time, keeping only the
// most recent frame submitted while the analyzer is busy.
type LatestExecutor struct {
	analyzer Analyzer
	log      *log.Logger

	mu      sync.Mutex
	pending *Frame
	closed  bool

	wake   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc

	processed atomic.Uint64
	dropped   atomic.Uint64
}

// NewLatestExecutor creates an executor. Call Start before submitting.
func NewLatestExecutor(analyzer Analyzer, logger *log.Logger) *LatestExecutor {
	return &LatestExecutor{
		analyzer: analyzer,
		log:      logger,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the analysis goroutine. It stops when ctx is cancelled or
// Shutdown is called.
func (e *LatestExecutor) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	go e.run(ctx)
}

// Submit hands a frame to the executor. It never blocks. A frame still
// waiting from an earlier Submit is closed and dropped.
func (e *LatestExecutor) Submit(f *Frame) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		f.Close()
		return
	}
	stale := e.pending
	e.pending = f
	e.mu.Unlock()

	if stale != nil {
		stale.Close()
		e.dropped.Add(1)
		e.log.Debug("Dropped stale frame", "seq", stale.Seq, "superseded_by", f.Seq)
	}

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *LatestExecutor) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			e.closePending()
			return
		case <-e.wake:
		}

		for {
			f := e.take()
			if f == nil {
				break
			}
			e.analyzer.Analyze(ctx, f)
			f.Close()
			e.processed.Add(1)
			if ctx.Err() != nil {
				break
			}
		}
	}
}

func (e *LatestExecutor) take() *Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	f := e.pending
	e.pending = nil
	return f
}

func (e *LatestExecutor) closePending() {
	e.mu.Lock()
	e.closed = true
	f := e.pending
	e.pending = nil
	e.mu.Unlock()
	if f != nil {
		f.Close()
	}
}

// Shutdown stops accepting frames and cancels the analysis goroutine. It does
// not wait for an in-flight analysis; use Done for that.
func (e *LatestExecutor) Shutdown() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Done is closed once the analysis goroutine has exited.
func (e *LatestExecutor) Done() <-chan struct{} {
	return e.done
}

// Processed returns how many frames were analyzed.
func (e *LatestExecutor) Processed() uint64 { return e.processed.Load() }

// Dropped returns how many frames were superseded before analysis.
func (e *LatestExecutor) Dropped() uint64 { return e.dropped.Load() }
