package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Source produces camera frames.
//
// Start opens the device and returns a channel of frames; an error from
// Start means the camera could not be bound. The channel is closed when the
// source ends or ctx is cancelled.
type Source interface {
	Start(ctx context.Context) (<-chan *Frame, error)
}

// analysisWait bounds how long Stop waits for an in-flight analysis.
const analysisWait = 5 * time.Second

// ErrNotBound is returned by Stats when nothing is bound.
var ErrNotBound = errors.New("camera pipeline is not bound")

// Stats reports frame counts for the bound session.
type Stats struct {
	Delivered uint64
	Processed uint64
	Dropped   uint64
}

// Pipeline binds a source to a preview and an analyzer.
type Pipeline struct {
	log *log.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	executor *LatestExecutor
	wg       sync.WaitGroup

	seq atomic.Uint64
}

// NewPipeline creates an unbound pipeline.
func NewPipeline(logger *log.Logger) *Pipeline {
	return &Pipeline{log: logger.WithPrefix("camera")}
}

// Bind starts delivering frames from src to preview and analyzer until ctx
// is cancelled or Stop is called. Any previous binding is released first.
// preview may be nil.
//
// Frames are numbered in delivery order. Each one is rendered to preview on
// the delivery goroutine and then handed to a LatestExecutor, so analysis
// only ever sees the newest frame and a slow analyzer never stalls preview.
//
// # Errors
//
// If src.Start fails Bind logs the failure and returns it wrapped as
// "bind camera". The pipeline is left unbound and the bind is not retried;
// callers keep running without frames.
func (p *Pipeline) Bind(ctx context.Context, src Source, preview PreviewSink, analyzer Analyzer) error {
	p.Stop()

	ctx, cancel := context.WithCancel(ctx)
	frames, err := src.Start(ctx)
	if err != nil {
		cancel()
		p.log.Error("Camera binding failed", "err", err)
		return fmt.Errorf("bind camera: %w", err)
	}

	exec := NewLatestExecutor(analyzer, p.log)
	exec.Start(ctx)

	p.mu.Lock()
	p.cancel = cancel
	p.executor = exec
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for f := range frames {
			f.Seq = p.seq.Add(1)
			if preview != nil {
				preview.Render(f.Image)
			}
			exec.Submit(f)
		}
		p.log.Debug("Frame source closed")
	}()

	p.log.Info("Camera bound")
	return nil
}

// Stop unbinds the current source and shuts the analysis executor down.
// It returns once the analyzer is idle, so resources the analyzer uses can
// be released afterwards. An analysis that ignores cancellation is waited
// for up to five seconds. It is safe to call when nothing is bound.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel, exec := p.cancel, p.executor
	p.cancel, p.executor = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	exec.Shutdown()
	cancel()
	p.wg.Wait()

	select {
	case <-exec.Done():
	case <-time.After(analysisWait):
		p.log.Warn("Analysis still running after unbind", "waited", analysisWait)
	}
}

// Stats returns counts for the current binding.
func (p *Pipeline) Stats() (Stats, error) {
	p.mu.Lock()
	exec := p.executor
	p.mu.Unlock()
	if exec == nil {
		return Stats{}, ErrNotBound
	}
	return Stats{
		Delivered: p.seq.Load(),
		Processed: exec.Processed(),
		Dropped:   exec.Dropped(),
	}, nil
}
