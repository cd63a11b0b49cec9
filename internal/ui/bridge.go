package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

type statusMsg struct{ text string }

type toastMsg struct{ text string }

type dispatchMsg struct{ fn func() }

// Bridge moves work from any goroutine onto the bubbletea event loop.
//
// Messages are queued and forwarded in order by one pump goroutine, so
// callers never block, including code already running inside Update.
type Bridge struct {
	mu     sync.Mutex
	queue  []tea.Msg
	wake   chan struct{}
	quit   chan struct{}
	closed bool
	once   sync.Once
}

// NewBridge returns a bridge that buffers until Attach.
func NewBridge() *Bridge {
	return &Bridge{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

// Attach starts forwarding queued messages to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.once.Do(func() { go b.pump(p.Send) })
}

// attachFunc is Attach for tests that capture messages directly.
func (b *Bridge) attachFunc(send func(tea.Msg)) {
	b.once.Do(func() { go b.pump(send) })
}

func (b *Bridge) pump(send func(tea.Msg)) {
	for {
		select {
		case <-b.quit:
			return
		case <-b.wake:
		}
		for {
			b.mu.Lock()
			if len(b.queue) == 0 {
				b.mu.Unlock()
				break
			}
			msg := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			send(msg)
		}
	}
}

// Send queues msg for the event loop.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Close stops forwarding. Queued messages are dropped.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.queue = nil
	close(b.quit)
}

// SetStatus forwards detected text to the status overlay.
func (b *Bridge) SetStatus(text string) { b.Send(statusMsg{text: text}) }

// Toast shows a short notice.
func (b *Bridge) Toast(msg string) { b.Send(toastMsg{text: msg}) }

// Dispatch runs fn inside the event loop.
func (b *Bridge) Dispatch(fn func()) { b.Send(dispatchMsg{fn: fn}) }
