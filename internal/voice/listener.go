// Package voice keeps a speech-command listening loop alive and turns
// trigger phrases into read-aloud requests.
//
// A listening session ends with exactly one terminal event (results, error
// or end of speech). The first terminal event of a session starts the next
// session while the listener is active and permissions still hold. Session
// starts always go through a Dispatcher so they run on the UI goroutine.
package voice

import (
	"errors"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// ErrUnavailable reports that no speech recognizer can run on this system.
var ErrUnavailable = errors.New("speech recognition unavailable")

// ErrDestroyed is returned by a recognizer used after Destroy.
var ErrDestroyed = errors.New("speech recognizer destroyed")

// EventKind identifies a recognizer callback.
type EventKind int

const (
	ReadyForSpeech EventKind = iota
	EndOfSpeech
	Results
	Error
)

func (k EventKind) String() string {
	switch k {
	case ReadyForSpeech:
		return "ready"
	case EndOfSpeech:
		return "end-of-speech"
	case Results:
		return "results"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// terminal reports whether the event ends a session.
func (k EventKind) terminal() bool {
	return k == EndOfSpeech || k == Results || k == Error
}

// Event is delivered by a Recognizer for one listening session.
type Event struct {
	Kind    EventKind
	Phrases []string // Results only
	Err     error    // Error only
}

// Request configures one listening session.
type Request struct {
	Language   string // BCP 47, e.g. "hi-IN"
	MaxResults int
}

// DefaultRequest listens for Hindi (India), which also captures the
// English command phrases, and keeps up to three alternatives.
func DefaultRequest() Request {
	return Request{Language: "hi-IN", MaxResults: 3}
}

// Recognizer is a platform speech recognizer.
type Recognizer interface {
	// StartListening begins one session and returns without blocking.
	// Events for the session are passed to sink from any goroutine.
	StartListening(req Request, sink func(Event)) error

	// Destroy releases the recognizer.
	Destroy() error
}

// Dispatcher runs fn on the UI goroutine.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

// PermissionChecker reports whether every required capability is granted.
type PermissionChecker interface {
	AllGranted() bool
}

// Listener runs the self-restarting listening loop.
type Listener struct {
	rec       Recognizer
	perms     PermissionChecker
	dispatch  Dispatcher
	triggers  *Triggers
	req       Request
	onTrigger func()
	log       *log.Logger

	listening atomic.Bool
	session   atomic.Uint64
	matched   atomic.Uint64
}

// NewListener wires a recognizer to onTrigger. onTrigger runs once for every
// recognized phrase that contains a trigger.
func NewListener(rec Recognizer, perms PermissionChecker, dispatch Dispatcher, triggers *Triggers, req Request, onTrigger func(), logger *log.Logger) *Listener {
	if triggers == nil {
		triggers = NewTriggers()
	}
	return &Listener{
		rec:       rec,
		perms:     perms,
		dispatch:  dispatch,
		triggers:  triggers,
		req:       req,
		onTrigger: onTrigger,
		log:       logger.WithPrefix("voice"),
	}
}

// Start begins listening. It does nothing when permissions are missing.
func (l *Listener) Start() {
	if !l.perms.AllGranted() {
		l.log.Debug("Not listening: permissions missing")
		return
	}
	l.listening.Store(true)
	l.startSession()
}

// Listening reports whether the loop is active.
func (l *Listener) Listening() bool {
	return l.listening.Load()
}

// Sessions returns how many sessions have been started.
func (l *Listener) Sessions() uint64 {
	return l.session.Load()
}

// Matched returns how many phrases have triggered a read.
func (l *Listener) Matched() uint64 {
	return l.matched.Load()
}

// Stop clears the listening flag so no further session starts, then
// destroys the recognizer.
func (l *Listener) Stop() error {
	l.listening.Store(false)
	return l.rec.Destroy()
}

func (l *Listener) startSession() {
	if !l.perms.AllGranted() {
		l.log.Debug("Not restarting: permissions missing")
		return
	}
	l.dispatch.Dispatch(func() {
		if !l.listening.Load() {
			return
		}
		id := l.session.Add(1)
		var ended atomic.Bool
		sink := func(ev Event) { l.handle(id, &ended, ev) }
		if err := l.rec.StartListening(l.req, sink); err != nil {
			l.log.Error("Failed to start listening", "session", id, "err", err)
		}
	})
}

func (l *Listener) handle(id uint64, ended *atomic.Bool, ev Event) {
	switch ev.Kind {
	case Results:
		for _, phrase := range ev.Phrases {
			if l.triggers.Match(phrase) {
				l.log.Info("Voice command", "session", id, "phrase", phrase)
				l.matched.Add(1)
				l.onTrigger()
			}
		}
	case Error:
		l.log.Debug("Listening session error", "session", id, "err", ev.Err)
	}

	if !ev.Kind.terminal() || !ended.CompareAndSwap(false, true) {
		return
	}
	if l.listening.Load() {
		l.startSession()
	}
}
