// Package speech reads detected text aloud.
//
// A Speaker wraps a synthesis Engine with a small state machine:
//
//	Uninitialized -> Ready -> Speaking -> Ready -> ... -> ShutDown
//
// with Failed as the sink when the engine cannot initialise. Initialisation
// is asynchronous. Speaking always flushes: a worker goroutine stops the
// current utterance and waits for it to end before the newest request
// starts, so audio never overlaps and requests never queue.
package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Notices shown to the user around speech.
const (
	NoticeReading         = "Reading..."
	NoticeNothingDetected = "No text detected yet"
)

// stopWait bounds how long a flush waits for the previous utterance to end.
const stopWait = 2 * time.Second

// ErrNotInitialized is returned by engines used before Init succeeded.
var ErrNotInitialized = errors.New("speech engine not initialized")

// Availability is an engine's answer to a language request.
type Availability int

const (
	LangAvailable Availability = iota
	LangMissingData
	LangNotSupported
)

// Engine is a speech synthesizer.
type Engine interface {
	// Init prepares the engine. It may block.
	Init(ctx context.Context) error

	// SetLanguage selects the voice language for later utterances.
	SetLanguage(tag language.Tag) (Availability, error)

	// Speak plays text and blocks until playback ends, Stop is called or ctx
	// is cancelled.
	Speak(ctx context.Context, utteranceID, text string) error

	// Stop interrupts the utterance in progress, if any.
	Stop() error

	// Shutdown releases the engine.
	Shutdown() error
}

// Notifier shows short transient notices to the user.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (fn NotifierFunc) Notify(msg string) { fn(msg) }

// State is the speaker lifecycle state.
type State int

const (
	Uninitialized State = iota
	Ready
	Speaking
	Failed
	ShutDown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Speaking:
		return "speaking"
	case Failed:
		return "failed"
	case ShutDown:
		return "shut down"
	default:
		return "unknown"
	}
}

// Options configures a Speaker.
type Options struct {
	// Preferred is tried first; Fallback is used when the engine lacks it.
	Preferred language.Tag
	Fallback  language.Tag
}

// DefaultOptions prefers Hindi (India) and falls back to English.
func DefaultOptions() Options {
	return Options{
		Preferred: language.MustParse("hi-IN"),
		Fallback:  language.English,
	}
}

type utterance struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

type request struct {
	id   string
	text string
}

// Speaker drives an Engine with flush semantics.
type Speaker struct {
	engine Engine
	notify Notifier
	opts   Options
	log    *log.Logger

	mu       sync.Mutex
	state    State
	lang     language.Tag
	ctx      context.Context
	cancel   context.CancelFunc
	current  *utterance
	pending  *request
	gen      uint64
	wake     chan struct{}
	initDone chan struct{}
}

// NewSpeaker creates an uninitialised speaker. Call Init before Speak.
func NewSpeaker(engine Engine, notifier Notifier, opts Options, logger *log.Logger) *Speaker {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Speaker{
		engine:   engine,
		notify:   notifier,
		opts:     opts,
		log:      logger.WithPrefix("tts"),
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		initDone: make(chan struct{}),
	}
	go s.run()
	return s
}

// Init initialises the engine on a new goroutine and selects the language.
// onInit, when non-nil, receives the engine's init error. A failed init
// leaves the speaker in Failed and every later Speak is a silent no-op.
func (s *Speaker) Init(ctx context.Context, onInit func(err error)) {
	go func() {
		err := s.engine.Init(ctx)
		if err == nil {
			s.selectLanguage()
		}

		s.mu.Lock()
		switch {
		case s.state == ShutDown:
		case err != nil:
			s.state = Failed
		default:
			s.state = Ready
		}
		s.mu.Unlock()

		if err != nil {
			s.log.Error("Speech engine init failed", "err", err)
		} else {
			s.log.Info("Speech engine ready", "language", s.Language())
		}
		close(s.initDone)
		if onInit != nil {
			onInit(err)
		}
	}()
}

// InitDone is closed once Init has finished, successfully or not.
func (s *Speaker) InitDone() <-chan struct{} {
	return s.initDone
}

func (s *Speaker) selectLanguage() {
	chosen := s.opts.Preferred
	avail, err := s.engine.SetLanguage(chosen)
	if err != nil || avail != LangAvailable {
		s.log.Debug("Preferred language unavailable", "language", chosen, "availability", avail, "err", err)
		chosen = s.opts.Fallback
		if _, err := s.engine.SetLanguage(chosen); err != nil {
			s.log.Warn("Fallback language failed", "language", chosen, "err", err)
		}
	}
	s.mu.Lock()
	s.lang = chosen
	s.mu.Unlock()
}

// State returns the current state.
func (s *Speaker) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Language returns the selected voice language.
func (s *Speaker) Language() language.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

func (s *Speaker) active() bool {
	return s.state == Ready || s.state == Speaking
}

// Speak reads text aloud, interrupting anything already playing.
//
// Blank text shows NoticeNothingDetected and nothing is spoken. Otherwise
// NoticeReading is shown and the request is handed to the speaker's worker,
// which stops the current utterance and then plays text. Speak itself never
// waits for the engine, so it is safe to call from the UI goroutine.
//
// Requests that arrive while the worker is still flushing replace each
// other; only the newest one plays.
//
// # Returns
//
// The utterance id, or "" when nothing was requested: blank text, or a
// speaker that is not initialised, failed to initialise or is shut down.
func (s *Speaker) Speak(text string) string {
	if strings.TrimSpace(text) == "" {
		s.notify.Notify(NoticeNothingDetected)
		return ""
	}
	s.notify.Notify(NoticeReading)

	s.mu.Lock()
	if !s.active() {
		s.log.Debug("Speak ignored", "state", s.state)
		s.mu.Unlock()
		return ""
	}
	if s.pending != nil {
		s.log.Debug("Utterance superseded before playing", "id", s.pending.id)
	}
	req := &request{id: uuid.NewString(), text: text}
	s.pending = req
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return req.id
}

// run is the worker that flushes and starts utterances.
func (s *Speaker) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}

		s.mu.Lock()
		req, gen, cur := s.pending, s.gen, s.current
		s.pending = nil
		s.mu.Unlock()
		if req == nil {
			continue
		}

		s.interrupt(cur)

		s.mu.Lock()
		if s.gen != gen || s.pending != nil || !s.active() {
			// stopped, shut down or superseded while flushing
			s.mu.Unlock()
			continue
		}
		ctx, cancel := context.WithCancel(s.ctx)
		u := &utterance{id: req.id, cancel: cancel, done: make(chan struct{})}
		s.current = u
		s.state = Speaking
		s.mu.Unlock()

		go s.play(ctx, u, req.text)
	}
}

func (s *Speaker) play(ctx context.Context, u *utterance, text string) {
	err := s.engine.Speak(ctx, u.id, text)
	u.cancel()
	close(u.done)
	if err != nil && ctx.Err() == nil {
		s.log.Warn("Utterance failed", "id", u.id, "err", err)
	}

	s.mu.Lock()
	if s.current == u {
		s.current = nil
		if s.state == Speaking {
			s.state = Ready
		}
	}
	s.mu.Unlock()
}

// interrupt stops u and waits, up to stopWait, for it to end. It must be
// called without s.mu held.
func (s *Speaker) interrupt(u *utterance) {
	if u == nil {
		return
	}
	u.cancel()
	if err := s.engine.Stop(); err != nil {
		s.log.Warn("Failed to stop utterance", "id", u.id, "err", err)
	}
	select {
	case <-u.done:
	case <-time.After(stopWait):
		s.log.Warn("Utterance did not stop in time", "id", u.id)
	}
}

// Stop drops any request that has not started and interrupts the current
// utterance. It waits for the utterance to end.
func (s *Speaker) Stop() {
	s.mu.Lock()
	s.pending = nil
	s.gen++
	cur := s.current
	s.mu.Unlock()

	s.interrupt(cur)

	s.mu.Lock()
	if s.current == cur {
		s.current = nil
	}
	if s.current == nil && s.state == Speaking {
		s.state = Ready
	}
	s.mu.Unlock()
}

// Shutdown stops speech and releases the engine. The speaker cannot be used
// afterwards.
func (s *Speaker) Shutdown() {
	s.mu.Lock()
	s.state = ShutDown
	s.pending = nil
	s.gen++
	cur := s.current
	s.current = nil
	s.mu.Unlock()

	s.interrupt(cur)
	s.cancel()
	if err := s.engine.Shutdown(); err != nil {
		s.log.Warn("Speech engine shutdown failed", "err", err)
	}
}
