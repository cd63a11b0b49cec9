// Package app wires the permission gate, camera pipeline, recognizer,
// speech and voice command listener into the read-aloud controller.
package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/ironsheep/smart-ocr/internal/camera"
	"github.com/ironsheep/smart-ocr/internal/permission"
	"github.com/ironsheep/smart-ocr/internal/recognition"
	"github.com/ironsheep/smart-ocr/internal/speech"
	"github.com/ironsheep/smart-ocr/internal/voice"
)

// NoticePermissionDenied is shown when a required grant is refused.
const NoticePermissionDenied = "Permissions not granted by the user."

// Screen is the user-facing surface. Implementations may be called from
// any goroutine and must move the work onto the UI goroutine themselves.
type Screen interface {
	// SetStatus receives the full detected text.
	SetStatus(text string)
	// Toast shows a short notice.
	Toast(msg string)
}

// Deps are the controller's collaborators. VoiceRecognizer may be nil when
// speech recognition is unavailable; Preview may be nil.
type Deps struct {
	Gate               *permission.Gate
	Pipeline           *camera.Pipeline
	Source             camera.Source
	Preview            camera.PreviewSink
	Recognizer         recognition.Recognizer
	RecognitionOptions recognition.Options
	Engine             speech.Engine
	SpeechOptions      speech.Options
	VoiceRecognizer    voice.Recognizer
	Dispatcher         voice.Dispatcher
	Triggers           *voice.Triggers
	VoiceRequest       voice.Request
	Screen             Screen
}

// Controller owns the detected-text slot and routes gestures and voice
// commands to speech.
type Controller struct {
	deps     Deps
	log      *log.Logger
	speaker  *speech.Speaker
	listener *voice.Listener

	detected atomic.Pointer[string]

	once sync.Once
	done chan struct{}
	err  error
}

// New builds a controller. Nothing runs until Start.
func New(deps Deps, logger *log.Logger) *Controller {
	c := &Controller{
		deps: deps,
		log:  logger.WithPrefix("app"),
		done: make(chan struct{}),
	}
	c.speaker = speech.NewSpeaker(deps.Engine, speech.NotifierFunc(deps.Screen.Toast), deps.SpeechOptions, logger)
	if deps.VoiceRecognizer != nil {
		c.listener = voice.NewListener(deps.VoiceRecognizer, deps.Gate, deps.Dispatcher,
			deps.Triggers, deps.VoiceRequest, c.ReadAloud, logger)
	}
	return c
}

// Speaker returns the speech adapter.
func (c *Controller) Speaker() *speech.Speaker { return c.speaker }

// Listener returns the voice command listener, or nil when voice commands
// are unavailable.
func (c *Controller) Listener() *voice.Listener { return c.listener }

// Start initialises speech and asks for permissions. When everything is
// granted it binds the camera and starts listening; otherwise it shows the
// denial notice and finishes with permission.ErrPermissionDenied.
func (c *Controller) Start(ctx context.Context) {
	c.speaker.Init(ctx, func(err error) {
		if err != nil {
			c.log.Warn("Speech unavailable, read-aloud disabled", "err", err)
		}
	})
	c.deps.Gate.RequestIfNeeded(ctx, func(granted bool) {
		if !granted {
			c.deps.Screen.Toast(NoticePermissionDenied)
			c.finish(permission.ErrPermissionDenied)
			return
		}
		c.startCamera(ctx)
		if c.listener != nil {
			c.listener.Start()
		} else {
			c.log.Info("Voice commands unavailable")
		}
	})
}

func (c *Controller) startCamera(ctx context.Context) {
	adapter := recognition.NewAdapter(c.deps.Recognizer, c.OnText, c.deps.RecognitionOptions, c.log)
	if err := c.deps.Pipeline.Bind(ctx, c.deps.Source, c.deps.Preview, adapter); err != nil {
		c.log.Warn("Continuing without camera", "err", err)
	}
}

// OnText stores the latest recognized text and forwards it to the overlay.
// It runs on the analysis goroutine.
func (c *Controller) OnText(text string) {
	c.detected.Store(&text)
	c.deps.Screen.SetStatus(text)
}

// DetectedText returns the most recent recognition result, or "" before the
// first one.
func (c *Controller) DetectedText() string {
	if p := c.detected.Load(); p != nil {
		return *p
	}
	return ""
}

// ReadAloud speaks the detected text. It is the target of both the double
// tap and the voice command.
func (c *Controller) ReadAloud() {
	c.speaker.Speak(c.DetectedText())
}

// Done is closed when the controller finishes on its own, such as after a
// permission denial.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Err returns why the controller finished, or nil.
func (c *Controller) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Controller) finish(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Shutdown releases resources in order: analysis executor, speech, the
// speech recognizer, then the text recognizer. The camera is unbound and any
// in-flight recognition has returned before the text recognizer is closed.
func (c *Controller) Shutdown() {
	if stats, err := c.deps.Pipeline.Stats(); err == nil {
		c.log.Info("Camera session ended", "delivered", stats.Delivered, "processed", stats.Processed, "dropped", stats.Dropped)
	}
	c.deps.Pipeline.Stop()
	c.speaker.Stop()
	c.speaker.Shutdown()
	if c.listener != nil {
		c.log.Info("Voice session ended", "sessions", c.listener.Sessions(), "matched", c.listener.Matched())
		if err := c.listener.Stop(); err != nil {
			c.log.Warn("Failed to destroy speech recognizer", "err", err)
		}
	}
	if err := c.deps.Recognizer.Close(); err != nil {
		c.log.Warn("Failed to close text recognizer", "err", err)
	}
	c.finish(nil)
}
