package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Recorder captures one window of microphone audio as WAV bytes.
type Recorder interface {
	Record(ctx context.Context) ([]byte, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav io.Reader, language string) (string, error)
}

// DefaultWindow is how long each listening session records.
const DefaultWindow = 4 * time.Second

// RecorderArgs returns an arecord command line that writes a mono 16 kHz
// WAV of the given length to stdout.
func RecorderArgs(binary string, window time.Duration) []string {
	if binary == "" {
		binary = "arecord"
	}
	secs := int(window.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return []string{binary, "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-d", strconv.Itoa(secs), "-t", "wav", "-"}
}

// CommandRecorder runs a recorder command and collects its stdout.
type CommandRecorder struct {
	Argv []string
}

// NewCommandRecorder checks that the recorder binary exists.
func NewCommandRecorder(argv []string) (*CommandRecorder, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty recorder command")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("recorder %q not found: %w", argv[0], err)
	}
	return &CommandRecorder{Argv: argv}, nil
}

// Record runs the command until it exits.
func (r *CommandRecorder) Record(ctx context.Context) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Argv[0], r.Argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("recording failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("recorder produced no audio")
	}
	return stdout.Bytes(), nil
}

// OpenAITranscriber uses the OpenAI audio transcription endpoint.
type OpenAITranscriber struct {
	client openai.Client
	model  openai.AudioModel
}

// NewOpenAITranscriber creates a transcriber. An empty model means whisper-1.
func NewOpenAITranscriber(apiKey, baseURL, model string) *OpenAITranscriber {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	m := openai.AudioModel(model)
	if model == "" {
		m = openai.AudioModelWhisper1
	}
	return &OpenAITranscriber{client: openai.NewClient(opts...), model: m}
}

// Transcribe uploads wav and returns the recognized text. language is an
// ISO-639-1 code; empty lets the service detect it.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, wav io.Reader, language string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(wav, "audio.wav", "audio/wav"),
		Model: t.model,
	}
	if language != "" {
		params.Language = openai.String(language)
	}
	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return resp.Text, nil
}

// WhisperConfig configures NewWhisperRecognizer.
type WhisperConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Recorder []string // argv; defaults to RecorderArgs("arecord", DefaultWindow)
	Timeout  time.Duration
}

// WhisperRecognizer records a fixed window per session and transcribes it.
// It reports EndOfSpeech as soon as recording stops, so the next session
// can start while the previous window is still being transcribed.
type WhisperRecognizer struct {
	rec     Recorder
	tr      Transcriber
	timeout time.Duration
	log     *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	recCancel context.CancelFunc
	destroyed bool
	wg        sync.WaitGroup
}

// NewWhisperRecognizer returns ErrUnavailable when there is no API key or
// no recorder binary.
func NewWhisperRecognizer(cfg WhisperConfig, logger *log.Logger) (*WhisperRecognizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key", ErrUnavailable)
	}
	argv := cfg.Recorder
	if len(argv) == 0 {
		argv = RecorderArgs("", DefaultWindow)
	}
	rec, err := NewCommandRecorder(argv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	tr := NewOpenAITranscriber(cfg.APIKey, cfg.BaseURL, cfg.Model)
	return NewRecognizer(rec, tr, cfg.Timeout, logger), nil
}

// NewRecognizer builds a WhisperRecognizer from explicit parts. A zero
// timeout means 30 seconds per transcription.
func NewRecognizer(rec Recorder, tr Transcriber, timeout time.Duration, logger *log.Logger) *WhisperRecognizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WhisperRecognizer{
		rec:     rec,
		tr:      tr,
		timeout: timeout,
		log:     logger.WithPrefix("stt"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// StartListening records and transcribes on a new goroutine. A session
// still recording is cancelled first.
func (w *WhisperRecognizer) StartListening(req Request, sink func(Event)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return ErrDestroyed
	}
	if w.recCancel != nil {
		w.recCancel()
	}
	recCtx, recCancel := context.WithCancel(w.ctx)
	w.recCancel = recCancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer recCancel()
		w.session(recCtx, req, sink)
	}()
	return nil
}

func (w *WhisperRecognizer) session(recCtx context.Context, req Request, sink func(Event)) {
	sink(Event{Kind: ReadyForSpeech})

	audio, err := w.rec.Record(recCtx)
	if err != nil {
		if recCtx.Err() != nil {
			// superseded by a newer session or destroyed
			return
		}
		sink(Event{Kind: Error, Err: err})
		return
	}
	sink(Event{Kind: EndOfSpeech})

	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()
	start := time.Now()
	text, err := w.tr.Transcribe(ctx, bytes.NewReader(audio), whisperLanguage(req.Language))
	if err != nil {
		sink(Event{Kind: Error, Err: err})
		return
	}
	w.log.Debug("Transcribed", "text", text, "took", time.Since(start))

	text = strings.TrimSpace(text)
	if text == "" {
		sink(Event{Kind: Results})
		return
	}
	sink(Event{Kind: Results, Phrases: []string{text}})
}

// Destroy cancels any session and waits for its goroutine to return.
func (w *WhisperRecognizer) Destroy() error {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return nil
	}
	w.destroyed = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	return nil
}

// whisperLanguage reduces a BCP 47 tag such as "hi-IN" to the ISO-639-1
// code the transcription service accepts.
func whisperLanguage(tag string) string {
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
