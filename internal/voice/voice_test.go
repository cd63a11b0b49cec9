package voice

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ironsheep/smart-ocr/internal/logging"
)

func TestTriggers_Match(t *testing.T) {
	tr := NewTriggers()

	tests := []struct {
		phrase string
		want   bool
	}{
		{"umbrella read what is in front of me today", true},
		{"hello world", false},
		{"READ WHAT it says", true},
		{"what is in Front Of Me", true},
		{"mere saamne kya hai", true},
		{"samne kya likha hai", true},
		{"मेरे सामने क्या है", true},
		{"सामने क्या लिखा है", true},
		{"reading what", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tr.Match(tt.phrase); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.phrase, got, tt.want)
		}
	}
}

func TestTriggers_CustomPhrasesAreNormalised(t *testing.T) {
	tr := NewTriggers("  Speak Up ", "", "   ")
	if got := tr.Phrases(); len(got) != 1 || got[0] != "speak up" {
		t.Fatalf("phrases: got %q, want [\"speak up\"]", got)
	}
	if !tr.Match("please SPEAK UP now") {
		t.Error("custom trigger did not match")
	}
}

// fakeRecognizer keeps the sink of every session so tests can drive events.
type fakeRecognizer struct {
	mu        sync.Mutex
	sinks     []func(Event)
	reqs      []Request
	startErr  error
	destroyed bool
}

func (r *fakeRecognizer) StartListening(req Request, sink func(Event)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.sinks = append(r.sinks, sink)
	r.reqs = append(r.reqs, req)
	return nil
}

func (r *fakeRecognizer) Destroy() error {
	r.mu.Lock()
	r.destroyed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeRecognizer) sink(i int) func(Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sinks[i]
}

func (r *fakeRecognizer) starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}

type perms struct{ granted atomic.Bool }

func (p *perms) AllGranted() bool { return p.granted.Load() }

func granted() *perms {
	p := &perms{}
	p.granted.Store(true)
	return p
}

// inlineDispatcher runs functions immediately and counts them.
type inlineDispatcher struct{ n atomic.Int32 }

func (d *inlineDispatcher) Dispatch(fn func()) {
	d.n.Add(1)
	fn()
}

type fixture struct {
	rec      *fakeRecognizer
	perms    *perms
	dispatch *inlineDispatcher
	reads    atomic.Int32
	l        *Listener
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{rec: &fakeRecognizer{}, perms: granted(), dispatch: &inlineDispatcher{}}
	f.l = NewListener(f.rec, f.perms, f.dispatch, nil, DefaultRequest(), func() { f.reads.Add(1) }, logging.Discard())
	return f
}

func TestListener_StartRequiresPermissions(t *testing.T) {
	f := newFixture(t)
	f.perms.granted.Store(false)
	f.l.Start()

	if f.l.Listening() {
		t.Error("listening flag set without permissions")
	}
	if f.rec.starts() != 0 {
		t.Errorf("sessions started: got %d, want 0", f.rec.starts())
	}
}

func TestListener_StartDispatchesSession(t *testing.T) {
	f := newFixture(t)
	f.l.Start()

	if !f.l.Listening() {
		t.Error("listening flag not set")
	}
	if f.rec.starts() != 1 {
		t.Fatalf("sessions started: got %d, want 1", f.rec.starts())
	}
	if f.dispatch.n.Load() != 1 {
		t.Errorf("dispatched: got %d, want 1", f.dispatch.n.Load())
	}
	if f.rec.reqs[0].Language != "hi-IN" || f.rec.reqs[0].MaxResults != 3 {
		t.Errorf("request: got %+v", f.rec.reqs[0])
	}
}

func TestListener_RestartsOnEveryTerminalEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
	}{
		{"results", Event{Kind: Results, Phrases: []string{"hello"}}},
		{"error", Event{Kind: Error, Err: errors.New("no match")}},
		{"end of speech", Event{Kind: EndOfSpeech}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.l.Start()
			f.rec.sink(0)(tt.ev)

			if f.rec.starts() != 2 {
				t.Errorf("sessions after %s: got %d, want 2", tt.name, f.rec.starts())
			}
		})
	}
}

func TestListener_ReadyDoesNotRestart(t *testing.T) {
	f := newFixture(t)
	f.l.Start()
	f.rec.sink(0)(Event{Kind: ReadyForSpeech})

	if f.rec.starts() != 1 {
		t.Errorf("sessions: got %d, want 1", f.rec.starts())
	}
}

func TestListener_OneRestartPerSession(t *testing.T) {
	f := newFixture(t)
	f.l.Start()
	sink := f.rec.sink(0)
	sink(Event{Kind: EndOfSpeech})
	sink(Event{Kind: Results, Phrases: []string{"read what is here"}})

	if f.rec.starts() != 2 {
		t.Errorf("sessions: got %d, want 2", f.rec.starts())
	}
	if f.reads.Load() != 1 {
		t.Errorf("late results still trigger: got %d reads, want 1", f.reads.Load())
	}
}

func TestListener_ErrorRestartHasNoCap(t *testing.T) {
	f := newFixture(t)
	f.l.Start()
	for i := 0; i < 50; i++ {
		f.rec.sink(i)(Event{Kind: Error, Err: errors.New("network")})
	}

	if f.rec.starts() != 51 {
		t.Errorf("sessions: got %d, want 51", f.rec.starts())
	}
}

func TestListener_NoRestartAfterStop(t *testing.T) {
	f := newFixture(t)
	f.l.Start()
	if err := f.l.Stop(); err != nil {
		t.Fatal(err)
	}
	f.rec.sink(0)(Event{Kind: Error})

	if f.rec.starts() != 1 {
		t.Errorf("sessions after Stop: got %d, want 1", f.rec.starts())
	}
	if !f.rec.destroyed {
		t.Error("recognizer not destroyed")
	}
	if f.l.Listening() {
		t.Error("listening flag still set")
	}
}

func TestListener_NoRestartAfterRevocation(t *testing.T) {
	f := newFixture(t)
	f.l.Start()
	f.perms.granted.Store(false)
	f.rec.sink(0)(Event{Kind: EndOfSpeech})

	if f.rec.starts() != 1 {
		t.Errorf("sessions after revocation: got %d, want 1", f.rec.starts())
	}
}

func TestListener_OneReadPerMatchingPhrase(t *testing.T) {
	f := newFixture(t)
	f.l.Start()
	f.rec.sink(0)(Event{Kind: Results, Phrases: []string{
		"umbrella read what is in front of me today",
		"hello world",
		"what is in front of me",
	}})

	if f.reads.Load() != 2 {
		t.Errorf("reads: got %d, want 2", f.reads.Load())
	}
	if f.l.Matched() != 2 {
		t.Errorf("Matched: got %d, want 2", f.l.Matched())
	}
}

func TestListener_NonMatchingPhraseDoesNotRead(t *testing.T) {
	f := newFixture(t)
	f.l.Start()
	f.rec.sink(0)(Event{Kind: Results, Phrases: []string{"hello world"}})

	if f.reads.Load() != 0 {
		t.Errorf("reads: got %d, want 0", f.reads.Load())
	}
}

func TestListener_StartFailureDoesNotLoop(t *testing.T) {
	f := newFixture(t)
	f.rec.startErr = errors.New("busy")
	f.l.Start()

	if f.dispatch.n.Load() != 1 {
		t.Errorf("dispatched: got %d, want 1", f.dispatch.n.Load())
	}
	if f.l.Sessions() != 1 {
		t.Errorf("Sessions: got %d, want 1", f.l.Sessions())
	}
}

type scriptedRecorder struct {
	audio []byte
	err   error
	block bool
	calls atomic.Int32
}

func (r *scriptedRecorder) Record(ctx context.Context) ([]byte, error) {
	r.calls.Add(1)
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return r.audio, r.err
}

type scriptedTranscriber struct {
	text string
	err  error

	mu   sync.Mutex
	lang string
	got  []byte
}

func (t *scriptedTranscriber) Transcribe(_ context.Context, wav io.Reader, language string) (string, error) {
	b, _ := io.ReadAll(wav)
	t.mu.Lock()
	t.lang = language
	t.got = b
	t.mu.Unlock()
	return t.text, t.err
}

func collect(t *testing.T, w *WhisperRecognizer, n int) []Event {
	t.Helper()
	ch := make(chan Event, 8)
	if err := w.StartListening(DefaultRequest(), func(ev Event) { ch <- ev }); err != nil {
		t.Fatal(err)
	}
	var events []Event
	for len(events) < n {
		select {
		case ev := <-ch:
			events = append(events, ev)
		case <-time.After(time.Second):
			t.Fatalf("got %d events, want %d", len(events), n)
		}
	}
	return events
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestWhisperRecognizer_Results(t *testing.T) {
	rec := &scriptedRecorder{audio: []byte("RIFF....WAVE")}
	tr := &scriptedTranscriber{text: " Read what is in front of me "}
	w := NewRecognizer(rec, tr, 0, logging.Discard())
	defer w.Destroy()

	events := collect(t, w, 3)
	want := []EventKind{ReadyForSpeech, EndOfSpeech, Results}
	for i, k := range kinds(events) {
		if k != want[i] {
			t.Fatalf("events: got %v, want %v", kinds(events), want)
		}
	}
	if p := events[2].Phrases; len(p) != 1 || p[0] != "Read what is in front of me" {
		t.Errorf("phrases: got %q", p)
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.lang != "hi" {
		t.Errorf("language: got %q, want hi", tr.lang)
	}
	if string(tr.got) != "RIFF....WAVE" {
		t.Errorf("audio: got %q", tr.got)
	}
}

func TestWhisperRecognizer_EmptyTranscriptGivesEmptyResults(t *testing.T) {
	w := NewRecognizer(&scriptedRecorder{audio: []byte("x")}, &scriptedTranscriber{text: "  "}, 0, logging.Discard())
	defer w.Destroy()

	events := collect(t, w, 3)
	if events[2].Kind != Results || len(events[2].Phrases) != 0 {
		t.Errorf("last event: got %+v, want empty results", events[2])
	}
}

func TestWhisperRecognizer_RecordingError(t *testing.T) {
	w := NewRecognizer(&scriptedRecorder{err: errors.New("no device")}, &scriptedTranscriber{}, 0, logging.Discard())
	defer w.Destroy()

	events := collect(t, w, 2)
	if events[1].Kind != Error || events[1].Err == nil {
		t.Errorf("got %+v, want an error event", events[1])
	}
}

func TestWhisperRecognizer_TranscriptionError(t *testing.T) {
	w := NewRecognizer(&scriptedRecorder{audio: []byte("x")}, &scriptedTranscriber{err: errors.New("401")}, 0, logging.Discard())
	defer w.Destroy()

	events := collect(t, w, 3)
	if got := kinds(events); got[1] != EndOfSpeech || got[2] != Error {
		t.Errorf("events: got %v, want [ready end-of-speech error]", got)
	}
}

func TestWhisperRecognizer_DestroyCancelsRecording(t *testing.T) {
	rec := &scriptedRecorder{block: true}
	w := NewRecognizer(rec, &scriptedTranscriber{}, 0, logging.Discard())

	var mu sync.Mutex
	var events []Event
	if err := w.StartListening(DefaultRequest(), func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		w.Destroy()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Destroy did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, ev := range events {
		if ev.Kind != ReadyForSpeech {
			t.Errorf("unexpected event after destroy: %v", ev.Kind)
		}
	}
	if err := w.StartListening(DefaultRequest(), func(Event) {}); !errors.Is(err, ErrDestroyed) {
		t.Errorf("StartListening after Destroy: got %v, want ErrDestroyed", err)
	}
}

func TestNewWhisperRecognizer_Unavailable(t *testing.T) {
	if _, err := NewWhisperRecognizer(WhisperConfig{}, logging.Discard()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("no API key: got %v, want ErrUnavailable", err)
	}
	_, err := NewWhisperRecognizer(WhisperConfig{
		APIKey:   "sk-test",
		Recorder: []string{"definitely-not-a-recorder"},
	}, logging.Discard())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("missing recorder: got %v, want ErrUnavailable", err)
	}
}

func TestRecorderArgs(t *testing.T) {
	args := RecorderArgs("", 2500*time.Millisecond)
	if args[0] != "arecord" {
		t.Errorf("binary: got %s, want arecord", args[0])
	}
	var dur string
	for i, a := range args {
		if a == "-d" {
			dur = args[i+1]
		}
	}
	if dur != "3" {
		t.Errorf("duration: got %s, want 3", dur)
	}
	if got := RecorderArgs("rec", 0); got[0] != "rec" {
		t.Errorf("custom binary: got %s", got[0])
	}
}

func TestWhisperLanguage(t *testing.T) {
	for in, want := range map[string]string{"hi-IN": "hi", "en_US": "en", "HI": "hi", "": ""} {
		if got := whisperLanguage(in); got != want {
			t.Errorf("whisperLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
