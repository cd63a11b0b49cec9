package speech

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// DefaultBinary is the synthesizer CommandEngine runs.
const DefaultBinary = "espeak-ng"

// Voice is one installed synthesizer voice.
type Voice struct {
	Tag  language.Tag
	Name string // identifier passed to -v
}

// ParseVoices reads the table printed by `espeak-ng --voices`. The second
// column holds the voice's language code. Rows whose code does not parse as
// a BCP 47 tag are skipped.
func ParseVoices(r io.Reader) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		tag, err := language.Parse(fields[1])
		if err != nil {
			continue
		}
		voices = append(voices, Voice{Tag: tag, Name: fields[1]})
	}
	return voices
}

// CommandEngine is an Engine that runs one synthesizer process per
// utterance.
type CommandEngine struct {
	Binary string
	Rate   int // words per minute, 0 keeps the synthesizer default

	mu      sync.Mutex
	path    string
	voices  []Voice
	matcher language.Matcher
	voice   string
	cmd     *exec.Cmd
	closed  bool
}

// NewCommandEngine returns an engine for binary, or DefaultBinary if empty.
func NewCommandEngine(binary string, rate int) *CommandEngine {
	if binary == "" {
		binary = DefaultBinary
	}
	return &CommandEngine{Binary: binary, Rate: rate}
}

// Init locates the binary and lists its voices.
func (e *CommandEngine) Init(ctx context.Context) error {
	path, err := exec.LookPath(e.Binary)
	if err != nil {
		return fmt.Errorf("speech synthesizer %q not found: %w", e.Binary, err)
	}

	out, err := exec.CommandContext(ctx, path, "--voices").Output()
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}
	voices := ParseVoices(bytes.NewReader(out))
	if len(voices) == 0 {
		return errors.New("speech synthesizer reports no voices")
	}

	tags := make([]language.Tag, len(voices))
	for i, v := range voices {
		tags[i] = v.Tag
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.path = path
	e.voices = voices
	e.matcher = language.NewMatcher(tags)
	return nil
}

// SetLanguage picks the installed voice closest to tag. A match weaker than
// language.High counts as not supported and leaves the voice unchanged.
func (e *CommandEngine) SetLanguage(tag language.Tag) (Availability, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.matcher == nil {
		return LangMissingData, ErrNotInitialized
	}
	_, idx, conf := e.matcher.Match(tag)
	if conf < language.High {
		return LangNotSupported, nil
	}
	e.voice = e.voices[idx].Name
	return LangAvailable, nil
}

// Voices returns the voices found by Init.
func (e *CommandEngine) Voices() []Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Voice(nil), e.voices...)
}

// Speak runs the synthesizer with text on stdin and waits for it to exit.
func (e *CommandEngine) Speak(ctx context.Context, utteranceID, text string) error {
	e.mu.Lock()
	if e.path == "" || e.closed {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	args := []string{"--stdin"}
	if e.voice != "" {
		args = append(args, "-v", e.voice)
	}
	if e.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(e.Rate))
	}
	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Start(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("utterance %s: %w", utteranceID, err)
	}
	e.cmd = cmd
	e.mu.Unlock()

	err := cmd.Wait()

	e.mu.Lock()
	if e.cmd == cmd {
		e.cmd = nil
	}
	e.mu.Unlock()

	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("utterance %s: %w", utteranceID, err)
	}
	return nil
}

// Stop kills the running synthesizer process.
func (e *CommandEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	err := e.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Shutdown stops speech and refuses further utterances.
func (e *CommandEngine) Shutdown() error {
	err := e.Stop()
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return err
}
