package voice

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultTriggers are the phrases that ask for the detected text to be read.
// English, romanised Hindi and Devanagari forms are all accepted.
var DefaultTriggers = []string{
	"read what",
	"front of me",
	"mere saamne",
	"samne kya likha",
	"मेरे सामने",
	"सामने क्या लिखा",
}

// Triggers matches recognized phrases against a fixed set of substrings.
type Triggers struct {
	phrases []string
}

// NewTriggers lower-cases phrases and drops blanks. With no phrases it uses
// DefaultTriggers.
func NewTriggers(phrases ...string) *Triggers {
	if len(phrases) == 0 {
		phrases = DefaultTriggers
	}
	t := &Triggers{}
	for _, p := range phrases {
		p = strings.TrimSpace(lower(p))
		if p != "" {
			t.phrases = append(t.phrases, p)
		}
	}
	return t
}

// Match reports whether the lower-cased phrase contains any trigger.
func (t *Triggers) Match(phrase string) bool {
	p := lower(phrase)
	for _, trig := range t.phrases {
		if strings.Contains(p, trig) {
			return true
		}
	}
	return false
}

// Phrases returns the normalised trigger set.
func (t *Triggers) Phrases() []string {
	return append([]string(nil), t.phrases...)
}

// lower uses a fresh Caser per call; a Caser must not be shared between
// goroutines.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
