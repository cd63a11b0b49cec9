package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

var descriptions = map[Capability]string{
	Camera:     "Needed to read printed text in front of the camera.",
	Microphone: "Needed to hear spoken commands such as \"read what is in front of me\".",
}

// FormPrompter asks for each missing capability with a terminal confirm
// dialog. It must run before the full-screen UI takes over the terminal.
type FormPrompter struct {
	AppName string

	// run shows the form. Nil means (*huh.Form).RunWithContext.
	run func(ctx context.Context, form *huh.Form) error
}

// Prompt shows one confirm per missing capability. Cancelling ctx closes the
// form and returns ctx.Err(). Aborting the form with Esc or Ctrl+C denies
// every capability.
func (p FormPrompter) Prompt(ctx context.Context, missing []Capability) (map[Capability]bool, error) {
	answers := make([]bool, len(missing))
	fields := make([]huh.Field, len(missing))
	for i, c := range missing {
		fields[i] = huh.NewConfirm().
			Title(fmt.Sprintf("Allow %s to use the %s?", p.appName(), c)).
			Description(descriptions[c]).
			Affirmative("Allow").
			Negative("Deny").
			Value(&answers[i])
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	form := huh.NewForm(huh.NewGroup(fields...))
	run := p.run
	if run == nil {
		run = (*huh.Form).RunWithContext
	}
	if err := run(ctx, form); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, huh.ErrUserAborted) {
			return map[Capability]bool{}, nil
		}
		return nil, fmt.Errorf("run permission form: %w", err)
	}

	result := make(map[Capability]bool, len(missing))
	for i, c := range missing {
		result[c] = answers[i]
	}
	return result, nil
}

func (p FormPrompter) appName() string {
	if p.AppName == "" {
		return "smart-ocr"
	}
	return p.AppName
}

// StaticPrompter answers every prompt with the same decision. With Allow set
// it backs the --yes flag.
type StaticPrompter struct {
	Allow bool
}

func (p StaticPrompter) Prompt(_ context.Context, missing []Capability) (map[Capability]bool, error) {
	result := make(map[Capability]bool, len(missing))
	for _, c := range missing {
		result[c] = p.Allow
	}
	return result, nil
}
