// Package logging builds the application logger.
//
// The terminal UI owns stdout, so log output goes to a file. When no file is
// configured the logger writes to stderr, which is what the CLI subcommands
// that do not start the UI use.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Options configures New.
type Options struct {
	// Level is one of "debug", "info", "warn" or "error". Empty means info.
	Level string

	// File is the path log lines are appended to. Empty means stderr.
	File string
}

// New returns a logger and a close function that releases the log file.
// The close function is always non-nil.
func New(opts Options) (*log.Logger, func() error, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	var out io.Writer = os.Stderr
	closer := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closer = f.Close
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "SmartOCR",
	})
	return logger, closer, nil
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
