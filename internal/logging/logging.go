// Package logging configures the apex/log logger shared by the CLI and the overlay.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/discard"
	"github.com/apex/log/handlers/text"
)

// Options selects where log entries go
type Options struct {
	// Level is one of debug, info, warn, error, fatal
	Level string
	// File receives entries when Verbose is false. Empty discards them.
	File string
	// Verbose writes entries to Stderr instead of File
	Verbose bool
	Stderr  io.Writer
}

// Setup installs the handler and level on the package-level logger and returns
// a closer for the log file, if one was opened.
func Setup(opts Options) (io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	if opts.Verbose {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		log.SetHandler(cli.New(w))
		log.SetLevel(level)
		return io.NopCloser(nil), nil
	}

	if opts.File == "" {
		log.SetHandler(discard.Default)
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log.SetHandler(text.New(f))
	log.SetLevel(level)
	return f, nil
}

// ParseLevel accepts apex/log level names, defaulting to info when empty
func ParseLevel(s string) (log.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// Component returns a logger tagged with a component name
func Component(name string) log.Interface {
	return log.WithField("component", name)
}
