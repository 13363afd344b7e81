package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/ghostbar/internal/api"
	apierrors "github.com/diogo/ghostbar/internal/errors"
	"github.com/diogo/ghostbar/internal/logging"
	"github.com/diogo/ghostbar/internal/tui"
)

var clipboardWrite = clipboard.WriteAll

// queryOptions controls a one-shot question
type queryOptions struct {
	// Image is a data URL sent along with the prompt
	Image  string
	Stream bool
	// Output is a file to write the answer to instead of stdout
	Output string
	Copy   bool
	// Decorate shows a spinner and status lines on stderr
	Decorate bool
}

// readPrompt picks the prompt from a file, piped stdin or the positional
// argument, in that order. ok is false when no source supplied one.
func readPrompt(args []string, file string, stdin io.Reader, piped bool) (string, bool, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), true, nil
	}

	if piped && stdin != nil {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", false, fmt.Errorf("failed to read stdin: %w", err)
		}
		if strings.TrimSpace(string(data)) != "" {
			return string(data), true, nil
		}
	}

	if len(args) > 0 {
		return args[0], true, nil
	}

	return "", false, nil
}

// runQuery sends a single question and writes the answer
func runQuery(ctx context.Context, relay api.Relay, prompt string, opts queryOptions, stdout, stderr io.Writer) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" && opts.Image == "" {
		return fmt.Errorf("prompt cannot be empty")
	}

	logger := logging.Component("query")
	if !relay.HasCredential() {
		logger.Warn("no API key configured, answering with the demo response")
	}
	logger.WithFields(log.Fields{
		"model":     relay.GetModel(),
		"stream":    opts.Stream,
		"has_image": opts.Image != "",
	}).Debug("sending question")

	var spin *spinner
	if opts.Decorate {
		spin = newSpinner(stderr, "Thinking")
		spin.start()
	}

	startTime := time.Now()
	live := opts.Stream && opts.Output == ""

	var (
		answer string
		err    error
	)
	switch {
	case !opts.Stream:
		answer = relay.SendMessage(ctx, prompt, opts.Image)
	case !live:
		answer, err = api.Collect(relay.SendMessageStream(ctx, prompt, opts.Image))
	default:
		answer, err = streamTo(stdout, relay.SendMessageStream(ctx, prompt, opts.Image), spin.halt)
	}

	logger.WithField("took", time.Since(startTime).Round(time.Millisecond).String()).Debug("answer received")

	if err != nil {
		spin.halt()
		if live {
			fmt.Fprintln(stdout)
		}
		errorStyle := lipgloss.NewStyle().Foreground(tui.CurrentTheme().Error)
		fmt.Fprintln(stderr, errorStyle.Render(answer))
		return fmt.Errorf("request failed: %w", err)
	}

	if live {
		spin.halt()
		if !strings.HasSuffix(answer, "\n") {
			fmt.Fprintln(stdout)
		}
	} else {
		spin.stopWithSuccess("Done")
	}

	if opts.Copy {
		if err := clipboardWrite(answer); err != nil {
			logger.WithError(err).Warn("failed to copy answer")
			fmt.Fprintf(stderr, "Failed to copy to clipboard: %v\n", err)
		} else if opts.Decorate {
			fmt.Fprintln(stderr, "Copied to clipboard")
		}
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(answer), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if opts.Decorate {
			fmt.Fprintf(stderr, "Answer saved to %s\n", opts.Output)
		}
		return nil
	}

	if !live {
		fmt.Fprintln(stdout, answer)
	}
	return nil
}

// streamTo writes deltas as they arrive. onFirst runs before the first
// write. On an error event it returns the fallback text and the cause.
func streamTo(w io.Writer, stream <-chan api.StreamEvent, onFirst func()) (string, error) {
	var sb strings.Builder
	first := true
	for ev := range stream {
		switch ev.Kind {
		case api.EventDelta:
			if first {
				onFirst()
				first = false
			}
			sb.WriteString(ev.Text)
			fmt.Fprint(w, ev.Text)
		case api.EventDone:
			return sb.String(), nil
		case api.EventError:
			return ev.Text, ev.Err
		}
	}
	return apierrors.MsgUnknown, apierrors.ErrStreamClosed
}

// formatErrorMessage formats an error with additional context from structured errors
func formatErrorMessage(err error, prefix string) string {
	if err == nil {
		return ""
	}

	theme := tui.CurrentTheme()
	errorStyle := lipgloss.NewStyle().Foreground(theme.Error)
	dimStyle := lipgloss.NewStyle().Foreground(theme.TextDim)

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %v", prefix, err)))

	if status := apierrors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}

	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) && apiErr.Endpoint != "" {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  Endpoint: %s", apiErr.Endpoint)))
	}

	switch apierrors.Classify(err) {
	case apierrors.CategoryUnauthenticated:
		sb.WriteString(dimStyle.Render("\n  Hint: Check your key with 'ghostbar config show' or set OPENAI_API_KEY"))
	case apierrors.CategoryRateLimited:
		sb.WriteString(dimStyle.Render("\n  Hint: You've hit the rate limit. Wait a moment and try again"))
	case apierrors.CategoryModelNotFound:
		sb.WriteString(dimStyle.Render("\n  Hint: Pick another model with --model or 'ghostbar config set model <name>'"))
	case apierrors.CategoryNetworkUnreachable:
		sb.WriteString(dimStyle.Render("\n  Hint: Check your internet connection and the base URL"))
	}

	return sb.String()
}
