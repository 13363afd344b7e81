package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/ghostbar/internal/errors"
	"github.com/diogo/ghostbar/internal/models"
)

// StreamEventKind tells deltas apart from the terminal events
type StreamEventKind int

const (
	EventDelta StreamEventKind = iota
	EventDone
	EventError
)

func (k StreamEventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// StreamEvent is one item of a streamed answer.
// For EventError, Text holds the fallback message and Err the cause.
type StreamEvent struct {
	Kind StreamEventKind
	Text string
	Err  error
}

// IsTerminal reports whether the event ends the stream
func (e StreamEvent) IsTerminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}

// streamBuffer is the channel capacity between the reader goroutine and the consumer
const streamBuffer = 64

// SendMessageStream sends the same payload as SendMessage with stream enabled.
// The returned channel yields EventDelta items followed by exactly one
// EventDone or EventError, then closes. It cannot be restarted.
func (c *Client) SendMessageStream(ctx context.Context, prompt, image string) <-chan StreamEvent {
	s := c.snapshot()
	events := make(chan StreamEvent, streamBuffer)

	go func() {
		defer close(events)

		if s.apiKey == "" {
			c.logger.Info("no API key configured, streaming demo response")
			events <- StreamEvent{Kind: EventDelta, Text: NoCredentialMessage}
			events <- StreamEvent{Kind: EventDone}
			return
		}

		err := c.stream(ctx, s, prompt, image, func(text string) bool {
			select {
			case events <- StreamEvent{Kind: EventDelta, Text: text}:
				return true
			case <-ctx.Done():
				return false
			}
		})

		terminal := StreamEvent{Kind: EventDone}
		if err != nil {
			category := apierrors.Classify(err)
			c.logger.WithError(err).WithFields(log.Fields{
				"model":    s.model,
				"category": category.String(),
				"status":   apierrors.GetHTTPStatus(err),
			}).Warn("chat completion stream failed")
			terminal = StreamEvent{Kind: EventError, Text: apierrors.FallbackMessage(category, s.model), Err: err}
		}

		// The terminal event wins over cancellation whenever the buffer has
		// room. Only a full buffer after cancel falls back to the close.
		select {
		case events <- terminal:
		default:
			select {
			case events <- terminal:
			case <-ctx.Done():
			}
		}
	}()

	return events
}

// stream performs the streamed request, calling onDelta for each non-empty text delta
func (c *Client) stream(ctx context.Context, s requestSettings, prompt, image string, onDelta func(string) bool) error {
	body, err := buildPayload(s, prompt, image, true)
	if err != nil {
		return fmt.Errorf("failed to build payload: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchdog := newIdleWatchdog(s.timeout, cancel)
	defer watchdog.stop()

	req, err := newRequest(ctx, s, body, true)
	if err != nil {
		return err
	}

	c.logger.WithFields(log.Fields{
		"model":     s.model,
		"has_image": image != "",
		"endpoint":  s.endpoint,
	}).Debug("opening chat completion stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, s, err, watchdog.fired())
	}
	defer func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, s.endpoint)
	}

	watchdog.watch(resp.Body)
	stopClose := context.AfterFunc(ctx, func() { _ = resp.Body.Close() })
	defer stopClose()

	stats, err := readFrames(resp.Body, watchdog.touch, onDelta)
	c.logger.WithFields(log.Fields{
		"deltas":  stats.deltas,
		"skipped": stats.skipped,
		"done":    stats.sawSentinel,
	}).Debug("chat completion stream ended")

	if err != nil {
		return transportError(ctx, s, err, watchdog.fired())
	}
	if stats.aborted {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return context.Canceled
	}
	return nil
}

// frameStats summarizes one stream read
type frameStats struct {
	deltas      int
	skipped     int
	sawSentinel bool
	aborted     bool
}

// readFrames consumes line-delimited "data:" frames until the sentinel or EOF.
// Lines without the data prefix are ignored and malformed payloads are skipped.
func readFrames(r io.Reader, onLine func(), onDelta func(string) bool) (frameStats, error) {
	var stats frameStats
	reader := bufio.NewReader(r)

	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			onLine()

			text, done, ok := parseFrame(line)
			switch {
			case done:
				stats.sawSentinel = true
				return stats, nil
			case !ok:
				if isDataLine(line) {
					stats.skipped++
				}
			case text != "":
				stats.deltas++
				if !onDelta(text) {
					stats.aborted = true
					return stats, nil
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return stats, nil
			}
			return stats, err
		}
	}
}

// parseFrame interprets one line of the stream.
// done is true for the sentinel; ok is false for ignored or malformed lines.
func parseFrame(line string) (text string, done bool, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	if !isDataLine(line) {
		return "", false, false
	}

	payload := strings.TrimSpace(line[len(models.StreamDataPrefix):])
	if payload == models.StreamSentinel {
		return "", true, true
	}
	if !gjson.Valid(payload) {
		return "", false, false
	}

	content := gjson.Get(payload, PathDeltaContent)
	if content.Type != gjson.String {
		return "", false, true
	}
	return content.Str, false, true
}

func isDataLine(line string) bool {
	return strings.HasPrefix(line, models.StreamDataPrefix)
}

// Collect drains a stream. On success it returns the concatenated deltas.
// On an error event it returns the fallback text and the cause.
func Collect(events <-chan StreamEvent) (string, error) {
	var sb strings.Builder
	for ev := range events {
		switch ev.Kind {
		case EventDelta:
			sb.WriteString(ev.Text)
		case EventDone:
			return sb.String(), nil
		case EventError:
			return ev.Text, ev.Err
		}
	}
	return sb.String(), apierrors.ErrStreamClosed
}

// idleWatchdog cancels a stream when no bytes arrive within the timeout.
// Once the response is open it also closes the body so a blocked read returns.
type idleWatchdog struct {
	timeout time.Duration
	timer   *time.Timer
	mu      sync.Mutex
	body    io.Closer
	didFire bool
}

func newIdleWatchdog(timeout time.Duration, cancel context.CancelFunc) *idleWatchdog {
	w := &idleWatchdog{timeout: timeout}
	w.timer = time.AfterFunc(timeout, func() {
		w.mu.Lock()
		w.didFire = true
		body := w.body
		w.mu.Unlock()

		cancel()
		if body != nil {
			_ = body.Close()
		}
	})
	return w
}

// watch registers the body to close on expiry and restarts the idle window
func (w *idleWatchdog) watch(body io.Closer) {
	w.mu.Lock()
	w.body = body
	w.mu.Unlock()
	w.touch()
}

// touch restarts the idle window
func (w *idleWatchdog) touch() {
	w.timer.Reset(w.timeout)
}

func (w *idleWatchdog) stop() {
	w.timer.Stop()
}

func (w *idleWatchdog) fired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.didFire
}
