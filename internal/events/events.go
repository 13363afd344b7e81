// Package events carries relay output to the overlay as typed, named events.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/diogo/ghostbar/internal/api"
	apierrors "github.com/diogo/ghostbar/internal/errors"
)

// Event names
const (
	StreamChunk       = "stream.chunk"
	StreamDone        = "stream.done"
	StreamError       = "stream.error"
	OverlayVisibility = "overlay.visibility"
)

// DefaultBuffer is the capacity of a Channel created with size <= 0
const DefaultBuffer = 100

// Event is one named message with its payload
type Event struct {
	Type      string
	Payload   interface{}
	Source    string
	Timestamp time.Time
}

// Chunk is the payload of StreamChunk
type Chunk struct {
	StreamID uint64
	Text     string
}

// Done is the payload of StreamDone
type Done struct {
	StreamID uint64
}

// Failure is the payload of StreamError. Message is the user-facing text.
type Failure struct {
	StreamID uint64
	Message  string
	Err      error
}

// Visibility is the payload of OverlayVisibility
type Visibility struct {
	Visible bool
}

// New builds an event stamped with the current time
func New(eventType string, payload interface{}, source string) Event {
	return Event{
		Type:      eventType,
		Payload:   payload,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// IsTerminal reports whether the event ends a stream
func (e Event) IsTerminal() bool {
	return e.Type == StreamDone || e.Type == StreamError
}

// StreamID returns the stream an event belongs to, if any
func (e Event) StreamID() (uint64, bool) {
	switch p := e.Payload.(type) {
	case Chunk:
		return p.StreamID, true
	case Done:
		return p.StreamID, true
	case Failure:
		return p.StreamID, true
	default:
		return 0, false
	}
}

// Channel delivers events to a single receiver. Each event is received at most once.
type Channel struct {
	buffer chan Event
	done   chan struct{}
	once   sync.Once
}

// NewChannel creates a channel with the given buffer size
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Channel{
		buffer: make(chan Event, size),
		done:   make(chan struct{}),
	}
}

// Emit queues an event. It blocks while the buffer is full and returns false
// when ctx ends or the channel is closed first.
func (c *Channel) Emit(ctx context.Context, ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.buffer <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	}
}

// TryEmit queues an event only when the buffer has room
func (c *Channel) TryEmit(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.buffer <- ev:
		return true
	default:
		return false
	}
}

// C returns the receive side
func (c *Channel) C() <-chan Event {
	return c.buffer
}

// Done is closed once Close has been called
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close stops further emits. Queued events stay readable from C.
func (c *Channel) Close() {
	c.once.Do(func() { close(c.done) })
}

// Pump forwards a relay stream as chunk events followed by exactly one done
// or error event. A stream that closes without a terminal event is reported
// as an error.
func Pump(ctx context.Context, id uint64, stream <-chan api.StreamEvent, ch *Channel) {
	const source = "relay"

	for ev := range stream {
		switch ev.Kind {
		case api.EventDelta:
			if ev.Text == "" {
				continue
			}
			if !ch.Emit(ctx, New(StreamChunk, Chunk{StreamID: id, Text: ev.Text}, source)) {
				// receiver gone; keep draining so the relay goroutine can finish
				continue
			}
		case api.EventDone:
			ch.Emit(ctx, New(StreamDone, Done{StreamID: id}, source))
			return
		case api.EventError:
			message := ev.Text
			if message == "" {
				message = apierrors.FallbackFor(ev.Err, "")
			}
			ch.Emit(ctx, New(StreamError, Failure{StreamID: id, Message: message, Err: ev.Err}, source))
			return
		}
	}

	err := apierrors.ErrStreamClosed
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	failure := New(StreamError, Failure{
		StreamID: id,
		Message:  apierrors.FallbackFor(err, ""),
		Err:      err,
	}, source)
	if ctx.Err() != nil {
		ch.TryEmit(failure)
		return
	}
	ch.Emit(ctx, failure)
}
