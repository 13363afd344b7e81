// Package overlay owns the state of the floating assistant: whether it is
// shown, its chat session, the attached screenshot and the request in flight.
package overlay

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/apex/log"

	"github.com/diogo/ghostbar/internal/api"
	"github.com/diogo/ghostbar/internal/chat"
	"github.com/diogo/ghostbar/internal/events"
	"github.com/diogo/ghostbar/internal/history"
	"github.com/diogo/ghostbar/internal/models"
)

var (
	// ErrEmptyPrompt is returned when there is neither text nor an image to send
	ErrEmptyPrompt = errors.New("nothing to send")
	// ErrDismissed is returned by Ask when the session was cleared before the answer arrived
	ErrDismissed = errors.New("request dismissed")
)

// TranscriptSaver persists a dismissed session
type TranscriptSaver interface {
	Save(model string, messages []models.ChatMessage) (*history.Transcript, error)
}

// Option configures a Controller
type Option func(*Controller)

// WithTranscripts saves the session on Hide
func WithTranscripts(saver TranscriptSaver) Option {
	return func(c *Controller) {
		c.transcripts = saver
	}
}

// WithLogger sets the logger
func WithLogger(l log.Interface) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEventBuffer sets the capacity of the event channel
func WithEventBuffer(size int) Option {
	return func(c *Controller) {
		c.events = events.NewChannel(size)
	}
}

// Controller wires the relay to the chat session through the event channel
type Controller struct {
	mu          sync.Mutex
	visible     bool
	attachment  string
	cancel      context.CancelFunc
	cancelSeq   uint64
	session     *chat.Session
	relay       api.Relay
	events      *events.Channel
	transcripts TranscriptSaver
	logger      log.Interface
}

// New creates a hidden controller with an empty session
func New(relay api.Relay, opts ...Option) *Controller {
	c := &Controller{
		session: chat.NewSession(),
		relay:   relay,
		logger:  log.Log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.events == nil {
		c.events = events.NewChannel(events.DefaultBuffer)
	}
	return c
}

// Session returns the chat session
func (c *Controller) Session() *chat.Session {
	return c.session
}

// Events returns the receive side of the event channel
func (c *Controller) Events() <-chan events.Event {
	return c.events.C()
}

// Model returns the model the relay talks to
func (c *Controller) Model() string {
	return c.relay.GetModel()
}

// Visible reports whether the overlay is shown
func (c *Controller) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// Show makes the overlay visible
func (c *Controller) Show() {
	c.setVisible(true)
}

// Hide dismisses the overlay. Any request in flight is cancelled, the
// session is saved when a transcript store is configured, then cleared.
func (c *Controller) Hide() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.attachment = ""
	c.mu.Unlock()

	if c.transcripts != nil {
		if msgs := c.session.Messages(); len(msgs) > 0 {
			t, err := c.transcripts.Save(c.relay.GetModel(), msgs)
			if err != nil {
				c.logger.WithError(err).Warn("failed to save transcript")
			} else {
				c.logger.WithField("id", t.ID).Debug("transcript saved")
			}
		}
	}

	c.session.Clear()
	c.setVisible(false)
}

// Reset cancels any request in flight and clears the session without saving it
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.attachment = ""
	c.mu.Unlock()

	c.session.Clear()
}

// Toggle flips visibility and returns the new state
func (c *Controller) Toggle() bool {
	if c.Visible() {
		c.Hide()
		return false
	}
	c.Show()
	return true
}

func (c *Controller) setVisible(visible bool) {
	c.mu.Lock()
	changed := c.visible != visible
	c.visible = visible
	c.mu.Unlock()

	if changed {
		c.events.TryEmit(events.New(events.OverlayVisibility, events.Visibility{Visible: visible}, "overlay"))
	}
}

// Attach sets the screenshot sent with the next question
func (c *Controller) Attach(dataURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachment = dataURL
}

// Attachment returns the pending screenshot, if any
func (c *Controller) Attachment() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachment
}

// takeAttachment returns and clears the pending screenshot
func (c *Controller) takeAttachment() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	image := c.attachment
	c.attachment = ""
	return image
}

// Submit sends a question with streaming. The answer arrives as events on
// Events and must be fed back through Apply.
func (c *Controller) Submit(ctx context.Context, prompt string) (uint64, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" && c.Attachment() == "" {
		return 0, ErrEmptyPrompt
	}

	if err := c.session.BeginRequest(); err != nil {
		return 0, err
	}

	id, err := c.session.StartStreaming()
	if err != nil {
		c.session.EndRequest()
		return 0, err
	}

	image := c.takeAttachment()
	c.session.AddUserMessage(userText(prompt, image))
	c.session.SetInput("")

	reqCtx, _ := c.withCancel(ctx)

	c.logger.WithFields(log.Fields{
		"stream":    id,
		"has_image": image != "",
	}).Debug("submitting question")

	stream := c.relay.SendMessageStream(reqCtx, prompt, image)
	go events.Pump(reqCtx, id, stream, c.events)

	return id, nil
}

// Ask sends a question without streaming and commits the answer directly.
// Hide or Reset cancel it; an answer that arrives after either is dropped
// and ErrDismissed is returned.
func (c *Controller) Ask(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" && c.Attachment() == "" {
		return "", ErrEmptyPrompt
	}

	gen, err := c.session.BeginRequestIn()
	if err != nil {
		return "", err
	}

	image := c.takeAttachment()
	if _, ok := c.session.AddMessageIn(gen, models.RoleUser, userText(prompt, image)); !ok {
		return "", ErrDismissed
	}

	reqCtx, seq := c.withCancel(ctx)
	answer := c.relay.SendMessage(reqCtx, prompt, image)
	c.releaseCancel(seq)

	if _, ok := c.session.AddMessageIn(gen, models.RoleAssistant, answer); !ok {
		c.logger.WithField("generation", gen).Debug("dropping answer of a dismissed request")
		return "", ErrDismissed
	}
	c.session.EndRequestIn(gen)
	return answer, nil
}

// Apply feeds an event into the session. It reports whether the visible
// state changed. Events of a stream that is no longer active are dropped.
func (c *Controller) Apply(ev events.Event) bool {
	switch p := ev.Payload.(type) {
	case events.Chunk:
		return c.session.AppendChunkFor(p.StreamID, p.Text)

	case events.Done:
		if !c.isActive(p.StreamID) {
			return false
		}
		c.session.FinishStreaming()
		c.endRequest()
		return true

	case events.Failure:
		if !c.isActive(p.StreamID) {
			return false
		}
		if p.Err != nil {
			c.logger.WithError(p.Err).WithField("stream", p.StreamID).Debug("stream failed")
		}
		c.session.ReportError(p.Message)
		c.endRequest()
		return true

	case events.Visibility:
		return true
	}
	return false
}

// Close cancels the request in flight and stops the event channel
func (c *Controller) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.events.Close()
}

func (c *Controller) isActive(id uint64) bool {
	active, ok := c.session.ActiveStream()
	return ok && active == id
}

// withCancel derives the request context and records its cancel func so
// Hide, Reset and Close can stop it
func (c *Controller) withCancel(ctx context.Context) (context.Context, uint64) {
	reqCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelSeq++
	c.cancel = cancel
	return reqCtx, c.cancelSeq
}

// releaseCancel cancels the request registered as seq and forgets it,
// unless a newer request has replaced it
func (c *Controller) releaseCancel(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelSeq == seq && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) endRequest() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.session.EndRequest()
}

// userText is what the log shows for a question
func userText(prompt, image string) string {
	switch {
	case image == "":
		return prompt
	case prompt == "":
		return "[screenshot]"
	default:
		return prompt + "\n[screenshot]"
	}
}
