// Package chat holds the overlay's UI state: the message log, the input text,
// the processing gate and the buffer that accumulates a streamed answer.
package chat

import (
	"errors"
	"strings"
	"sync"

	"github.com/diogo/ghostbar/internal/models"
)

// DefaultErrorMessage is committed by ReportError when no message is given
const DefaultErrorMessage = "Sorry, I encountered an error while generating a response. Please try again."

var (
	// ErrAlreadyStreaming is returned by StartStreaming outside the Idle state
	ErrAlreadyStreaming = errors.New("a response is already streaming")
	// ErrBusy is returned by BeginRequest while another request is in flight
	ErrBusy = errors.New("a request is already in progress")
)

// State is the stream consumer state
type State int

const (
	StateIdle State = iota
	StateStreaming
)

func (s State) String() string {
	if s == StateStreaming {
		return "streaming"
	}
	return "idle"
}

// streamBuffer accumulates the text of the active stream
type streamBuffer struct {
	id      uint64
	partial strings.Builder
}

// Session is the UI state container. It is owned by the UI task; the mutex
// only keeps misuse from corrupting the log.
type Session struct {
	mu         sync.Mutex
	messages   []models.ChatMessage
	input      string
	processing bool
	state      State
	buffer     streamBuffer
	nextID     uint64
	// generation is bumped by Clear; requests begun before it are stale
	generation uint64
}

// NewSession creates an empty, idle session
func NewSession() *Session {
	return &Session{messages: []models.ChatMessage{}}
}

// State returns the current consumer state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsStreaming reports whether a stream is active
func (s *Session) IsStreaming() bool {
	return s.State() == StateStreaming
}

// StartStreaming enters Streaming with an empty buffer and returns the stream id
func (s *Session) StartStreaming() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return 0, ErrAlreadyStreaming
	}

	s.nextID++
	s.buffer = streamBuffer{id: s.nextID}
	s.state = StateStreaming
	return s.buffer.id, nil
}

// AppendChunk appends text to the active buffer.
// While Idle the chunk is a late arrival and is dropped.
func (s *Session) AppendChunk(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return false
	}
	s.buffer.partial.WriteString(text)
	return true
}

// AppendChunkFor appends text only when id is the active stream
func (s *Session) AppendChunkFor(id uint64, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming || s.buffer.id != id {
		return false
	}
	s.buffer.partial.WriteString(text)
	return true
}

// StreamingText returns the visible typing text of the active stream
func (s *Session) StreamingText() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return ""
	}
	return s.buffer.partial.String()
}

// ActiveStream returns the id of the active stream
func (s *Session) ActiveStream() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.id, s.state == StateStreaming
}

// FinishStreaming commits the trimmed buffer as an assistant message when it
// is not blank, then returns to Idle. From Idle it does nothing.
func (s *Session) FinishStreaming() (models.ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return models.ChatMessage{}, false
	}

	text := strings.TrimSpace(s.buffer.partial.String())
	s.resetLocked()

	if text == "" {
		return models.ChatMessage{}, false
	}

	msg := models.NewChatMessage(models.RoleAssistant, text)
	s.messages = append(s.messages, msg)
	return msg, true
}

// ReportError discards any partial answer, commits exactly one fallback
// assistant message and forces Idle, even mid-stream.
func (s *Session) ReportError(message string) models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(message) == "" {
		message = DefaultErrorMessage
	}

	s.resetLocked()
	msg := models.NewChatMessage(models.RoleAssistant, message)
	s.messages = append(s.messages, msg)
	return msg
}

// resetLocked drops the buffer and returns to Idle. Caller holds s.mu.
func (s *Session) resetLocked() {
	s.buffer.partial.Reset()
	s.state = StateIdle
}

// AddUserMessage appends the user's prompt to the log
func (s *Session) AddUserMessage(content string) models.ChatMessage {
	return s.addMessage(models.RoleUser, content)
}

// AddAssistantMessage appends a complete (non-streamed) answer to the log
func (s *Session) AddAssistantMessage(content string) models.ChatMessage {
	return s.addMessage(models.RoleAssistant, content)
}

// AddMessageIn appends a message only while gen is the current generation.
// A request that outlived a Clear uses it to drop its answer.
func (s *Session) AddMessageIn(gen uint64, role models.Role, content string) (models.ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return models.ChatMessage{}, false
	}
	msg := models.NewChatMessage(role, content)
	s.messages = append(s.messages, msg)
	return msg, true
}

func (s *Session) addMessage(role models.Role, content string) models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := models.NewChatMessage(role, content)
	s.messages = append(s.messages, msg)
	return msg
}

// Messages returns a copy of the message log
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastAssistantMessage returns the most recent assistant message
func (s *Session) LastAssistantMessage() (models.ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == models.RoleAssistant {
			return s.messages[i], true
		}
	}
	return models.ChatMessage{}, false
}

// SetInput stores the text currently typed in the input bar
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

// Input returns the text currently typed in the input bar
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// BeginRequest marks a request as in flight. A second concurrent request is rejected.
func (s *Session) BeginRequest() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing {
		return ErrBusy
	}
	s.processing = true
	return nil
}

// BeginRequestIn is BeginRequest that also returns the generation the
// request belongs to
func (s *Session) BeginRequestIn() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing {
		return 0, ErrBusy
	}
	s.processing = true
	return s.generation, nil
}

// EndRequest clears the in-flight flag
func (s *Session) EndRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
}

// EndRequestIn clears the in-flight flag only while gen is current, so a
// stale request cannot release the gate held by a newer one
func (s *Session) EndRequestIn(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}
	s.processing = false
	return true
}

// Generation returns the number of times the session was cleared
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// IsProcessing reports whether a request is in flight
func (s *Session) IsProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// Clear empties the log, the input and any active stream.
// Stream ids and the generation keep increasing so chunks of a dropped
// stream and answers of a dropped request stay stale.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.messages = []models.ChatMessage{}
	s.input = ""
	s.processing = false
	s.resetLocked()
}
