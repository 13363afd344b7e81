package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is a finalized entry in the overlay's chat panel.
// Values are immutable once created; copy, don't mutate.
type ChatMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChatMessage creates a message with a fresh ID and the current time
func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Content:   content,
		Role:      role,
		Timestamp: time.Now(),
	}
}

// IsUser reports whether the message was typed by the user
func (m ChatMessage) IsUser() bool {
	return m.Role == RoleUser
}

// OutboundRequest is one user action handed to the relay.
// Image, when set, is a data URL ("data:image/png;base64,...").
type OutboundRequest struct {
	Prompt string
	Image  string
}

// HasImage reports whether the request carries an image
func (r OutboundRequest) HasImage() bool {
	return r.Image != ""
}
