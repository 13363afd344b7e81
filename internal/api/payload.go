package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diogo/ghostbar/internal/models"
)

// chatRequest is the JSON body of a chat completions call
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

// chatMessage content is either a string or a list of content parts
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type textPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imagePart struct {
	Type     string   `json:"type"`
	ImageURL imageURL `json:"image_url"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// buildMessages creates the provider message list: system instructions then the user turn.
// With an image the user turn becomes [text, image_url] parts.
func buildMessages(systemPrompt, prompt, image string) []chatMessage {
	messages := []chatMessage{
		{Role: string(models.RoleSystem), Content: systemPrompt},
	}

	if image == "" {
		return append(messages, chatMessage{Role: string(models.RoleUser), Content: prompt})
	}

	return append(messages, chatMessage{
		Role: string(models.RoleUser),
		Content: []any{
			textPart{Type: "text", Text: prompt},
			imagePart{Type: "image_url", ImageURL: imageURL{URL: image, Detail: "auto"}},
		},
	})
}

// buildPayload serializes the request body
func buildPayload(s requestSettings, prompt, image string, stream bool) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" && image == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	req := chatRequest{
		Model:       s.model,
		Messages:    buildMessages(s.systemPrompt, prompt, image),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Stream:      stream,
	}

	return json.Marshal(req)
}
