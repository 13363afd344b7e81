// Package models contains data types and constants for the chat relay.
package models

import "strings"

// Endpoint defaults for OpenAI-compatible providers
const (
	DefaultBaseURL      = "https://api.openai.com/v1"
	PathChatCompletions = "/chat/completions"
)

// Request defaults
const (
	DefaultModel       = "gpt-4o"
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

// DefaultSystemPrompt is sent ahead of every user turn
const DefaultSystemPrompt = `You are a helpful assistant that can see the user's screen. ` +
	`When a screenshot is attached, use it to answer the question. ` +
	`Be concise and direct; prefer short paragraphs and lists.`

// Stream framing
const (
	StreamDataPrefix = "data:"
	StreamSentinel   = "[DONE]"
)

// VisionModels lists well-known vision-capable chat models.
// Any model name is accepted; this list only drives hints.
var VisionModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4.1",
	"gpt-4.1-mini",
	"gpt-4-turbo",
}

// IsVisionModel reports whether name is a known vision-capable model
func IsVisionModel(name string) bool {
	name = strings.TrimSpace(strings.ToLower(name))
	for _, m := range VisionModels {
		if m == name {
			return true
		}
	}
	return false
}

// CompletionsURL joins a base URL with the chat completions path
func CompletionsURL(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/") + PathChatCompletions
}

// DefaultHeaders returns the headers sent with every completion request
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"User-Agent":   "ghostbar/0.1",
	}
}

// StreamHeaders returns the extra headers for a streamed request
func StreamHeaders() map[string]string {
	return map[string]string{
		"Accept":        "text/event-stream",
		"Cache-Control": "no-cache",
	}
}
