// Package api implements the chat relay: one HTTP call per user action to an
// OpenAI-compatible chat completions endpoint, either blocking or streamed.
package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"

	"github.com/diogo/ghostbar/internal/models"
)

// DefaultTimeout bounds a blocking call end-to-end and each wait of a streamed call
const DefaultTimeout = 30 * time.Second

// NoCredentialMessage is returned instead of calling the API when no key is configured
const NoCredentialMessage = `No API key is configured, so this is a demo response.

To get real answers:
  1. Create an API key with your provider.
  2. Export it as OPENAI_API_KEY, or add OPENAI_API_KEY=... to a .env file,
     or run: ghostbar config set api_key <key>
  3. Optionally set OPENAI_MODEL (default: gpt-4o) and OPENAI_BASE_URL.

Then ask your question again.`

// Doer is the subset of an HTTP client used by the relay.
// tls_client.HttpClient satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Relay is the contract consumed by the overlay and the CLI
type Relay interface {
	SendMessage(ctx context.Context, prompt, image string) string
	SendMessageStream(ctx context.Context, prompt, image string) <-chan StreamEvent
	GetModel() string
	HasCredential() bool
}

// Client is the chat relay client
type Client struct {
	httpClient   Doer
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float64
	timeout      time.Duration
	logger       log.Interface
	mu           sync.RWMutex
}

var _ Relay = (*Client)(nil)

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithModel sets the model identifier
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL sets the provider base URL (e.g. https://api.openai.com/v1)
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMaxTokens sets max_tokens for completions
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) ClientOption {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithSystemPrompt replaces the default system instructions
func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) {
		if strings.TrimSpace(prompt) != "" {
			c.systemPrompt = prompt
		}
	}
}

// WithHTTPClient overrides the transport (used by tests)
func WithHTTPClient(doer Doer) ClientOption {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(l log.Interface) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a new relay client. An empty apiKey is allowed: the
// client then answers every request with NoCredentialMessage.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	client := &Client{
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      models.DefaultBaseURL,
		model:        models.DefaultModel,
		systemPrompt: models.DefaultSystemPrompt,
		maxTokens:    models.DefaultMaxTokens,
		temperature:  models.DefaultTemperature,
		timeout:      DefaultTimeout,
		logger:       log.Log,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		// The per-request deadline is applied through the request context;
		// the client-level timeout is only an upper bound for long streams.
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(600),
			tls_client.WithClientProfile(profiles.Chrome_120),
		}

		httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		client.httpClient = httpClient
	}

	return client, nil
}

// GetModel returns the configured model
func (c *Client) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// SetModel changes the model for subsequent requests
func (c *Client) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if model != "" {
		c.model = model
	}
}

// HasCredential reports whether an API key is configured
func (c *Client) HasCredential() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != ""
}

// Endpoint returns the completions URL requests are sent to
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.CompletionsURL(c.baseURL)
}

// snapshot copies the request settings so a call is not affected by concurrent setters
func (c *Client) snapshot() requestSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return requestSettings{
		apiKey:       c.apiKey,
		endpoint:     models.CompletionsURL(c.baseURL),
		model:        c.model,
		systemPrompt: c.systemPrompt,
		maxTokens:    c.maxTokens,
		temperature:  c.temperature,
		timeout:      c.timeout,
	}
}

type requestSettings struct {
	apiKey       string
	endpoint     string
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float64
	timeout      time.Duration
}
