package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apex/log"
	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/ghostbar/internal/errors"
	"github.com/diogo/ghostbar/internal/models"
)

// Response paths
const (
	PathMessageContent = "choices.0.message.content"
	PathDeltaContent   = "choices.0.delta.content"
	PathErrorMessage   = "error.message"
)

// maxErrorBody limits how much of a failed response is kept for diagnostics
const maxErrorBody = 4096

// SendMessage sends prompt (and an optional image data URL) and returns the
// first completion's text. Failures never surface as errors: the caller gets
// the fallback message for the failure category instead.
func (c *Client) SendMessage(ctx context.Context, prompt, image string) string {
	s := c.snapshot()
	if s.apiKey == "" {
		c.logger.Info("no API key configured, returning demo response")
		return NoCredentialMessage
	}

	text, err := c.complete(ctx, s, prompt, image)
	if err != nil {
		category := apierrors.Classify(err)
		c.logger.WithError(err).WithFields(log.Fields{
			"model":    s.model,
			"category": category.String(),
			"status":   apierrors.GetHTTPStatus(err),
		}).Warn("chat completion failed")
		return apierrors.FallbackMessage(category, s.model)
	}

	return text
}

// complete performs the blocking request and extracts the answer
func (c *Client) complete(ctx context.Context, s requestSettings, prompt, image string) (string, error) {
	body, err := buildPayload(s, prompt, image, false)
	if err != nil {
		return "", fmt.Errorf("failed to build payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := newRequest(ctx, s, body, false)
	if err != nil {
		return "", err
	}

	c.logger.WithFields(log.Fields{
		"model":     s.model,
		"has_image": image != "",
		"endpoint":  s.endpoint,
	}).Debug("sending chat completion")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError(ctx, s, err, false)
	}
	defer func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp, s.endpoint)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(ctx, s, err, false)
	}

	return parseCompletion(data)
}

// parseCompletion extracts choices[0].message.content
func parseCompletion(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", apierrors.NewParseError("response is not valid JSON", "")
	}

	content := gjson.GetBytes(body, PathMessageContent)
	if !content.Exists() {
		return "", apierrors.NewParseError("no choices in response", PathMessageContent)
	}

	text := content.String()
	if text == "" {
		return "", apierrors.ErrNoContent
	}
	return text, nil
}

// newRequest builds the POST request with auth and content headers
func newRequest(ctx context.Context, s requestSettings, body []byte, stream bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range models.DefaultHeaders() {
		req.Header.Set(key, value)
	}
	if stream {
		for key, value := range models.StreamHeaders() {
			req.Header.Set(key, value)
		}
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	return req, nil
}

// statusError reads a bounded part of a failed response into an APIError
func statusError(resp *http.Response, endpoint string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := gjson.GetBytes(data, PathErrorMessage).String()
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return apierrors.NewAPIErrorWithBody(resp.StatusCode, endpoint, message, string(data))
}

// transportError converts a Do/read failure into a typed error
func transportError(ctx context.Context, s requestSettings, err error, timedOut bool) error {
	if timedOut || errors.Is(ctx.Err(), context.DeadlineExceeded) || apierrors.IsTimeoutError(err) {
		return apierrors.NewTimeoutError(fmt.Sprintf("no response within %s", s.timeout))
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return apierrors.NewNetworkError("chat completion", s.endpoint, err)
}
