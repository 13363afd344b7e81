package api

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/ghostbar/internal/errors"
	"github.com/diogo/ghostbar/internal/models"
)

const testImage = "data:image/png;base64,iVBORw0KGgo="

func quietLogger() log.Interface {
	return &log.Logger{Handler: discard.Default, Level: log.DebugLevel}
}

func newTestClient(t *testing.T, doer Doer, opts ...ClientOption) *Client {
	t.Helper()
	opts = append([]ClientOption{WithHTTPClient(doer), WithLogger(quietLogger())}, opts...)
	client, err := NewClient("sk-test", opts...)
	require.NoError(t, err)
	return client
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient("  sk-test  ", WithHTTPClient(&MockHttpClient{}))
	require.NoError(t, err)

	assert.Equal(t, models.DefaultModel, client.GetModel())
	assert.True(t, client.HasCredential())
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", client.Endpoint())

	s := client.snapshot()
	assert.Equal(t, "sk-test", s.apiKey)
	assert.Equal(t, DefaultTimeout, s.timeout)
	assert.Equal(t, models.DefaultMaxTokens, s.maxTokens)
	assert.InDelta(t, models.DefaultTemperature, s.temperature, 1e-9)
}

func TestNewClient_Options(t *testing.T) {
	client, err := NewClient("",
		WithHTTPClient(&MockHttpClient{}),
		WithModel("gpt-4o-mini"),
		WithBaseURL("http://localhost:8080/v1/"),
		WithTimeout(5*time.Second),
		WithMaxTokens(42),
		WithTemperature(0.1),
		WithSystemPrompt("be brief"),
	)
	require.NoError(t, err)

	assert.False(t, client.HasCredential())
	assert.Equal(t, "gpt-4o-mini", client.GetModel())
	assert.Equal(t, "http://localhost:8080/v1/chat/completions", client.Endpoint())

	s := client.snapshot()
	assert.Equal(t, 5*time.Second, s.timeout)
	assert.Equal(t, 42, s.maxTokens)
	assert.Equal(t, "be brief", s.systemPrompt)

	client.SetModel("")
	assert.Equal(t, "gpt-4o-mini", client.GetModel(), "empty model must not override")
}

func TestSendMessage_NoCredential(t *testing.T) {
	mock := NewMockHttpClient([]byte(`{}`), 200)
	client, err := NewClient("", WithHTTPClient(mock), WithLogger(quietLogger()))
	require.NoError(t, err)

	first := client.SendMessage(context.Background(), "hello", "")
	second := client.SendMessage(context.Background(), "hello", "")

	assert.NotEmpty(t, first)
	assert.Contains(t, first, "OPENAI_API_KEY")
	assert.Greater(t, strings.Count(first, "\n"), 1, "demo message should be multi-line")
	assert.Equal(t, first, second)
	assert.Equal(t, 0, mock.Calls(), "no network call without a credential")
}

func TestSendMessage_Success(t *testing.T) {
	mock := NewMockHttpClient([]byte(`{"id":"x","choices":[{"message":{"role":"assistant","content":"Paris"}}]}`), 200)
	client := newTestClient(t, mock)

	got := client.SendMessage(context.Background(), "Capital of France?", "")
	assert.Equal(t, "Paris", got)

	require.Equal(t, 1, mock.Calls())
	req := mock.Requests[0]
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", req.URL.String())
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	body := mock.LastBody()
	assert.Equal(t, "gpt-4o", gjson.Get(body, "model").String())
	assert.Equal(t, int64(1000), gjson.Get(body, "max_tokens").Int())
	assert.InDelta(t, 0.7, gjson.Get(body, "temperature").Float(), 1e-9)
	assert.False(t, gjson.Get(body, "stream").Exists(), "stream is omitted for blocking calls")
	assert.Equal(t, "system", gjson.Get(body, "messages.0.role").String())
	assert.Equal(t, "user", gjson.Get(body, "messages.1.role").String())
	assert.Equal(t, "Capital of France?", gjson.Get(body, "messages.1.content").String())
}

func TestSendMessage_WithImage(t *testing.T) {
	mock := NewMockHttpClient([]byte(`{"choices":[{"message":{"content":"A terminal window"}}]}`), 200)
	client := newTestClient(t, mock)

	got := client.SendMessage(context.Background(), "What is on screen?", testImage)
	assert.Equal(t, "A terminal window", got)

	body := mock.LastBody()
	assert.Equal(t, "text", gjson.Get(body, "messages.1.content.0.type").String())
	assert.Equal(t, "What is on screen?", gjson.Get(body, "messages.1.content.0.text").String())
	assert.Equal(t, "image_url", gjson.Get(body, "messages.1.content.1.type").String())
	assert.Equal(t, testImage, gjson.Get(body, "messages.1.content.1.image_url.url").String())
}

func TestSendMessage_StatusFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"unauthenticated", 401, `{"error":{"message":"Incorrect API key provided"}}`, apierrors.MsgUnauthenticated},
		{"forbidden", 403, ``, apierrors.MsgUnauthenticated},
		{"rate limited", 429, `{"error":{"message":"Rate limit reached"}}`, apierrors.MsgRateLimited},
		{"bad request", 400, `{"error":{"message":"image too large"}}`, apierrors.MsgBadRequest},
		{"server error", 500, `oops`, apierrors.MsgUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, NewMockHttpClient([]byte(tt.body), tt.status))
			got := client.SendMessage(context.Background(), "hello", "")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSendMessage_ModelNotFoundNamesModel(t *testing.T) {
	mock := NewMockHttpClient([]byte(`{"error":{"message":"The model does not exist"}}`), 404)
	client := newTestClient(t, mock, WithModel("gpt-vision-preview"))

	got := client.SendMessage(context.Background(), "hello", "")
	assert.Equal(t, apierrors.FallbackMessage(apierrors.CategoryModelNotFound, "gpt-vision-preview"), got)
	assert.Contains(t, got, "gpt-vision-preview")
}

func TestSendMessage_NetworkUnreachable(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	client := newTestClient(t, NewMockHttpClientWithError(dialErr))

	got := client.SendMessage(context.Background(), "hello", "")
	assert.Equal(t, apierrors.MsgNetworkUnreachable, got)
}

func TestSendMessage_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>bad gateway</html>`},
		{"no choices", `{"choices":[]}`},
		{"empty content", `{"choices":[{"message":{"content":""}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, NewMockHttpClient([]byte(tt.body), 200))
			assert.Equal(t, apierrors.MsgUnknown, client.SendMessage(context.Background(), "hello", ""))
		})
	}
}

func TestComplete_TypedErrors(t *testing.T) {
	client := newTestClient(t, NewMockHttpClient([]byte(`{"error":{"message":"nope"}}`), 401))

	_, err := client.complete(context.Background(), client.snapshot(), "hello", "")
	require.Error(t, err)

	var apiErr *apierrors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "nope", apiErr.Message)
}

func TestBuildPayload_EmptyPrompt(t *testing.T) {
	client := newTestClient(t, &MockHttpClient{})

	_, err := buildPayload(client.snapshot(), "   ", "", false)
	assert.Error(t, err)

	_, err = buildPayload(client.snapshot(), "", testImage, false)
	assert.NoError(t, err, "an image alone is a valid request")
}
