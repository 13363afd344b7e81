// Package errors provides the error taxonomy for the chat relay and the
// user-facing fallback text for each failure category.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for common cases
var (
	ErrNoCredential    = errors.New("no API credential configured")
	ErrInvalidResponse = errors.New("invalid response format")
	ErrNoContent       = errors.New("no content in response")
	ErrStreamClosed    = errors.New("stream closed before completion")
)

// Category is a failure class used to pick the fallback message shown to the user.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryUnauthenticated
	CategoryModelNotFound
	CategoryRateLimited
	CategoryBadRequest
	CategoryNetworkUnreachable
)

// String returns the name of the category
func (c Category) String() string {
	switch c {
	case CategoryUnauthenticated:
		return "unauthenticated"
	case CategoryModelNotFound:
		return "model_not_found"
	case CategoryRateLimited:
		return "rate_limited"
	case CategoryBadRequest:
		return "bad_request"
	case CategoryNetworkUnreachable:
		return "network_unreachable"
	default:
		return "unknown"
	}
}

// Fallback messages. These strings are shown verbatim in the chat panel.
const (
	MsgUnauthenticated    = "Authentication failed. Please check that your API key is valid and set in OPENAI_API_KEY."
	MsgModelNotFoundFmt   = "The model %q was not found or you do not have access to it. Set OPENAI_MODEL to a vision-capable model available to your account."
	MsgRateLimited        = "Rate limit exceeded. Please wait a moment and try again."
	MsgBadRequest         = "The request was rejected by the API. The screenshot may be too large or the question too long; please try again."
	MsgNetworkUnreachable = "Unable to reach the API. Please check your internet connection and try again."
	MsgUnknown            = "Sorry, something went wrong while getting a response. Please try again."
)

// APIError represents a non-2xx response from the completion endpoint
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, e.Message)
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// NewAPIErrorWithBody creates a new APIError that keeps the (truncated) response body
func NewAPIErrorWithBody(statusCode int, endpoint, message, body string) *APIError {
	if len(body) > 4096 {
		body = body[:4096]
	}
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
		Body:       body,
	}
}

// NetworkError represents a transport-level failure (DNS, refused connection, reset)
type NetworkError struct {
	Operation string
	Endpoint  string
	Err       error
}

func (e *NetworkError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("network error during %s at %s: %v", e.Operation, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(operation, endpoint string, err error) *NetworkError {
	return &NetworkError{Operation: operation, Endpoint: endpoint, Err: err}
}

// TimeoutError represents a request timeout
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "request timed out"
	}
	return fmt.Sprintf("request timed out: %s", e.Message)
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(message string) *TimeoutError {
	return &TimeoutError{Message: message}
}

// ParseError represents a response parsing error
type ParseError struct {
	Message string
	Path    string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse error at %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

// NewParseError creates a new ParseError
func NewParseError(message, path string) *ParseError {
	return &ParseError{Message: message, Path: path}
}

// Is allows comparison with sentinel errors
func (e *ParseError) Is(target error) bool {
	if target == ErrInvalidResponse {
		return true
	}
	_, ok := target.(*ParseError)
	return ok
}

// GetHTTPStatus returns the HTTP status carried by err, or 0
func GetHTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Classify maps an error to its failure category
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	if status := GetHTTPStatus(err); status > 0 {
		return classifyStatus(status)
	}

	if IsNetworkError(err) || IsTimeoutError(err) {
		return CategoryNetworkUnreachable
	}

	return CategoryUnknown
}

func classifyStatus(status int) Category {
	switch status {
	case 401, 403:
		return CategoryUnauthenticated
	case 404:
		return CategoryModelNotFound
	case 429:
		return CategoryRateLimited
	case 400, 413, 422:
		return CategoryBadRequest
	default:
		return CategoryUnknown
	}
}

// FallbackMessage returns the user-facing text for a category.
// model is only used by CategoryModelNotFound.
func FallbackMessage(category Category, model string) string {
	switch category {
	case CategoryUnauthenticated:
		return MsgUnauthenticated
	case CategoryModelNotFound:
		return fmt.Sprintf(MsgModelNotFoundFmt, model)
	case CategoryRateLimited:
		return MsgRateLimited
	case CategoryBadRequest:
		return MsgBadRequest
	case CategoryNetworkUnreachable:
		return MsgNetworkUnreachable
	default:
		return MsgUnknown
	}
}

// FallbackFor classifies err and returns its fallback message
func FallbackFor(err error, model string) string {
	return FallbackMessage(Classify(err), model)
}

// IsAuthError checks if the error is an authentication failure
func IsAuthError(err error) bool {
	return Classify(err) == CategoryUnauthenticated
}

// IsRateLimitError checks if the error is a rate limit response
func IsRateLimitError(err error) bool {
	return GetHTTPStatus(err) == 429
}

// IsNetworkError checks if the error is a transport failure
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// IsTimeoutError checks if the error is a timeout
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	// tls-client surfaces client timeouts as plain strings
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}
