// Package errors provides the error types for the geminiworkshop client and controllers.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common cases
var (
	ErrEmptyPrompt     = errors.New("prompt cannot be empty")
	ErrNoContent       = errors.New("no content in response")
	ErrInvalidResponse = errors.New("invalid response format")
	ErrBusy            = errors.New("a request is already in flight")
	ErrNoAPIKey        = errors.New("no API key configured")
	ErrInvalidSnapshot = errors.New("invalid state snapshot")
	ErrClientClosed    = errors.New("client is closed")
)

// UnknownErrorText is shown when a failure carries no description of its own.
const UnknownErrorText = "An unknown error occurred"

// Kind classifies a CompletionError. Controllers never branch on it; it only
// feeds the hints printed next to the description.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAPI
	KindTimeout
	KindCanceled
	KindBlocked
	KindParse
	KindEmpty
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAPI:
		return "api"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindBlocked:
		return "blocked"
	case KindParse:
		return "parse"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// CompletionError is the single failure type returned by the completion client.
type CompletionError struct {
	Kind       Kind
	Message    string
	StatusCode int
	Endpoint   string
	Body       string
	Cause      error
}

func (e *CompletionError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if msg == "" {
		msg = UnknownErrorText
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *CompletionError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel errors that correspond to a kind
func (e *CompletionError) Is(target error) bool {
	switch target {
	case ErrNoContent:
		return e.Kind == KindEmpty
	case ErrInvalidResponse:
		return e.Kind == KindParse
	}
	return false
}

// NewNetworkError wraps a transport failure
func NewNetworkError(endpoint string, cause error) *CompletionError {
	kind := KindNetwork
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(cause, context.Canceled):
		kind = KindCanceled
	}
	return &CompletionError{
		Kind:     kind,
		Message:  fmt.Sprintf("request failed: %v", cause),
		Endpoint: endpoint,
		Cause:    cause,
	}
}

// NewAPIError represents a non-2xx answer from the service
func NewAPIError(statusCode int, endpoint, message, body string) *CompletionError {
	kind := KindAPI
	if statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout {
		kind = KindTimeout
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &CompletionError{
		Kind:       kind,
		Message:    message,
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Body:       body,
	}
}

// NewBlockedError represents a safety-filter rejection
func NewBlockedError(reason string) *CompletionError {
	msg := "response blocked"
	if reason != "" {
		msg = fmt.Sprintf("response blocked: %s", reason)
	}
	return &CompletionError{Kind: KindBlocked, Message: msg}
}

// NewParseError represents a malformed response
func NewParseError(message string) *CompletionError {
	return &CompletionError{Kind: KindParse, Message: fmt.Sprintf("parse error: %s", message)}
}

// NewEmptyError represents a response that carried no text
func NewEmptyError(message string) *CompletionError {
	if message == "" {
		message = ErrNoContent.Error()
	}
	return &CompletionError{Kind: KindEmpty, Message: message}
}

// Describe returns the human-readable description kept for display.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if msg == "" {
		return UnknownErrorText
	}
	return msg
}

// GetHTTPStatus returns the HTTP status carried by err, or 0
func GetHTTPStatus(err error) int {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	return 0
}

// GetEndpoint returns the endpoint carried by err, or ""
func GetEndpoint(err error) string {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Endpoint
	}
	return ""
}

// GetKind returns the kind carried by err
func GetKind(err error) Kind {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsTimeoutError reports whether err is a timeout
func IsTimeoutError(err error) bool {
	return GetKind(err) == KindTimeout || errors.Is(err, context.DeadlineExceeded)
}

// IsNetworkError reports whether err is a transport failure
func IsNetworkError(err error) bool {
	return GetKind(err) == KindNetwork
}

// IsBlockedError reports whether err is a safety-filter rejection
func IsBlockedError(err error) bool {
	return GetKind(err) == KindBlocked
}

// IsRateLimitError reports whether err is a quota rejection
func IsRateLimitError(err error) bool {
	return GetHTTPStatus(err) == http.StatusTooManyRequests
}

// IsAuthError reports whether err is an authentication rejection
func IsAuthError(err error) bool {
	status := GetHTTPStatus(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden || errors.Is(err, ErrNoAPIKey)
}
