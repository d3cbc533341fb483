package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors returned alongside best-effort partial results.
var (
	// ErrRateLimited is returned when a page hit the rate limit twice in a
	// row and the fetch degraded to whatever had accumulated. A 403 cannot
	// be told apart from a plain "forbidden", so this covers both.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransport is returned for failures below the HTTP layer: network
	// errors, timeouts, and unreadable or unparseable response bodies.
	ErrTransport = errors.New("transport failure")
)

// ErrorClass labels an error for metrics and logging.
type ErrorClass string

const (
	// ErrorClassFatal covers non-retryable HTTP error statuses.
	ErrorClassFatal ErrorClass = "fatal"

	// ErrorClassRateLimit covers 403 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassTransport covers failures below the HTTP layer.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassValidation covers malformed cached or stored records.
	ErrorClassValidation ErrorClass = "validation"
)

// APIError is an HTTP-level API error with the status code and any
// structured error payload attached.
type APIError struct {
	StatusCode int
	Message    string
	Payload    json.RawMessage
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// apiMessage extracts the message field from a structured API error body.
func apiMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Message == "" {
		return "unknown error"
	}
	return payload.Message
}
