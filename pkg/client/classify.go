package client

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/reconlab/ghrecon/pkg/ratelimit"
)

// OutcomeKind is the semantic classification of an HTTP outcome.
type OutcomeKind string

const (
	// OutcomeSuccess is a 2xx response carrying a payload.
	OutcomeSuccess OutcomeKind = "success"

	// OutcomeEmpty is a 404: zero results, not an error.
	OutcomeEmpty OutcomeKind = "empty"

	// OutcomeRateLimited is a 403. The API uses 403 both for quota
	// exhaustion and for plain forbidden access; the ambiguity is
	// preserved and callers treat every 403 as retry-once-then-degrade.
	OutcomeRateLimited OutcomeKind = "rate_limited"

	// OutcomeFatal is any other non-2xx status. The caller must abort the
	// current fetch and surface the error.
	OutcomeFatal OutcomeKind = "fatal"
)

// Outcome is the classified result of a single API response.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Payload    json.RawMessage
	Message    string
}

// Classifier maps raw HTTP outcomes to Outcomes and keeps the rate limiter
// current from response headers.
type Classifier struct {
	limiter *ratelimit.Limiter
	logger  zerolog.Logger
}

// NewClassifier creates a classifier feeding quota headers to limiter.
func NewClassifier(limiter *ratelimit.Limiter, logger zerolog.Logger) *Classifier {
	if limiter == nil {
		panic("rate limiter cannot be nil")
	}
	return &Classifier{limiter: limiter, logger: logger}
}

// Classify maps an HTTP outcome to its semantic kind. Quota headers are
// handed to the rate limiter on every call, error responses included, so
// quota tracking stays current regardless of outcome.
func (c *Classifier) Classify(statusCode int, headers http.Header, body []byte) Outcome {
	c.limiter.UpdateFromHeaders(headers)

	switch {
	case statusCode == http.StatusNotFound:
		c.logger.Debug().Int("status", statusCode).Msg("Classified as empty")
		return Outcome{Kind: OutcomeEmpty, StatusCode: statusCode}

	case statusCode == http.StatusForbidden:
		c.logger.Debug().Int("status", statusCode).Msg("Classified as rate limited")
		return Outcome{
			Kind:       OutcomeRateLimited,
			StatusCode: statusCode,
			Payload:    errorPayload(body),
			Message:    "rate limit exceeded or access forbidden",
		}

	case statusCode >= 200 && statusCode < 300:
		return Outcome{Kind: OutcomeSuccess, StatusCode: statusCode, Payload: body}

	default:
		c.logger.Debug().Int("status", statusCode).Msg("Classified as fatal")
		return Outcome{
			Kind:       OutcomeFatal,
			StatusCode: statusCode,
			Payload:    errorPayload(body),
			Message:    apiMessage(body),
		}
	}
}

// errorPayload returns the body when it is structured, nil otherwise.
func errorPayload(body []byte) json.RawMessage {
	if len(body) == 0 || !json.Valid(body) {
		return nil
	}
	return body
}
