// Package ratelimit implements GitHub API quota tracking and request pacing.
// It monitors the X-RateLimit-Remaining and X-RateLimit-Reset headers and,
// when the remaining budget runs low, spreads the remaining requests evenly
// across the time left before the quota window resets.
package ratelimit

import (
	"time"
)

// Rate limit headers reported by the API.
const (
	// HeaderRemaining carries the remaining request quota for the window.
	HeaderRemaining = "X-RateLimit-Remaining"

	// HeaderReset carries the epoch second at which the quota window resets.
	HeaderReset = "X-RateLimit-Reset"
)

// Thresholds and delays for pacing decisions.
const (
	// LowWaterMark switches the limiter into budget-spreading mode when the
	// remaining quota falls below this value.
	LowWaterMark = 100

	// ExhaustionFloor is the minimum inter-request delay once the quota is
	// below the low-water mark. Avoids bursty retries near exhaustion.
	ExhaustionFloor = 2 * time.Second

	// DefaultMinDelay is the inter-request delay while the quota is healthy.
	DefaultMinDelay = 100 * time.Millisecond

	// DefaultRemaining is the quota assumed before the server reports one.
	// The next response re-reports true state, so an optimistic default is
	// safe across process restarts.
	DefaultRemaining = 5000
)

// State is a read-only snapshot of a limiter's quota tracking.
type State struct {
	// Remaining is the request quota left in the current window.
	Remaining int

	// ResetAt is when the quota window resets.
	ResetAt time.Time

	// LastRequest is when the limiter last released a request.
	LastRequest time.Time

	// MinDelay is the configured healthy-quota delay floor.
	MinDelay time.Duration
}

// Healthy reports whether the quota is at or above the low-water mark.
func (s State) Healthy() bool {
	return s.Remaining >= LowWaterMark
}

// TimeUntilReset returns the duration until the quota window resets.
// Returns 0 if the reset time has already passed.
func (s State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
