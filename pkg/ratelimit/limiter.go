package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ghrecon_rate_limit_remaining",
		Help: "Remaining request quota reported by the API",
	})

	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghrecon_rate_limit_waits_total",
		Help: "Total number of non-zero waits inserted before requests",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghrecon_rate_limit_wait_seconds",
		Help:    "Duration of waits inserted before requests",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 60},
	})
)

// Limiter paces requests against the server-reported quota. One Limiter
// instance gates one logical request stream; Wait and Update serialize on
// the instance's mutex, and the mutex stays held for the full duration of
// a wait.
type Limiter struct {
	mu          sync.Mutex
	remaining   int
	resetEpoch  int64
	lastRequest time.Time
	minDelay    time.Duration
	logger      zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter with default state. State is in-memory only
// and owned exclusively by the returned instance.
func NewLimiter(logger zerolog.Logger) *Limiter {
	return &Limiter{
		remaining: DefaultRemaining,
		minDelay:  DefaultMinDelay,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Update records the latest quota snapshot reported by the server.
// A negative remaining or resetEpoch leaves the prior value unchanged.
func (l *Limiter) Update(remaining int, resetEpoch int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if remaining >= 0 {
		l.remaining = remaining
		quotaRemaining.Set(float64(remaining))
	}
	if resetEpoch >= 0 {
		l.resetEpoch = resetEpoch
	}

	if l.remaining < LowWaterMark {
		l.logger.Warn().
			Int("remaining", l.remaining).
			Time("reset_at", time.Unix(l.resetEpoch, 0)).
			Msg("Quota below low-water mark - spreading remaining budget")
	} else {
		l.logger.Debug().
			Int("remaining", l.remaining).
			Int64("reset_epoch", l.resetEpoch).
			Msg("Quota state updated")
	}
}

// UpdateFromHeaders parses the rate limit headers and updates quota state.
// An absent or malformed header leaves the corresponding prior value
// unchanged.
func (l *Limiter) UpdateFromHeaders(headers http.Header) {
	remaining := -1
	if v := headers.Get(HeaderRemaining); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			remaining = n
		}
	}

	resetEpoch := int64(-1)
	if v := headers.Get(HeaderReset); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			resetEpoch = n
		}
	}

	if remaining < 0 && resetEpoch < 0 {
		return
	}

	l.Update(remaining, resetEpoch)
}

// Wait blocks until the next request may be issued. When the quota is below
// the low-water mark the delay spreads the remaining budget evenly across
// the time left before reset, floored at ExhaustionFloor; otherwise the
// minimum delay applies. The last-request timestamp is stamped on every
// call, even when no sleep was needed, so the floor holds for the next
// caller regardless of prior timing.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	delay := l.delayLocked(now)

	if wait := delay - now.Sub(l.lastRequest); wait > 0 {
		rateLimitWaitsTotal.Inc()
		rateLimitWaitSeconds.Observe(wait.Seconds())

		l.logger.Debug().
			Dur("wait", wait).
			Int("remaining", l.remaining).
			Msg("Pacing request")

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}

	l.lastRequest = l.now()
	return nil
}

// delayLocked computes the target inter-request delay. Callers hold l.mu.
func (l *Limiter) delayLocked(now time.Time) time.Duration {
	if l.remaining >= LowWaterMark {
		return l.minDelay
	}

	secondsLeft := float64(l.resetEpoch) - float64(now.Unix())
	spread := time.Duration(secondsLeft / float64(max(1, l.remaining)) * float64(time.Second))
	if spread < ExhaustionFloor {
		return ExhaustionFloor
	}
	return spread
}

// Snapshot returns a copy of the current limiter state.
func (l *Limiter) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return State{
		Remaining:   l.remaining,
		ResetAt:     time.Unix(l.resetEpoch, 0),
		LastRequest: l.lastRequest,
		MinDelay:    l.minDelay,
	}
}

// SetClock overrides the time source and sleep function (for testing).
func (l *Limiter) SetClock(now func() time.Time, sleep func(context.Context, time.Duration) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	l.sleep = sleep
}

// sleepContext sleeps for d, honoring context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
