package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fakeClock drives a limiter deterministically. Sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	current time.Time
	sleeps  []time.Duration
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{current: start}
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.current = c.current.Add(d)
	return nil
}

func newTestLimiter(clock *fakeClock) *Limiter {
	l := NewLimiter(testLogger())
	l.SetClock(clock.now, clock.sleep)
	return l
}

func TestLimiter_UpdateFromHeaders(t *testing.T) {
	tests := []struct {
		name          string
		headers       map[string]string
		wantRemaining int
		wantReset     int64
	}{
		{
			name: "both headers present",
			headers: map[string]string{
				HeaderRemaining: "42",
				HeaderReset:     "1700000000",
			},
			wantRemaining: 42,
			wantReset:     1_700_000_000,
		},
		{
			name:          "no headers leaves prior state",
			headers:       map[string]string{},
			wantRemaining: DefaultRemaining,
			wantReset:     0,
		},
		{
			name: "only remaining present",
			headers: map[string]string{
				HeaderRemaining: "7",
			},
			wantRemaining: 7,
			wantReset:     0,
		},
		{
			name: "malformed remaining leaves prior value",
			headers: map[string]string{
				HeaderRemaining: "not-a-number",
				HeaderReset:     "1700000000",
			},
			wantRemaining: DefaultRemaining,
			wantReset:     1_700_000_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLimiter(testLogger())

			headers := http.Header{}
			for k, v := range tt.headers {
				headers.Set(k, v)
			}
			l.UpdateFromHeaders(headers)

			state := l.Snapshot()
			if state.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemaining)
			}
			if state.ResetAt.Unix() != tt.wantReset {
				t.Errorf("ResetAt = %d, want %d", state.ResetAt.Unix(), tt.wantReset)
			}
		})
	}
}

func TestLimiter_Wait_HealthyQuota(t *testing.T) {
	clock := newFakeClock(time.Unix(1000, 0))
	l := newTestLimiter(clock)

	// First wait: no prior request, no sleep needed.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("First Wait() slept %v, want no sleep", clock.sleeps)
	}

	// Immediate second wait must enforce the minimum delay.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(clock.sleeps) != 1 {
		t.Fatalf("Second Wait() recorded %d sleeps, want 1", len(clock.sleeps))
	}
	if clock.sleeps[0] != DefaultMinDelay {
		t.Errorf("Second Wait() slept %v, want %v", clock.sleeps[0], DefaultMinDelay)
	}
}

func TestLimiter_Wait_StampsLastRequestWithoutSleep(t *testing.T) {
	clock := newFakeClock(time.Unix(1000, 0))
	l := newTestLimiter(clock)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	state := l.Snapshot()
	if !state.LastRequest.Equal(clock.current) {
		t.Errorf("LastRequest = %v, want %v even when no sleep occurred",
			state.LastRequest, clock.current)
	}
}

func TestLimiter_Wait_LowQuotaSpreadsBudget(t *testing.T) {
	start := time.Unix(1000, 0)

	tests := []struct {
		name      string
		remaining int
		resetIn   int64 // seconds from start
		wantDelay time.Duration
	}{
		{
			name:      "budget spread dominates floor",
			remaining: 10,
			resetIn:   100,
			wantDelay: 10 * time.Second, // 100s / 10 remaining
		},
		{
			name:      "floor dominates near reset",
			remaining: 99,
			resetIn:   10,
			wantDelay: ExhaustionFloor,
		},
		{
			name:      "zero remaining treated as one",
			remaining: 0,
			resetIn:   30,
			wantDelay: 30 * time.Second,
		},
		{
			name:      "reset in the past uses floor",
			remaining: 10,
			resetIn:   -5,
			wantDelay: ExhaustionFloor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock(start)
			l := newTestLimiter(clock)
			l.Update(tt.remaining, start.Unix()+tt.resetIn)

			// Prime lastRequest so the full delay applies.
			if err := l.Wait(context.Background()); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
			clock.sleeps = nil

			if err := l.Wait(context.Background()); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
			if len(clock.sleeps) != 1 {
				t.Fatalf("Wait() recorded %d sleeps, want 1", len(clock.sleeps))
			}
			if clock.sleeps[0] != tt.wantDelay {
				t.Errorf("Wait() slept %v, want %v", clock.sleeps[0], tt.wantDelay)
			}
		})
	}
}

// Delay must be non-decreasing as the remaining quota shrinks toward zero
// with a fixed reset time.
func TestLimiter_Wait_DelayMonotonicity(t *testing.T) {
	start := time.Unix(1000, 0)
	resetEpoch := start.Unix() + 300

	var prev time.Duration
	for _, remaining := range []int{99, 80, 50, 20, 10, 5, 1} {
		clock := newFakeClock(start)
		l := newTestLimiter(clock)
		l.Update(remaining, resetEpoch)

		l.mu.Lock()
		delay := l.delayLocked(clock.now())
		l.mu.Unlock()

		if delay < prev {
			t.Errorf("delay %v for remaining=%d is below delay %v for larger remaining",
				delay, remaining, prev)
		}
		prev = delay
	}
}

func TestLimiter_Wait_ContextCancelled(t *testing.T) {
	l := NewLimiter(testLogger())
	l.Update(1, time.Now().Unix()+3600)

	// Prime lastRequest so the next wait needs a real sleep.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("Wait() with cancelled context should return an error")
	}
}

func TestLimiter_Update_PartialSnapshot(t *testing.T) {
	l := NewLimiter(testLogger())
	l.Update(200, 5000)

	// Negative values mean "absent": prior state must survive.
	l.Update(-1, 6000)
	state := l.Snapshot()
	if state.Remaining != 200 {
		t.Errorf("Remaining = %d, want 200 after absent remaining", state.Remaining)
	}
	if state.ResetAt.Unix() != 6000 {
		t.Errorf("ResetAt = %d, want 6000", state.ResetAt.Unix())
	}

	l.Update(150, -1)
	state = l.Snapshot()
	if state.Remaining != 150 {
		t.Errorf("Remaining = %d, want 150", state.Remaining)
	}
	if state.ResetAt.Unix() != 6000 {
		t.Errorf("ResetAt = %d, want 6000 after absent reset", state.ResetAt.Unix())
	}
}
