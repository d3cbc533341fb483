package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrMiss indicates no fresh record exists for the signature.
	ErrMiss = errors.New("cache miss")

	// ErrInvalidRecord indicates a stored record is malformed. The record
	// is left in place; re-fetching or sweeping is the caller's decision.
	ErrInvalidRecord = errors.New("invalid cache record")
)

// Default age windows.
const (
	// DefaultMaxAge is the freshness window applied by callers that do not
	// choose their own.
	DefaultMaxAge = 24 * time.Hour

	// DefaultSweepAge is the age threshold for explicit sweeps.
	DefaultSweepAge = 7 * 24 * time.Hour
)

// Store persists cache records keyed by signature. Implementations must
// keep exactly one record per signature and replace in place on Put.
type Store interface {
	// Get returns the record for the signature, or ErrMiss when absent.
	Get(ctx context.Context, signature string) (*Record, error)

	// Put stores the record, replacing any prior record with the same
	// signature.
	Put(ctx context.Context, rec *Record) error

	// Sweep deletes records cached before cutoff and returns the count of
	// records removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// Cache is the response cache manager. It computes signatures, applies the
// freshness window on reads, and delegates persistence to its Store.
type Cache struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a cache manager over the given backend.
func New(store Store, logger zerolog.Logger) *Cache {
	if store == nil {
		panic("cache store cannot be nil")
	}
	return &Cache{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the cached payload for (endpoint, params) if a record exists
// and is no older than maxAge. Returns ErrMiss otherwise, or a wrapped
// ErrInvalidRecord when the stored payload is malformed.
func (c *Cache) Get(ctx context.Context, endpoint string, params map[string]string, maxAge time.Duration) (json.RawMessage, error) {
	sig := Signature(endpoint, params)

	rec, err := c.store.Get(ctx, sig)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			CacheMisses.Inc()
			return nil, ErrMiss
		}
		if errors.Is(err, ErrInvalidRecord) {
			return nil, err
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("cache get: %w", err)
	}

	if age := rec.Age(c.now()); age > maxAge {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("signature", sig).
			Dur("age", age).
			Msg("Cache record stale")
		CacheMisses.Inc()
		return nil, ErrMiss
	}

	if err := rec.Validate(); err != nil {
		c.logger.Error().
			Str("endpoint", endpoint).
			Str("signature", sig).
			Msg("Malformed cache record")
		return nil, err
	}

	CacheHits.Inc()
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("signature", sig).
		Msg("Cache hit")

	return rec.Payload, nil
}

// Put stores the payload under the signature of (endpoint, params),
// overwriting any existing record.
func (c *Cache) Put(ctx context.Context, endpoint string, params map[string]string, payload json.RawMessage) error {
	rec := &Record{
		Signature: Signature(endpoint, params),
		Endpoint:  endpoint,
		Params:    string(CanonicalParams(params)),
		Payload:   payload,
		CachedAt:  c.now(),
	}

	if err := c.store.Put(ctx, rec); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("cache put: %w", err)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("signature", rec.Signature).
		Int("bytes", len(payload)).
		Msg("Cached response")

	return nil
}

// Sweep deletes records older than maxAge and returns the count removed.
// Sweeps run only when invoked; there is no background timer.
func (c *Cache) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := c.now().Add(-maxAge)

	removed, err := c.store.Sweep(ctx, cutoff)
	if err != nil {
		CacheErrors.WithLabelValues("sweep").Inc()
		return 0, fmt.Errorf("cache sweep: %w", err)
	}

	CacheSweepRemoved.Add(float64(removed))
	c.logger.Info().
		Int("removed", removed).
		Time("cutoff", cutoff).
		Msg("Cache sweep complete")

	return removed, nil
}

// SetClock overrides the time source (for testing).
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}
