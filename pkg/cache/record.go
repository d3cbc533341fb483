package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is a cached API response payload keyed by request signature.
type Record struct {
	// Signature identifies the (endpoint, parameter set) request.
	Signature string `json:"signature"`

	// Endpoint is the API endpoint path the record was fetched from.
	Endpoint string `json:"endpoint"`

	// Params is the canonical JSON serialization of the request parameters.
	Params string `json:"params"`

	// Payload is the serialized response payload.
	Payload json.RawMessage `json:"payload"`

	// CachedAt is when the record was stored.
	CachedAt time.Time `json:"cached_at"`
}

// Age returns how old the record is relative to now.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.CachedAt)
}

// Validate checks that the stored payload is well-formed. A malformed
// record is surfaced to the caller, never silently repaired.
func (r *Record) Validate() error {
	if len(r.Payload) == 0 || !json.Valid(r.Payload) {
		return fmt.Errorf("%w: signature %s holds malformed payload", ErrInvalidRecord, r.Signature)
	}
	return nil
}
