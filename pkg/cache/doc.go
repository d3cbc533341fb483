// Package cache provides a signature-addressed store for API response
// payloads with an age-based expiry policy.
//
// A request is identified by its signature: a stable hash of the endpoint
// and the canonical (sorted-key) serialization of its parameters. Two
// requests with the same endpoint and the same parameter set collide to the
// same signature regardless of parameter insertion order, which is the
// property that makes cache reuse correct.
//
// The cache keeps one record per signature: a new Put for the same
// signature replaces the prior record in place, no history is retained.
// Records never expire on their own; Get applies a caller-supplied maximum
// age, and Sweep deletes records older than a threshold when explicitly
// invoked.
//
// # Basic Usage
//
//	db, err := storage.Open("ghrecon.db")
//	if err != nil {
//		return err
//	}
//	c := cache.New(cache.NewSQLStore(db), logger)
//
//	payload, err := c.Get(ctx, "/search/repositories", params, 24*time.Hour)
//	if errors.Is(err, cache.ErrMiss) {
//		// fetch from the API, then:
//		// c.Put(ctx, "/search/repositories", params, payload)
//	}
//
// # Backends
//
// Two Store implementations exist: SQLStore over the shared SQLite database
// and RedisStore over a Redis client. The Cache never depends on which
// backend is in use.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - ghrecon_cache_hits_total - cache hits
//   - ghrecon_cache_misses_total - cache misses
//   - ghrecon_cache_errors_total{operation} - backend operation errors
//   - ghrecon_cache_sweep_removed_total - records removed by sweeps
package cache
