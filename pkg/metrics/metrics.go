// Package metrics provides the centralized Prometheus registry reference for
// the GitHub access layer. All metrics are defined in their respective
// packages (client, cache, ratelimit, recon) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the access layer.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ghrecon_rate_limit_remaining (Gauge): Remaining request quota reported by the API
//   - ghrecon_rate_limit_waits_total (Counter): Non-zero waits inserted before requests
//   - ghrecon_rate_limit_wait_seconds (Histogram): Duration of waits inserted before requests
//
// Cache Metrics (pkg/cache):
//   - ghrecon_cache_hits_total (Counter): Cache hits
//   - ghrecon_cache_misses_total (Counter): Cache misses, stale records included
//   - ghrecon_cache_errors_total{operation} (Counter): Cache backend errors by operation
//   - ghrecon_cache_sweep_removed_total (Counter): Records removed by sweeps
//
// Request Metrics (pkg/client):
//   - ghrecon_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - ghrecon_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ghrecon_errors_total{class} (Counter): Errors by class (fatal, rate_limit, transport, validation)
//   - ghrecon_rate_limit_cooldowns_total (Counter): Cooldown-and-retry cycles triggered by 403 responses
//
// Recon Metrics (pkg/recon):
//   - ghrecon_hosts_discovered_total (Counter): Repository records normalized and stored
//   - ghrecon_records_skipped_total (Counter): Raw records skipped as unusable
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ghrecon_cache_hits_total[5m])) /
//   (sum(rate(ghrecon_cache_hits_total[5m])) + sum(rate(ghrecon_cache_misses_total[5m])))
//
//   # Quota Status
//   ghrecon_rate_limit_remaining < 100
//
//   # Request Error Rate
//   rate(ghrecon_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ghrecon_request_duration_seconds_bucket[5m]))
//
//   # Cooldown Frequency
//   rate(ghrecon_rate_limit_cooldowns_total[15m])
