package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghrecon_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// CacheMisses tracks cache misses, including stale records.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghrecon_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheErrors tracks backend operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghrecon_cache_errors_total",
			Help: "Total number of cache backend errors",
		},
		[]string{"operation"}, // "get", "put", "sweep"
	)

	// CacheSweepRemoved tracks records deleted by explicit sweeps.
	CacheSweepRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghrecon_cache_sweep_removed_total",
			Help: "Total number of cache records removed by sweeps",
		},
	)
)
