package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh entries served without an upstream call
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderbook_cache_hits_total",
			Help: "Total number of order book cache hits",
		},
	)

	// CacheMisses tracks lookups that required an upstream fetch
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbook_cache_misses_total",
			Help: "Total number of order book cache misses",
		},
		[]string{"reason"}, // "absent", "stale"
	)

	// StaleServed tracks stale entries returned after an upstream failure
	StaleServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderbook_cache_stale_served_total",
			Help: "Total number of stale order book entries served after upstream failures",
		},
	)

	// CacheEntries tracks the number of symbols held by a backend
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orderbook_cache_entries",
			Help: "Current number of cached order book symbols",
		},
		[]string{"backend"}, // "memory"
	)

	// CacheErrors tracks cache backend errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbook_cache_errors_total",
			Help: "Total number of cache backend errors",
		},
		[]string{"operation"}, // "get", "put", "ping"
	)
)
