// Package metrics exposes the Prometheus registry used by the mirror.
// Metrics themselves are defined in their owning packages (cache, upstream,
// ratelimit, orderbook, server) and registered via promauto, so this package
// only provides the scrape handler and the catalogue below.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the mirror.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics handler for the default gatherer.
func Handler() http.Handler {
	return HandlerFor(prometheus.DefaultGatherer)
}

// HandlerFor returns a /metrics handler for g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - orderbook_cache_hits_total (Counter): Requests served from a fresh entry
//   - orderbook_cache_misses_total{reason} (Counter): Misses, reason is "absent" or "stale"
//   - orderbook_cache_stale_served_total (Counter): Stale entries served after an upstream failure
//   - orderbook_cache_entries{backend} (Gauge): Entries held by the in-memory store
//   - orderbook_cache_errors_total{operation} (Counter): Store get/set/unmarshal errors
//
// Upstream Metrics (pkg/upstream):
//   - orderbook_upstream_requests_total{status} (Counter): Upstream requests by HTTP status
//   - orderbook_upstream_request_duration_seconds (Histogram): Upstream request duration
//   - orderbook_upstream_errors_total{class} (Counter): Failures by class
//     (network, timeout, rate_limit, client, server, decode)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - orderbook_rate_limit_blocks_total (Counter): Requests rejected while a 429 block is active
//   - orderbook_rate_limit_throttles_total (Counter): Requests that waited on the local limiter
//
// Resolve Metrics (pkg/orderbook):
//   - orderbook_resolve_total{result} (Counter): Resolve outcomes (hit, miss, refresh, stale, error)
//
// HTTP Metrics (pkg/server):
//   - orderbook_http_requests_total{route, code} (Counter): Served HTTP requests
//   - orderbook_http_request_duration_seconds{route} (Histogram): HTTP handler duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(orderbook_cache_hits_total[5m])) /
//   (sum(rate(orderbook_cache_hits_total[5m])) + sum(rate(orderbook_cache_misses_total[5m])))
//
//   # Upstream Error Rate by class
//   sum by (class) (rate(orderbook_upstream_errors_total[5m]))
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(orderbook_upstream_request_duration_seconds_bucket[5m]))
