// Package orderbook resolves order-book requests with cache-aside semantics.
//
// A Coordinator serves a symbol from its cache.Store while the stored entry
// is younger than the TTL, and otherwise fetches from the upstream, stores
// the new snapshot and returns it. Upstream failures are returned as
// failures and leave the store untouched.
//
// Concurrent misses for the same symbol are not merged: each caller that
// finds the entry absent or stale performs its own upstream fetch. No lock
// is held while the upstream call is in flight.
package orderbook

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/orderbook-mirror/pkg/cache"
	"github.com/Sternrassler/orderbook-mirror/pkg/upstream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//go:generate mockgen -package=orderbook_test -destination=mock_fetcher_test.go github.com/Sternrassler/orderbook-mirror/pkg/upstream Fetcher
//go:generate mockgen -package=orderbook_test -destination=mock_store_test.go github.com/Sternrassler/orderbook-mirror/pkg/cache Store

// DefaultTTL is how long a fetched order book is served from cache.
const DefaultTTL = 3 * time.Second

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTTL sets the freshness window. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithStaleOnError makes Resolve return the last stored entry, whatever its
// age, when the upstream fetch fails. Disabled by default: a failed refetch
// is reported as a failure even if an older snapshot exists.
func WithStaleOnError(enabled bool) Option {
	return func(c *Coordinator) {
		c.staleOnError = enabled
	}
}

// Coordinator is the single entry point for order book lookups.
type Coordinator struct {
	store        cache.Store
	fetcher      upstream.Fetcher
	ttl          time.Duration
	now          func() time.Time
	staleOnError bool
	logger       zerolog.Logger
}

// New creates a coordinator over store and fetcher.
func New(store cache.Store, fetcher upstream.Fetcher, opts ...Option) *Coordinator {
	if store == nil {
		panic("cache store cannot be nil")
	}
	if fetcher == nil {
		panic("upstream fetcher cannot be nil")
	}

	c := &Coordinator{
		store:   store,
		fetcher: fetcher,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  log.With().Str("component", "orderbook").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// TTL returns the configured freshness window.
func (c *Coordinator) TTL() time.Duration {
	return c.ttl
}

// Store returns the underlying cache store.
func (c *Coordinator) Store() cache.Store {
	return c.store
}

// Resolve returns the order book for symbol.
//
// The symbol is normalized before the cache lookup and the upstream call.
// A fresh entry is returned as-is. Otherwise the upstream is called; on
// success the payload is stored with the time Resolve started and returned,
// on failure a Failure is returned and the store is not modified.
func (c *Coordinator) Resolve(ctx context.Context, symbol string) Result {
	symbol = cache.NormalizeSymbol(symbol)
	if symbol == "" {
		resolveTotal.WithLabelValues("error").Inc()
		return failure(symbol, Failure{Message: "symbol is required"})
	}

	now := c.now()

	entry, err := c.store.Get(ctx, symbol)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Cache get error")
		}
		entry = nil
	}

	if entry != nil && entry.IsFresh(now, c.ttl) {
		age := entry.Age(now)
		cache.CacheHits.Inc()
		resolveTotal.WithLabelValues(string(SourceHit)).Inc()
		c.logger.Debug().
			Str("symbol", symbol).
			Bool("cache_hit", true).
			Dur("age", age).
			Msg("Serving order book from cache")
		return success(symbol, entry.Payload, SourceHit, entry.FetchedAt, age)
	}

	source := SourceMiss
	reason := "absent"
	if entry != nil {
		source = SourceRefresh
		reason = "stale"
	}
	cache.CacheMisses.WithLabelValues(reason).Inc()
	c.logger.Debug().
		Str("symbol", symbol).
		Bool("cache_hit", false).
		Str("reason", reason).
		Msg("Fetching order book from upstream")

	payload, err := c.fetcher.FetchOrderBook(ctx, symbol)
	if err != nil {
		return c.onFetchError(symbol, entry, now, err)
	}

	stored := cache.Entry{
		Symbol:    symbol,
		Payload:   payload,
		FetchedAt: now,
	}
	if err := c.store.Put(ctx, stored); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache order book")
	}

	resolveTotal.WithLabelValues(string(source)).Inc()
	return success(symbol, payload, source, now, 0)
}

// onFetchError builds the result for a failed upstream call.
func (c *Coordinator) onFetchError(symbol string, entry *cache.Entry, now time.Time, err error) Result {
	if c.staleOnError && entry != nil {
		age := entry.Age(now)
		cache.StaleServed.Inc()
		resolveTotal.WithLabelValues(string(SourceStale)).Inc()
		c.logger.Warn().
			Err(err).
			Str("symbol", symbol).
			Dur("age", age).
			Msg("Upstream failed - serving stale order book")
		return success(symbol, entry.Payload, SourceStale, entry.FetchedAt, age)
	}

	resolveTotal.WithLabelValues("error").Inc()

	f := Failure{Message: err.Error()}
	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		f.Kind = upErr.Kind()
		f.Class = upErr.Class
	}
	return failure(symbol, f)
}
