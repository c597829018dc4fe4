// Package cache stores the most recent order-book snapshot per trading symbol.
//
// A Store holds no freshness policy. It answers "what did we fetch last for
// this symbol, and when", and the caller decides whether that entry is still
// fresh. Two backends are provided:
//
//   - MemoryStore keeps entries in a mutex-guarded map owned by the process.
//   - RedisStore keeps JSON-encoded entries in Redis so several mirror
//     processes can share one cache.
//
// # Basic Usage
//
//	store := cache.NewMemoryStore()
//
//	// Store a snapshot
//	err := store.Put(ctx, cache.Entry{
//		Symbol:    "BTCIRT",
//		Payload:   json.RawMessage(`{"bids":[],"asks":[]}`),
//		FetchedAt: time.Now(),
//	})
//
//	// Read it back and decide freshness
//	entry, err := store.Get(ctx, "btcirt")
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// nothing cached yet
//	}
//	if entry.IsFresh(time.Now(), 3*time.Second) {
//		// serve entry.Payload
//	}
//
// # Keys
//
// Symbols are normalized with NormalizeSymbol before every lookup, so
// "btcirt" and " BTCIRT " address the same entry. Redis keys have the form
// orderbook:<SYMBOL>.
//
// # Metrics
//
//   - orderbook_cache_hits_total - fresh entries served
//   - orderbook_cache_misses_total{reason} - absent or stale lookups
//   - orderbook_cache_stale_served_total - stale entries served after an upstream failure
//   - orderbook_cache_errors_total{operation} - backend errors (Redis only)
//   - orderbook_cache_entries{backend} - number of symbols held by the memory store
package cache
