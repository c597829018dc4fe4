package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates no entry exists for the requested symbol
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store holds the most recent Entry per symbol.
//
// Get returns the entry regardless of its age, or ErrCacheMiss. Put
// unconditionally replaces any existing entry for entry.Symbol. Both must be
// safe for concurrent use and a reader must never observe a partially
// written entry.
type Store interface {
	Get(ctx context.Context, symbol string) (*Entry, error)
	Put(ctx context.Context, entry Entry) error
}

// Pinger is implemented by stores that depend on an external service.
type Pinger interface {
	Ping(ctx context.Context) error
}
