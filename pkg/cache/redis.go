package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hash fields of a stored entry. The payload is kept as raw bytes so a hit
// returns exactly what the upstream sent.
const (
	fieldSymbol    = "symbol"
	fieldPayload   = "payload"
	fieldFetchedAt = "fetched_at"
)

// RedisStore is a Store shared between mirror processes through Redis.
type RedisStore struct {
	redis     *redis.Client
	retention time.Duration
}

// NewRedisStore creates a Redis-backed store.
// Retention sets the Redis key expiry; zero keeps entries until overwritten.
// Retention only bounds memory in Redis, freshness is always decided by the caller.
func NewRedisStore(redisClient *redis.Client, retention time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{
		redis:     redisClient,
		retention: retention,
	}
}

// Get retrieves the entry for symbol.
// Returns ErrCacheMiss if the key doesn't exist.
func (s *RedisStore) Get(ctx context.Context, symbol string) (*Entry, error) {
	fields, err := s.redis.HGetAll(ctx, Key(symbol)).Result()
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrCacheMiss
	}

	entry, err := decodeEntry(fields)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.Symbol == "" {
		entry.Symbol = NormalizeSymbol(symbol)
	}
	return entry, nil
}

// Put stores the entry with one HSET inside MULTI/EXEC, so concurrent readers
// see either the old or the new value.
func (s *RedisStore) Put(ctx context.Context, entry Entry) error {
	entry.Symbol = NormalizeSymbol(entry.Symbol)
	key := Key(entry.Symbol)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			fieldSymbol:    entry.Symbol,
			fieldPayload:   []byte(entry.Payload),
			fieldFetchedAt: entry.FetchedAt.UTC().Format(time.RFC3339Nano),
		})
		if s.retention > 0 {
			pipe.Expire(ctx, key, s.retention)
		}
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis hset: %w", err)
	}

	return nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		CacheErrors.WithLabelValues("ping").Inc()
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func decodeEntry(fields map[string]string) (*Entry, error) {
	payload, ok := fields[fieldPayload]
	if !ok {
		return nil, fmt.Errorf("missing %s field", fieldPayload)
	}
	raw, ok := fields[fieldFetchedAt]
	if !ok {
		return nil, fmt.Errorf("missing %s field", fieldFetchedAt)
	}
	fetchedAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldFetchedAt, err)
	}

	return &Entry{
		Symbol:    fields[fieldSymbol],
		Payload:   json.RawMessage(payload),
		FetchedAt: fetchedAt,
	}, nil
}
