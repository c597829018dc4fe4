package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Sternrassler/orderbook-mirror/pkg/cache"
	"github.com/Sternrassler/orderbook-mirror/pkg/config"
	"github.com/Sternrassler/orderbook-mirror/pkg/logging"
	"github.com/Sternrassler/orderbook-mirror/pkg/orderbook"
	"github.com/Sternrassler/orderbook-mirror/pkg/ratelimit"
	"github.com/Sternrassler/orderbook-mirror/pkg/server"
	"github.com/Sternrassler/orderbook-mirror/pkg/upstream"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const startupPingTimeout = 3 * time.Second

// app holds the wired components for one process.
type app struct {
	cfg         config.Config
	store       cache.Store
	redis       *redis.Client
	coordinator *orderbook.Coordinator
	server      *server.Server
}

// newApp wires store, rate limiter, upstream client, coordinator and server.
func newApp(cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	switch cfg.CacheBackend {
	case config.BackendRedis:
		opts, err := redisOptions(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redis = redis.NewClient(opts)
		a.store = cache.NewRedisStore(a.redis, cfg.RedisRetention)
	default:
		a.store = cache.NewMemoryStore()
	}

	// With a zero rate the tracker only enforces upstream Retry-After blocks.
	limiter := ratelimit.NewTracker(ratelimit.Config{
		RequestsPerSecond: cfg.UpstreamRateLimit,
		Burst:             cfg.UpstreamRateBurst,
	}, logging.NewLogger("ratelimit"))

	client, err := upstream.New(upstream.Config{
		BaseURL:     cfg.UpstreamBaseURL,
		Timeout:     cfg.UpstreamTimeout,
		UserAgent:   cfg.UserAgent,
		RateLimiter: limiter,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create upstream client: %w", err)
	}

	a.coordinator = orderbook.New(a.store, client,
		orderbook.WithTTL(cfg.CacheTTL),
		orderbook.WithStaleOnError(cfg.StaleOnError),
		orderbook.WithLogger(logging.NewLogger("orderbook")),
	)

	opts := []server.Option{
		server.WithAddress(cfg.Addr()),
		server.WithLogger(logging.NewLogger("http")),
	}
	if p, ok := a.store.(cache.Pinger); ok {
		opts = append(opts, server.WithPinger(p))
	}
	a.server = server.New(a.coordinator, opts...)

	return a, nil
}

// Close releases the Redis connection pool, if any.
func (a *app) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

// redisOptions accepts either host:port or a redis:// URL.
func redisOptions(raw string) (*redis.Options, error) {
	if strings.HasPrefix(raw, "redis://") || strings.HasPrefix(raw, "rediss://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: raw}, nil
}

// serve runs the HTTP server until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := logging.NewLogger("main")
	logger.Info().
		Str("version", version).
		Str("addr", cfg.Addr()).
		Str("upstream", cfg.UpstreamBaseURL).
		Str("cache_backend", cfg.CacheBackend).
		Dur("ttl", cfg.CacheTTL).
		Bool("stale_on_error", cfg.StaleOnError).
		Msg("Starting orderbook mirror")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Start(gctx)
	})

	// A down backend is not fatal: lookups degrade to upstream-only and /ready reports it.
	if p, ok := a.store.(cache.Pinger); ok && a.redis != nil {
		g.Go(func() error {
			pingCtx, cancel := context.WithTimeout(gctx, startupPingTimeout)
			defer cancel()
			if err := p.Ping(pingCtx); err != nil {
				logger.Warn().Err(err).Str("redis", cfg.RedisURL).Msg("Redis not reachable at startup")
				return nil
			}
			logger.Info().Str("redis", cfg.RedisURL).Msg("Connected to Redis")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("Orderbook mirror stopped")
	return nil
}

// fetchOnce resolves a single symbol and writes the result to w.
func fetchOnce(ctx context.Context, cfg config.Config, symbol string, w io.Writer) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.coordinator.Resolve(ctx, symbol)
	if err := printJSON(w, res.Body()); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if !res.OK() {
		return fmt.Errorf("resolve %q: %s", symbol, res.Failure.Message)
	}
	return nil
}
