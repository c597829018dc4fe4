// Package config loads the mirror's runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/orderbook-mirror/pkg/logging"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds every setting the server and CLI need.
type Config struct {
	Port string

	UpstreamBaseURL string
	UpstreamTimeout time.Duration
	UserAgent       string

	CacheTTL     time.Duration
	CacheBackend string
	StaleOnError bool

	RedisURL       string
	RedisRetention time.Duration

	// UpstreamRateLimit is requests per second; 0 disables the local limiter.
	UpstreamRateLimit float64
	UpstreamRateBurst int

	LogLevel  logging.LogLevel
	LogPretty bool
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Port:              "10000",
		UpstreamBaseURL:   "https://api.nobitex.ir",
		UpstreamTimeout:   5 * time.Second,
		UserAgent:         "orderbook-mirror/0.1.0",
		CacheTTL:          3 * time.Second,
		CacheBackend:      BackendMemory,
		RedisURL:          "localhost:6379",
		UpstreamRateBurst: 5,
		LogLevel:          logging.LevelInfo,
	}
}

// Load returns Default overridden by environment variables, validated.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()
	env := envReader{getenv: getenv}

	cfg.Port = env.str("PORT", cfg.Port)
	cfg.UpstreamBaseURL = env.str("UPSTREAM_BASE_URL", cfg.UpstreamBaseURL)
	cfg.UpstreamTimeout = env.duration("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	cfg.UserAgent = env.str("USER_AGENT", cfg.UserAgent)
	cfg.CacheTTL = env.duration("CACHE_TTL", cfg.CacheTTL)
	cfg.CacheBackend = strings.ToLower(env.str("CACHE_BACKEND", cfg.CacheBackend))
	cfg.StaleOnError = env.boolean("STALE_ON_ERROR", cfg.StaleOnError)
	cfg.RedisURL = env.str("REDIS_URL", cfg.RedisURL)
	cfg.RedisRetention = env.duration("REDIS_RETENTION", cfg.RedisRetention)
	cfg.UpstreamRateLimit = env.float("UPSTREAM_RATE_LIMIT", cfg.UpstreamRateLimit)
	cfg.UpstreamRateBurst = env.integer("UPSTREAM_RATE_BURST", cfg.UpstreamRateBurst)
	cfg.LogPretty = env.boolean("LOG_PRETTY", cfg.LogPretty)

	if v := getenv("LOG_LEVEL"); v != "" {
		level, err := logging.ValidateLevel(v)
		if err != nil {
			env.errs = append(env.errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
		cfg.LogLevel = level
	}

	if err := errors.Join(env.errs...); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the invariants the server relies on.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.UpstreamBaseURL == "" {
		errs = append(errs, errors.New("upstream base URL is required"))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("upstream timeout must be positive, got %s", c.UpstreamTimeout))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache TTL must be positive, got %s", c.CacheTTL))
	}
	switch c.CacheBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis URL is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q (want %s or %s)", c.CacheBackend, BackendMemory, BackendRedis))
	}
	if c.RedisRetention < 0 {
		errs = append(errs, fmt.Errorf("redis retention must not be negative, got %s", c.RedisRetention))
	}
	if c.UpstreamRateLimit < 0 {
		errs = append(errs, fmt.Errorf("upstream rate limit must not be negative, got %g", c.UpstreamRateLimit))
	}
	if c.UpstreamRateLimit > 0 && c.UpstreamRateBurst < 1 {
		errs = append(errs, fmt.Errorf("upstream rate burst must be at least 1, got %d", c.UpstreamRateBurst))
	}
	if _, err := logging.ValidateLevel(string(c.LogLevel)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Addr returns the listen address for Port.
func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

// envReader parses typed values and collects parse errors.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (r *envReader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

// ParseDuration accepts Go duration syntax ("750ms", "1h") or a bare
// integer number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func (r *envReader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
	return def
}

func (r *envReader) integer(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *envReader) float(key string, def float64) float64 {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return f
}
