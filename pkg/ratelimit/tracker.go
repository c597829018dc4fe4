package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for outbound rate limiting.
var (
	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderbook_rate_limit_blocks_total",
		Help: "Total number of upstream requests rejected by the rate limit gate",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderbook_rate_limit_throttles_total",
		Help: "Total number of upstream requests delayed by the token bucket",
	})
)

var (
	// ErrBlocked is returned while a Retry-After block is active.
	ErrBlocked = errors.New("upstream rate limit: blocked by Retry-After")

	// ErrThrottled is returned when no token can be obtained before the context deadline.
	ErrThrottled = errors.New("upstream rate limit: no token before deadline")
)

// Config holds gate configuration.
type Config struct {
	// RequestsPerSecond is the steady outbound rate. Zero disables the token bucket.
	RequestsPerSecond float64

	// Burst is the token bucket size.
	Burst int
}

// Tracker observes upstream responses and gates outbound requests.
type Tracker struct {
	limiter *rate.Limiter
	now     func() time.Time
	logger  zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewTracker creates a new rate limit tracker.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		now:    time.Now,
		logger: logger,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return t
}

// GetState returns a copy of the current state.
func (t *Tracker) GetState() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until a request may be sent.
// Returns ErrBlocked during a Retry-After block and ErrThrottled if the
// token bucket cannot admit the request before ctx expires.
func (t *Tracker) Wait(ctx context.Context) error {
	now := t.now()
	state := t.GetState()

	if state.IsBlocked(now) {
		t.logger.Warn().
			Dur("wait_duration", state.TimeUntilUnblock(now)).
			Msg("Upstream rate limit active - rejecting request")
		rateLimitBlocksTotal.Inc()
		return ErrBlocked
	}

	if t.limiter == nil {
		return nil
	}

	if t.limiter.Allow() {
		return nil
	}

	rateLimitThrottlesTotal.Inc()
	t.logger.Debug().Msg("Upstream token bucket empty - throttling request")

	if err := t.limiter.Wait(ctx); err != nil {
		rateLimitBlocksTotal.Inc()
		return fmt.Errorf("%w: %v", ErrThrottled, err)
	}
	return nil
}

// UpdateFromResponse records an upstream response. A 429 arms a block until
// the instant given by Retry-After (delta-seconds or HTTP-date).
func (t *Tracker) UpdateFromResponse(statusCode int, headers http.Header) {
	now := t.now()

	t.mu.Lock()
	t.state.LastStatus = statusCode
	t.state.LastUpdate = now

	if statusCode != http.StatusTooManyRequests {
		t.mu.Unlock()
		return
	}

	block := parseRetryAfter(headers.Get("Retry-After"), now)
	until := now.Add(block)
	if until.After(t.state.BlockedUntil) {
		t.state.BlockedUntil = until
	}
	blockedUntil := t.state.BlockedUntil
	t.mu.Unlock()

	t.logger.Warn().
		Int("status_code", statusCode).
		Time("blocked_until", blockedUntil).
		Msg("Upstream returned 429 - blocking requests")
}

// parseRetryAfter converts a Retry-After header value into a block duration.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultBlock
	}

	var block time.Duration
	if seconds, err := strconv.Atoi(value); err == nil {
		block = time.Duration(seconds) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		block = at.Sub(now)
	} else {
		return DefaultBlock
	}

	if block <= 0 {
		return 0
	}
	if block > MaxBlock {
		return MaxBlock
	}
	return block
}
