// Package upstream fetches order-book snapshots from the exchange REST API.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Sternrassler/orderbook-mirror/pkg/ratelimit"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upstream requests.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderbook_upstream_requests_total",
		Help: "Total upstream order book requests by status",
	}, []string{"status"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderbook_upstream_request_duration_seconds",
		Help:    "Upstream order book request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderbook_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the exchange API host.
	DefaultBaseURL = "https://api.nobitex.ir"

	// OrderBookPath is the order book endpoint; {symbol} is substituted per request.
	OrderBookPath = "/v2/orderbook/{symbol}"

	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 5 * time.Second

	// maxMessageLen truncates upstream error bodies quoted in error messages.
	maxMessageLen = 256
)

// Fetcher is the operation the coordinator depends on.
type Fetcher interface {
	FetchOrderBook(ctx context.Context, symbol string) (json.RawMessage, error)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the upstream API (scheme and host)
	BaseURL string

	// Timeout bounds each FetchOrderBook call, including body read
	Timeout time.Duration

	// UserAgent header sent upstream
	UserAgent string

	// RateLimiter gates outbound requests (optional)
	RateLimiter *ratelimit.Tracker
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Timeout:   DefaultTimeout,
		UserAgent: "orderbook-mirror/0.1.0",
	}
}

// Client is the upstream order book client.
type Client struct {
	resty       *resty.Client
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		resty:       rc,
		rateLimiter: cfg.RateLimiter,
		config:      cfg,
		logger:      log.With().Str("component", "upstream-client").Logger(),
	}, nil
}

// FetchOrderBook performs GET /v2/orderbook/{symbol} and returns the body
// unmodified. Every failure is returned as *Error. The symbol is sent as given;
// normalization is the caller's job.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, c.fail(&Error{
				Symbol:  symbol,
				Class:   ErrorClassRateLimit,
				Message: "request not sent",
				Err:     err,
			})
		}
	}

	startTime := time.Now()
	resp, err := c.resty.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		Get(OrderBookPath)
	duration := time.Since(startTime)
	upstreamRequestDuration.Observe(duration.Seconds())

	if err != nil {
		upstreamRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, c.fail(&Error{
			Symbol: symbol,
			Class:  classifyTransportError(ctx, err),
			Err:    err,
		})
	}

	status := resp.StatusCode()
	upstreamRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	if c.rateLimiter != nil {
		c.rateLimiter.UpdateFromResponse(status, resp.Header())
	}

	if class := classifyStatus(status); class != "" {
		return nil, c.fail(&Error{
			Symbol:     symbol,
			Class:      class,
			StatusCode: status,
			Message:    summarize(resp.Status(), resp.Body()),
		})
	}

	body := resp.Body()
	if !json.Valid(body) {
		return nil, c.fail(&Error{
			Symbol:     symbol,
			Class:      ErrorClassDecode,
			StatusCode: status,
			Message:    "response body is not valid JSON",
		})
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Int("status_code", status).
		Dur("duration", duration).
		Int("bytes", len(body)).
		Msg("Fetched order book")

	return json.RawMessage(body), nil
}

// fail records and logs an upstream error before it is returned.
func (c *Client) fail(err *Error) *Error {
	upstreamErrorsTotal.WithLabelValues(string(err.Class)).Inc()
	c.logger.Warn().
		Err(err).
		Str("symbol", err.Symbol).
		Str("error_class", string(err.Class)).
		Int("status_code", err.StatusCode).
		Msg("Upstream order book request failed")
	return err
}

// classifyStatus returns the error class for a non-success status, or "" for 2xx.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// classifyTransportError separates timeouts from other connection failures.
func classifyTransportError(ctx context.Context, err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	return ErrorClassNetwork
}

// summarize builds a short message from the status line and body.
func summarize(status string, body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxMessageLen {
		// Cut on a rune boundary so the message stays valid UTF-8.
		cut := maxMessageLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	if text == "" {
		return status
	}
	return status + ": " + text
}

// BaseURL returns the configured upstream base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// SetTransport replaces the HTTP transport (for testing).
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.resty.SetTransport(rt)
}
