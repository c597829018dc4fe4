package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbook_http_requests_total",
			Help: "HTTP requests served by route and status code",
		},
		[]string{"route", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orderbook_http_request_duration_seconds",
			Help:    "HTTP handler duration by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// instrument records per-route request counts and latency. Handler errors
// are rendered here so the recorded status matches what the client sees, then
// passed on for the request logger; errorHandler skips committed responses.
func instrument() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			httpRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Response().Status)).Inc()
			httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// requestLogger writes one zerolog line per request.
func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logger.Info()
			if v.Status >= 500 {
				ev = logger.Warn()
			}
			if v.Error != nil {
				ev = ev.Err(v.Error)
			}
			if sym := c.Param("symbol"); sym != "" {
				ev = ev.Str("symbol", sym)
			}
			if xc := c.Response().Header().Get(HeaderCache); xc != "" {
				ev = ev.Str("cache", xc)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("duration", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("HTTP request")
			return nil
		},
	})
}
