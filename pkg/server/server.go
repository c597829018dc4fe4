// Package server exposes the order book mirror over HTTP using echo.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Sternrassler/orderbook-mirror/pkg/cache"
	"github.com/Sternrassler/orderbook-mirror/pkg/metrics"
	"github.com/Sternrassler/orderbook-mirror/pkg/orderbook"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults for the HTTP server.
const (
	DefaultAddress         = ":10000"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
)

// Resolver resolves a symbol to an order book result.
type Resolver interface {
	Resolve(ctx context.Context, symbol string) orderbook.Result
}

// Option configures a Server.
type Option func(*Server)

// WithAddress sets the listen address.
func WithAddress(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.address = addr
		}
	}
}

// WithPinger sets the dependency checked by /ready.
func WithPinger(p cache.Pinger) Option {
	return func(s *Server) {
		s.pinger = p
	}
}

// WithLogger sets the server and access logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithMetricsHandler replaces the /metrics handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		if h != nil {
			s.metricsHandler = h
		}
	}
}

// Server is the HTTP front end of the mirror.
type Server struct {
	echo            *echo.Echo
	resolver        Resolver
	pinger          cache.Pinger
	address         string
	shutdownTimeout time.Duration
	metricsHandler  http.Handler
	logger          zerolog.Logger
}

// New builds a Server around resolver and registers all routes.
func New(resolver Resolver, opts ...Option) *Server {
	if resolver == nil {
		panic("resolver cannot be nil")
	}

	s := &Server{
		resolver:        resolver,
		address:         DefaultAddress,
		shutdownTimeout: DefaultShutdownTimeout,
		metricsHandler:  metrics.Handler(),
		logger:          log.With().Str("component", "http").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Server.ReadTimeout = DefaultReadTimeout
	e.Server.WriteTimeout = DefaultWriteTimeout

	e.Use(requestLogger(s.logger))
	e.Use(instrument())
	e.Use(middleware.Recover())

	s.echo = e
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/api/orderbook/:symbol", s.handleOrderBook)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/ready", s.handleReady)
	s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.address
}

// Start serves until ctx is cancelled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.address,
		Handler:      s.echo,
		ReadTimeout:  s.echo.Server.ReadTimeout,
		WriteTimeout: s.echo.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.address).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Dur("timeout", s.shutdownTimeout).Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// errorHandler renders echo errors in the same JSON shape as failed lookups.
func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		}
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, orderbook.ErrorBody{Error: msg})
}
