package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/orderbook-mirror/pkg/orderbook"
	"github.com/labstack/echo/v4"
)

// Response headers set on successful order book lookups.
const (
	HeaderCache = "X-Cache"
	HeaderAge   = "Age"
)

const readyTimeout = 2 * time.Second

func (s *Server) handleIndex(c echo.Context) error {
	return c.String(http.StatusOK, "Orderbook mirror is running")
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleReady(c echo.Context) error {
	if s.pinger == nil {
		return c.String(http.StatusOK, "OK")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		return c.JSON(http.StatusServiceUnavailable, orderbook.ErrorBody{Error: "cache backend unavailable"})
	}
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleOrderBook(c echo.Context) error {
	res := s.resolver.Resolve(c.Request().Context(), c.Param("symbol"))

	if !res.OK() {
		return c.JSON(res.StatusCode(), res.Body())
	}

	h := c.Response().Header()
	h.Set(HeaderCache, cacheStatus(res.Source))
	h.Set(HeaderAge, strconv.FormatInt(int64(res.Age/time.Second), 10))
	return c.JSONBlob(res.StatusCode(), res.Payload)
}

func cacheStatus(src orderbook.Source) string {
	switch src {
	case orderbook.SourceHit:
		return "HIT"
	case orderbook.SourceStale:
		return "STALE"
	default:
		return "MISS"
	}
}
