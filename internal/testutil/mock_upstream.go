// Package testutil provides testing utilities for the order book mirror.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// OrderBookPathPrefix is the upstream order book route served by MockUpstream.
const OrderBookPathPrefix = "/v2/orderbook/"

// SampleOrderBook is a small order book in the upstream's response shape.
const SampleOrderBook = `{"status":"ok","lastUpdate":1714564800000,"lastTradePrice":"6500000000",` +
	`"bids":[["6499000000","0.015"],["6498000000","0.2"]],` +
	`"asks":[["6501000000","0.01"],["6502000000","0.5"]]}`

// MockResponse defines the behavior for a mock upstream response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is a configurable mock of the exchange order book API.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	requestCount      int
	symbolCounts      map[string]int
	lastRequestHeader http.Header
}

// NewMockUpstream creates a new mock upstream server.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers:     make(map[string]http.HandlerFunc),
		symbolCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimPrefix(r.URL.Path, OrderBookPathPrefix)

		mock.mu.Lock()
		mock.requestCount++
		mock.symbolCounts[symbol]++
		mock.lastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[symbol]
		mock.mu.Unlock()

		if !strings.HasPrefix(r.URL.Path, OrderBookPathPrefix) || symbol == "" {
			http.NotFound(w, r)
			return
		}

		if exists {
			handler(w, r)
			return
		}

		writeResponse(w, NewOrderBookResponse(SampleOrderBook))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.symbolCounts = make(map[string]int)
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a symbol exactly as it appears in the path.
func (m *MockUpstream) SetHandler(symbol string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[symbol] = handler
}

// SetResponse configures a fixed response for a symbol.
func (m *MockUpstream) SetResponse(symbol string, resp MockResponse) {
	m.SetHandler(symbol, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockUpstream) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetSymbolRequestCount returns the number of requests for one symbol path segment.
func (m *MockUpstream) GetSymbolRequestCount(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.symbolCounts[symbol]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockUpstream) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewOrderBookResponse creates a standard 200 OK JSON response.
func NewOrderBookResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"status":"failed","message":"Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewNotFoundResponse creates the response the upstream gives for unknown symbols.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"status":"failed","code":"NotFound","message":"Not found"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if retryAfter != "" {
		headers["Retry-After"] = retryAfter
	}
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"status":"failed","message":"Too many requests"}`,
		Headers:    headers,
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       "<html>maintenance</html>",
		Headers: map[string]string{
			"Content-Type": "text/html",
		},
	}
}

// NewSlowResponse wraps a response with a delay.
func NewSlowResponse(resp MockResponse, delay time.Duration) MockResponse {
	resp.Delay = delay
	return resp
}
