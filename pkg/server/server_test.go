package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/orderbook-mirror/internal/testutil"
	"github.com/Sternrassler/orderbook-mirror/pkg/cache"
	"github.com/Sternrassler/orderbook-mirror/pkg/orderbook"
	"github.com/Sternrassler/orderbook-mirror/pkg/upstream"
	"github.com/rs/zerolog"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	mock   *testutil.MockUpstream
	clock  *testClock
	server *Server
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	mock := testutil.NewMockUpstream()
	t.Cleanup(mock.Close)

	client, err := upstream.New(upstream.Config{
		BaseURL:   mock.URL(),
		Timeout:   time.Second,
		UserAgent: "orderbook-mirror-test/1.0",
	})
	if err != nil {
		t.Fatalf("upstream.New failed: %v", err)
	}

	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	coord := orderbook.New(cache.NewMemoryStore(), client,
		orderbook.WithClock(clock.Now),
		orderbook.WithLogger(zerolog.Nop()),
	)

	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return &fixture{
		mock:   mock,
		clock:  clock,
		server: New(coord, opts...),
	}
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type resolverFunc func(context.Context, string) orderbook.Result

func (f resolverFunc) Resolve(ctx context.Context, symbol string) orderbook.Result {
	return f(ctx, symbol)
}

func TestNew_NilResolverPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(nil) should panic")
		}
	}()
	New(nil)
}

func TestIndex(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "Orderbook mirror is running" {
		t.Errorf("body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/health")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "OK" {
		t.Errorf("body = %q, want OK", got)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		pinger cache.Pinger
		want   int
	}{
		{"no pinger", nil, http.StatusOK},
		{"healthy backend", pingerFunc(func(context.Context) error { return nil }), http.StatusOK},
		{"backend down", pingerFunc(func(context.Context) error { return errors.New("connection refused") }), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, WithPinger(tt.pinger))

			rec := f.get("/ready")

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestOrderBook_MissThenHit(t *testing.T) {
	f := newFixture(t)

	// First request goes upstream
	rec := f.get("/api/orderbook/BTCIRT")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get(HeaderCache); got != "MISS" {
		t.Errorf("%s = %q, want MISS", HeaderCache, got)
	}
	if got := rec.Header().Get(HeaderAge); got != "0" {
		t.Errorf("%s = %q, want 0", HeaderAge, got)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if got := rec.Body.String(); got != testutil.SampleOrderBook {
		t.Errorf("body = %s, want upstream payload unchanged", got)
	}

	// Second request within the TTL is served from cache
	f.clock.Advance(time.Second)
	rec = f.get("/api/orderbook/BTCIRT")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get(HeaderCache); got != "HIT" {
		t.Errorf("%s = %q, want HIT", HeaderCache, got)
	}
	if got := rec.Header().Get(HeaderAge); got != "1" {
		t.Errorf("%s = %q, want 1", HeaderAge, got)
	}
	if got := rec.Body.String(); got != testutil.SampleOrderBook {
		t.Errorf("body = %s, want upstream payload unchanged", got)
	}

	if n := f.mock.GetRequestCount(); n != 1 {
		t.Errorf("upstream requests = %d, want 1", n)
	}
}

func TestOrderBook_SymbolNormalized(t *testing.T) {
	f := newFixture(t)

	if code := f.get("/api/orderbook/btcirt").Code; code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	rec := f.get("/api/orderbook/BtcIrt")

	if got := rec.Header().Get(HeaderCache); got != "HIT" {
		t.Errorf("%s = %q, want HIT", HeaderCache, got)
	}
	if n := f.mock.GetSymbolRequestCount("BTCIRT"); n != 1 {
		t.Errorf("upstream requests for BTCIRT = %d, want 1", n)
	}
}

func TestOrderBook_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name string
		resp testutil.MockResponse
	}{
		{"server error", testutil.NewServerErrorResponse()},
		{"not found", testutil.NewNotFoundResponse()},
		{"malformed body", testutil.NewMalformedResponse()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.mock.SetResponse("ETHIRT", tt.resp)

			rec := f.get("/api/orderbook/ETHIRT")

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}
			if got := rec.Header().Get(HeaderCache); got != "" {
				t.Errorf("%s = %q on failure, want none", HeaderCache, got)
			}

			var body orderbook.ErrorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
			}
			if body.Error == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestOrderBook_FailureThenRecovery(t *testing.T) {
	f := newFixture(t)
	f.mock.SetResponse("BTCIRT", testutil.NewServerErrorResponse())

	if code := f.get("/api/orderbook/BTCIRT").Code; code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}

	// Failures are not cached: the next call goes upstream again.
	f.mock.SetResponse("BTCIRT", testutil.NewOrderBookResponse(testutil.SampleOrderBook))
	rec := f.get("/api/orderbook/BTCIRT")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get(HeaderCache); got != "MISS" {
		t.Errorf("%s = %q, want MISS", HeaderCache, got)
	}
	if n := f.mock.GetSymbolRequestCount("BTCIRT"); n != 2 {
		t.Errorf("upstream requests for BTCIRT = %d, want 2", n)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/api/unknown")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var body orderbook.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	if body.Error == "" {
		t.Error("error message is empty")
	}
}

func TestRequestLogger_RecordsHandlerError(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, WithLogger(zerolog.New(&buf)))

	rec := f.get("/api/unknown")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body orderbook.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not a single error body %q: %v", rec.Body.String(), err)
	}

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if line["status"] != float64(http.StatusNotFound) {
		t.Errorf("logged status = %v, want 404", line["status"])
	}
	errField, _ := line["error"].(string)
	if !strings.Contains(errField, "code=404") {
		t.Errorf("logged error = %q, want the handler error", errField)
	}
}

func TestPanicRecovered(t *testing.T) {
	s := New(resolverFunc(func(context.Context, string) orderbook.Result {
		panic("boom")
	}), WithLogger(zerolog.Nop()))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orderbook/BTCIRT", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.get("/health")

	rec := f.get("/metrics")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	want := `orderbook_http_requests_total{code="200",route="/health"}`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics output missing %s", want)
	}
}

func TestCacheStatus(t *testing.T) {
	tests := []struct {
		src  orderbook.Source
		want string
	}{
		{orderbook.SourceHit, "HIT"},
		{orderbook.SourceMiss, "MISS"},
		{orderbook.SourceRefresh, "MISS"},
		{orderbook.SourceStale, "STALE"},
	}
	for _, tt := range tests {
		if got := cacheStatus(tt.src); got != tt.want {
			t.Errorf("cacheStatus(%s) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, WithAddress("127.0.0.1:0"), WithShutdownTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Start(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}
