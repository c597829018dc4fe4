package orderbook

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Sternrassler/orderbook-mirror/pkg/upstream"
)

// Source tells where a successful Result's payload came from.
type Source string

const (
	// SourceHit means a fresh cache entry was served without an upstream call.
	SourceHit Source = "hit"

	// SourceMiss means nothing was cached and the upstream was called.
	SourceMiss Source = "miss"

	// SourceRefresh means a stale entry was replaced by a new upstream fetch.
	SourceRefresh Source = "refresh"

	// SourceStale means the upstream failed and a stale entry was served instead.
	// Only produced when stale-on-error is enabled.
	SourceStale Source = "stale"
)

// Failure describes why a symbol could not be resolved.
type Failure struct {
	// Message is a human-readable description returned to the HTTP caller
	Message string

	// Kind is the upstream failure mode; empty for rejected input
	Kind upstream.Kind

	// Class is the upstream error class; empty for rejected input
	Class upstream.ErrorClass
}

// ErrorBody is the JSON shape of a failed response.
type ErrorBody struct {
	Error string `json:"error"`
}

// Result is the outcome of Resolve: exactly one of Payload or Failure is set.
type Result struct {
	Symbol    string
	Payload   json.RawMessage
	Failure   *Failure
	Source    Source
	FetchedAt time.Time
	Age       time.Duration
}

func success(symbol string, payload json.RawMessage, source Source, fetchedAt time.Time, age time.Duration) Result {
	return Result{
		Symbol:    symbol,
		Payload:   payload,
		Source:    source,
		FetchedAt: fetchedAt,
		Age:       age,
	}
}

func failure(symbol string, f Failure) Result {
	return Result{
		Symbol:  symbol,
		Failure: &f,
	}
}

// OK reports whether the result carries a payload.
func (r Result) OK() bool {
	return r.Failure == nil
}

// StatusCode returns the HTTP status for the result: 200 or 500.
func (r Result) StatusCode() int {
	if r.OK() {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// Body returns the value to serialize as the response body: the upstream
// payload on success, ErrorBody otherwise.
func (r Result) Body() any {
	if r.OK() {
		return r.Payload
	}
	return ErrorBody{Error: r.Failure.Message}
}
