package upstream

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents connection failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents requests that exceeded the upstream timeout.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassRateLimit represents requests rejected by the outbound rate limit gate.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx and other non-success responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassDecode represents a success response whose body is not valid JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// Kind groups error classes into the two failure modes callers distinguish.
type Kind string

const (
	// KindUnreachable means no usable response was received.
	KindUnreachable Kind = "upstream_unreachable"

	// KindBadResponse means the upstream answered, but not with a usable order book.
	KindBadResponse Kind = "upstream_bad_response"
)

// Kind returns the failure mode of the class.
func (c ErrorClass) Kind() Kind {
	switch c {
	case ErrorClassNetwork, ErrorClassTimeout, ErrorClassRateLimit:
		return KindUnreachable
	default:
		return KindBadResponse
	}
}

// Error is returned by FetchOrderBook for every upstream failure.
type Error struct {
	Symbol     string
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("upstream %s error for %s", e.Class, e.Symbol)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the failure mode of the error.
func (e *Error) Kind() Kind {
	return e.Class.Kind()
}

// ClassOf extracts the ErrorClass from err, or "" if err is not an *Error.
func ClassOf(err error) ErrorClass {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Class
	}
	return ""
}
