package cache

import (
	"encoding/json"
	"time"
)

// Entry is the last successful upstream fetch for one symbol.
type Entry struct {
	// Symbol is the normalized trading symbol (e.g. "BTCIRT")
	Symbol string `json:"symbol"`

	// Payload is the upstream response body, passed through unmodified
	Payload json.RawMessage `json:"payload"`

	// FetchedAt is when the upstream returned Payload
	FetchedAt time.Time `json:"fetched_at"`
}

// Age returns how long ago the entry was fetched relative to now.
// A FetchedAt in the future (clock skew between mirror processes) yields 0.
func (e *Entry) Age(now time.Time) time.Duration {
	age := now.Sub(e.FetchedAt)
	if age < 0 {
		return 0
	}
	return age
}

// IsFresh reports whether the entry is younger than ttl. An entry exactly
// ttl old is stale.
func (e *Entry) IsFresh(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}

func (e Entry) clone() Entry {
	if e.Payload != nil {
		e.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	return e
}
