// Package ratelimit gates outbound requests to the order-book upstream.
//
// Two mechanisms apply, both optional:
//   - a token bucket (golang.org/x/time/rate) caps the steady request rate
//   - a Retry-After block, armed when the upstream answers 429, rejects
//     requests outright until the upstream's window has passed
//
// Blocked requests fail fast instead of queueing, so the caller's bounded
// upstream timeout is never consumed by waiting on a known rejection.
package ratelimit

import (
	"time"
)

// DefaultBlock is used when a 429 response carries no usable Retry-After.
const DefaultBlock = 5 * time.Second

// MaxBlock caps how long a single Retry-After may block the gate.
const MaxBlock = 5 * time.Minute

// State is a snapshot of the gate.
type State struct {
	// BlockedUntil is when the Retry-After block ends (zero if never blocked).
	BlockedUntil time.Time `json:"blocked_until"`

	// LastStatus is the last upstream HTTP status observed.
	LastStatus int `json:"last_status"`

	// LastUpdate is when LastStatus was observed.
	LastUpdate time.Time `json:"last_update"`
}

// IsBlocked returns true if requests must be rejected at now.
func (s *State) IsBlocked(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// TimeUntilUnblock returns the remaining block duration.
// Returns 0 if the block has already passed.
func (s *State) TimeUntilUnblock(now time.Time) time.Duration {
	d := s.BlockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
