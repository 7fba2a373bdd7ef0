// Package ratelimit throttles clients with a fixed-window counter kept in the
// shared key-value store. Each client identity gets one counter per window;
// the window starts at the identity's first request and is never extended by
// later requests. When the store is unavailable the limiter fails open.
package ratelimit

import (
	"context"
	"time"
)

// Limiter defines the rate limiting contract. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// Admit decides whether a request from identity may proceed. It never
	// returns an error: store failures are reported as an allowed Decision
	// with Known set to false.
	Admit(ctx context.Context, identity string) Decision
}

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed   bool
	Remaining int       // Requests left in the current window; meaningful only when Known
	Known     bool      // False when the store could not be consulted (fail-open)
	Limit     int       // Capacity per window
	ResetAt   time.Time // Window end when it is known to this call, zero otherwise
}
