// Package ratelimit provides the pluggable sliding-window rate limiter used
// by the HTTP layer. Two implementations exist: an in-process store for
// single-instance deployments and tests, and a Redis-backed store whose
// counters are shared across instances.
// This is part of the platform layer and contains no business logic.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a single limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is when the oldest counted event leaves the window.
	Reset time.Time
}

// Limiter is the capability interface consumed by middleware. Keys are
// caller identifiers (client IP, API key, session id).
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
