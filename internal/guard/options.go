// Package guard holds the per-identity abuse controls: login lockout,
// presence tracking and content cooldowns.
//
// In-memory implementations keep state per process and are safe for
// concurrent use. Redis-backed implementations share state across instances.
package guard

import (
	"context"
	"time"
)

// Option configures a guard.
type Option func(*settings)

type settings struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests that need to move time forward.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

func applyOptions(opts []Option) settings {
	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Sweeper drops state that can no longer affect any decision.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}
