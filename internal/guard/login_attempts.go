package guard

import (
	"context"
	"time"

	"github.com/konghome/boardgate/internal/models"
)

// LoginAttemptGuard counts failed logins per identity and locks the identity
// out for a while once the threshold is reached.
//
// States: open (failures below threshold) -> locked (blockedUntil in the
// future) -> open again after expiry or a successful login.
type LoginAttemptGuard interface {
	RecordFailure(ctx context.Context, userID string) (models.LoginAttemptState, error)
	RecordSuccess(ctx context.Context, userID string) error
	IsBlocked(ctx context.Context, userID string) (bool, error)
	RemainingMinutes(ctx context.Context, userID string) (int, error)
}

// LockoutPolicy holds the lockout threshold and duration.
type LockoutPolicy struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// DefaultLockoutPolicy locks for 10 minutes after 5 failures.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxFailedAttempts: 5,
		LockoutDuration:   10 * time.Minute,
	}
}

type attemptRecord struct {
	failures     int
	blockedUntil time.Time // zero when not locked
}

// expired reports a lock that has run out; such a record is logically reset.
func (r *attemptRecord) expired(now time.Time) bool {
	return !r.blockedUntil.IsZero() && !now.Before(r.blockedUntil)
}

func (r *attemptRecord) state() models.LoginAttemptState {
	st := models.LoginAttemptState{FailureCount: r.failures}
	if !r.blockedUntil.IsZero() {
		until := r.blockedUntil
		st.BlockedUntil = &until
	}
	return st
}

// MemoryLoginAttempts keeps lockout records in process memory. Each identity
// has its own lock, so concurrent failures for one identity are counted
// exactly once each while other identities proceed in parallel.
type MemoryLoginAttempts struct {
	policy  LockoutPolicy
	records keyedMap[attemptRecord]
	now     func() time.Time
}

// NewMemoryLoginAttempts creates an in-process LoginAttemptGuard.
func NewMemoryLoginAttempts(policy LockoutPolicy, opts ...Option) *MemoryLoginAttempts {
	s := applyOptions(opts)
	return &MemoryLoginAttempts{
		policy: policy,
		now:    s.now,
	}
}

func (g *MemoryLoginAttempts) RecordFailure(_ context.Context, userID string) (models.LoginAttemptState, error) {
	now := g.now()
	var st models.LoginAttemptState

	g.records.update(userID, func(r *attemptRecord) bool {
		if r.expired(now) {
			*r = attemptRecord{}
		}
		r.failures++
		if r.failures >= g.policy.MaxFailedAttempts {
			r.blockedUntil = now.Add(g.policy.LockoutDuration)
		}
		st = r.state()
		return true
	})

	return st, nil
}

func (g *MemoryLoginAttempts) RecordSuccess(_ context.Context, userID string) error {
	g.records.delete(userID)
	return nil
}

func (g *MemoryLoginAttempts) IsBlocked(_ context.Context, userID string) (bool, error) {
	remaining, err := g.remaining(userID)
	return remaining > 0, err
}

func (g *MemoryLoginAttempts) RemainingMinutes(_ context.Context, userID string) (int, error) {
	remaining, err := g.remaining(userID)
	if err != nil {
		return 0, err
	}
	return (&models.RateLimitError{Kind: models.RateLimitLockout, RetryAfter: remaining}).RemainingMinutes(), nil
}

// remaining returns the lock time left, clearing an expired record on the way.
func (g *MemoryLoginAttempts) remaining(userID string) (time.Duration, error) {
	now := g.now()
	var left time.Duration

	g.records.modify(userID, func(r *attemptRecord) bool {
		if r.blockedUntil.IsZero() {
			return true
		}
		if r.expired(now) {
			return false
		}
		left = r.blockedUntil.Sub(now)
		return true
	})

	return left, nil
}

// Sweep drops records whose lock has expired. Those records would be reset on
// their next read anyway; partial failure counts are kept.
func (g *MemoryLoginAttempts) Sweep(_ context.Context) (int, error) {
	now := g.now()
	return g.records.sweep(func(r *attemptRecord) bool {
		return r.expired(now)
	}), nil
}

// Len reports how many identities currently hold a record.
func (g *MemoryLoginAttempts) Len() int {
	return g.records.len()
}
