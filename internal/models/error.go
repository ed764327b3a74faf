package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
	ErrUnavailable    = errors.New("service unavailable")

	// Token verification failures. Both are 401 to the caller; logs tell them apart.
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrTokenInvalid = fmt.Errorf("%w: token invalid", ErrUnauthorized)

	// Access control
	ErrIPBlocked      = fmt.Errorf("%w: ip address is blocked", ErrForbidden)
	ErrAccountBanned  = fmt.Errorf("%w: account is banned", ErrForbidden)
	ErrAlreadyBlocked = fmt.Errorf("%w: ip address already blocked", ErrConflict)

	// Throttling
	ErrRateLimited = errors.New("rate limited")
)

// RateLimitKind identifies which guard produced a RateLimitError.
type RateLimitKind string

const (
	RateLimitLockout  RateLimitKind = "lockout"
	RateLimitCooldown RateLimitKind = "cooldown"
)

// RateLimitError is returned by the login lockout and the content cooldown.
// It carries the remaining wait so clients can back off.
type RateLimitError struct {
	Kind       RateLimitKind
	Action     ActionType // set for cooldowns
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Kind == RateLimitLockout {
		return fmt.Sprintf("rate limited: login locked for %d more minute(s)", e.RemainingMinutes())
	}
	return fmt.Sprintf("rate limited: %s allowed again in %d second(s)", e.Action, e.RemainingSeconds())
}

// Is makes errors.Is(err, ErrRateLimited) true for any RateLimitError.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RemainingMinutes rounds the wait up so a live lock never reports zero.
func (e *RateLimitError) RemainingMinutes() int {
	return ceilUnits(e.RetryAfter, time.Minute)
}

// RemainingSeconds rounds the wait up to whole seconds.
func (e *RateLimitError) RemainingSeconds() int {
	return ceilUnits(e.RetryAfter, time.Second)
}

// BannedError carries the stored ban reason verbatim.
type BannedError struct {
	UserID string
	Reason string
}

func (e *BannedError) Error() string {
	return "account is banned: " + e.Reason
}

func (e *BannedError) Unwrap() error {
	return ErrAccountBanned
}

func ceilUnits(d, unit time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(unit)))
}
