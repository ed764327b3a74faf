package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/konghome/boardgate/internal/models"
)

// LastActionSource returns when userID last performed action, or nil if never.
// The content store answers this from its own rows.
type LastActionSource interface {
	LatestActionAt(ctx context.Context, userID string, action models.ActionType) (*time.Time, error)
}

// CooldownGuard enforces a minimum interval between successive actions of the
// same type by the same identity.
//
// Check only gates; the caller writes the new content afterwards. Without
// strict mode the check and that write are not atomic, so two creations in
// the same instant can both pass: a best-effort throttle. Strict mode adds an
// in-process per-(identity, action) reservation taken inside Check; the
// caller hands it back with Release if the write fails.
type CooldownGuard struct {
	source    LastActionSource
	intervals map[models.ActionType]time.Duration
	strict    bool
	claims    keyedMap[time.Time]
	now       func() time.Time
}

func NewCooldownGuard(source LastActionSource, intervals map[models.ActionType]time.Duration, strict bool, opts ...Option) *CooldownGuard {
	s := applyOptions(opts)
	copied := make(map[models.ActionType]time.Duration, len(intervals))
	for action, d := range intervals {
		copied[action] = d
	}
	return &CooldownGuard{
		source:    source,
		intervals: copied,
		strict:    strict,
		now:       s.now,
	}
}

// Interval returns the configured minimum interval for action.
func (g *CooldownGuard) Interval(action models.ActionType) time.Duration {
	return g.intervals[action]
}

// Check returns a *models.RateLimitError if userID acted too recently.
// Store failures are returned wrapped; they never let the action through.
func (g *CooldownGuard) Check(ctx context.Context, userID string, action models.ActionType) error {
	interval := g.intervals[action]
	if interval <= 0 {
		return nil
	}

	last, err := g.source.LatestActionAt(ctx, userID, action)
	if err != nil {
		return fmt.Errorf("cooldown lookup for %s: %w", action, err)
	}

	now := g.now()
	if last != nil {
		if wait := remainingWait(interval, now.Sub(*last)); wait > 0 {
			return &models.RateLimitError{Kind: models.RateLimitCooldown, Action: action, RetryAfter: wait}
		}
	}

	if !g.strict {
		return nil
	}

	var wait time.Duration
	g.claims.update(claimKey(userID, action), func(prev *time.Time) bool {
		if !prev.IsZero() {
			if wait = remainingWait(interval, now.Sub(*prev)); wait > 0 {
				return true
			}
		}
		*prev = now
		return true
	})
	if wait > 0 {
		return &models.RateLimitError{Kind: models.RateLimitCooldown, Action: action, RetryAfter: wait}
	}
	return nil
}

// Release gives back the strict-mode reservation taken by a passing Check
// when the action it guarded did not happen, so a failed write does not
// start the cooldown. Without strict mode it does nothing.
func (g *CooldownGuard) Release(userID string, action models.ActionType) {
	if !g.strict {
		return
	}
	g.claims.delete(claimKey(userID, action))
}

// Sweep drops strict-mode reservations older than their interval.
func (g *CooldownGuard) Sweep(_ context.Context) (int, error) {
	now := g.now()
	var longest time.Duration
	for _, d := range g.intervals {
		if d > longest {
			longest = d
		}
	}
	return g.claims.sweep(func(at *time.Time) bool {
		return now.Sub(*at) >= longest
	}), nil
}

// remainingWait clamps to interval so clock skew between the database and
// this process never reports a wait longer than the cooldown itself.
func remainingWait(interval, elapsed time.Duration) time.Duration {
	wait := interval - elapsed
	if wait > interval {
		return interval
	}
	return wait
}

func claimKey(userID string, action models.ActionType) string {
	return string(action) + "\x00" + userID
}
