package guard

import (
	"context"
	"sync"
	"time"
)

// PresenceTracker answers "how many identities were active recently".
type PresenceTracker interface {
	Touch(ctx context.Context, userID string) error
	ActiveCount(ctx context.Context) (int64, error)
}

// DefaultPresenceTimeout is how long an identity stays active after its last
// authenticated request.
const DefaultPresenceTimeout = 5 * time.Minute

// MemoryPresence stores the last-seen time per identity. Staleness is decided
// at read time; nothing is removed except by Sweep.
type MemoryPresence struct {
	timeout time.Duration
	seen    sync.Map // userID -> int64 unix nanos
	now     func() time.Time
}

func NewMemoryPresence(timeout time.Duration, opts ...Option) *MemoryPresence {
	s := applyOptions(opts)
	return &MemoryPresence{
		timeout: timeout,
		now:     s.now,
	}
}

func (p *MemoryPresence) Touch(_ context.Context, userID string) error {
	p.seen.Store(userID, p.now().UnixNano())
	return nil
}

// ActiveCount scans every identity seen since start. O(n) in tracked identities.
func (p *MemoryPresence) ActiveCount(_ context.Context) (int64, error) {
	cutoff := p.now().Add(-p.timeout).UnixNano()
	var n int64
	p.seen.Range(func(_, value any) bool {
		if value.(int64) > cutoff {
			n++
		}
		return true
	})
	return n, nil
}

// Sweep removes identities idle for longer than the timeout. An entry touched
// while the sweep runs survives because removal compares the stale value.
func (p *MemoryPresence) Sweep(_ context.Context) (int, error) {
	cutoff := p.now().Add(-p.timeout).UnixNano()
	removed := 0
	p.seen.Range(func(key, value any) bool {
		if value.(int64) <= cutoff && p.seen.CompareAndDelete(key, value) {
			removed++
		}
		return true
	})
	return removed, nil
}
