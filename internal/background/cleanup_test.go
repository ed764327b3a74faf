package background

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/konghome/boardgate/internal/guard"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(context.Context) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestRunOnce_SweepsAllEvenOnError(t *testing.T) {
	ok := &countingSweeper{}
	bad := &countingSweeper{err: errors.New("redis down")}
	cm := NewCleanupManager(map[string]guard.Sweeper{"ok": ok, "bad": bad, "none": nil}, slog.Default(), time.Hour)

	cm.RunOnce(context.Background())

	assert.Equal(t, int32(1), ok.calls.Load())
	assert.Equal(t, int32(1), bad.calls.Load())
}

func TestStart_TicksUntilStopped(t *testing.T) {
	s := &countingSweeper{}
	cm := NewCleanupManager(map[string]guard.Sweeper{"s": s}, slog.Default(), 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.calls.Load() >= 2 }, time.Second, time.Millisecond)

	cm.Stop()
	cm.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestNewCleanupManager_NonPositiveIntervalDefaults(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		cm := NewCleanupManager(nil, slog.Default(), interval)
		assert.Equal(t, DefaultSweepInterval, cm.interval)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NotPanics(t, func() { cm.Start(ctx) })
	}
}

// A lapsed lockout is removed by the sweep while a partial count survives.
func TestRunOnce_RealGuards(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	attempts := guard.NewMemoryLoginAttempts(guard.LockoutPolicy{MaxFailedAttempts: 2, LockoutDuration: time.Minute}, guard.WithClock(clock))
	ctx := context.Background()

	_, _ = attempts.RecordFailure(ctx, "locked")
	_, _ = attempts.RecordFailure(ctx, "locked")
	_, _ = attempts.RecordFailure(ctx, "partial")

	cm := NewCleanupManager(map[string]guard.Sweeper{"login_attempts": attempts}, slog.Default(), time.Hour)

	now = now.Add(2 * time.Minute)
	cm.RunOnce(ctx)

	assert.Equal(t, 1, attempts.Len())
}
