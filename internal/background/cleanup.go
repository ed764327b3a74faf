package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/konghome/boardgate/internal/guard"
)

// CleanupManager periodically sweeps guard state that can no longer affect
// a decision: lapsed lockouts, stale presence and old cooldown claims.
type CleanupManager struct {
	sweepers map[string]guard.Sweeper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// DefaultSweepInterval is used when NewCleanupManager gets a non-positive interval.
const DefaultSweepInterval = 15 * time.Minute

// NewCleanupManager creates a new cleanup manager. Nil sweepers are skipped.
func NewCleanupManager(sweepers map[string]guard.Sweeper, logger *slog.Logger, interval time.Duration) *CleanupManager {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	clean := make(map[string]guard.Sweeper, len(sweepers))
	for name, s := range sweepers {
		if s != nil {
			clean[name] = s
		}
	}
	return &CleanupManager{
		sweepers: clean,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. It blocks until Stop or ctx is done.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce sweeps every registered guard once. A failing sweeper is logged
// and does not stop the others.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for name, s := range cm.sweepers {
		removed, err := s.Sweep(sweepCtx)
		if err != nil {
			cm.logger.Error("guard sweep failed", slog.String("guard", name), slog.Any("error", err))
			continue
		}
		if removed > 0 {
			cm.logger.Debug("guard sweep completed", slog.String("guard", name), slog.Int("removed", removed))
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
