package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds the failed-login delay settings
type TimingConfig struct {
	BaseDelay   time.Duration
	RandomDelay time.Duration // upper bound of the jitter added to BaseDelay
}

// TimingDelay pads failed logins so an unknown login id and a wrong password
// answer in about the same time. A zero config never sleeps.
type TimingDelay struct {
	config TimingConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config, sleep: sleepCtx}
}

// cryptoRandDuration returns a random duration in [0, max)
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(b[:]) % uint64(max))
}

// Target returns the padded duration for one failure.
func (td *TimingDelay) Target() time.Duration {
	return td.config.BaseDelay + cryptoRandDuration(td.config.RandomDelay)
}

// WaitFrom sleeps until at least Target has elapsed since start. It returns
// early with ctx.Err() when the request is cancelled.
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time) error {
	if td == nil {
		return nil
	}
	remaining := td.Target() - time.Since(start)
	if remaining <= 0 {
		return nil
	}
	return td.sleep(ctx, remaining)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
