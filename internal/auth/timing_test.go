package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/konghome/boardgate/internal/auth"
)

func TestTimingDelay_WaitFrom_PadsToBase(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 50 * time.Millisecond, RandomDelay: 20 * time.Millisecond})
	start := time.Now()

	assert.NoError(t, timing.WaitFrom(context.Background(), start))

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestTimingDelay_WaitFrom_AlreadyElapsed(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 50 * time.Millisecond})
	start := time.Now().Add(-time.Second)

	begin := time.Now()
	assert.NoError(t, timing.WaitFrom(context.Background(), start))
	assert.Less(t, time.Since(begin), 20*time.Millisecond)
}

func TestTimingDelay_WaitFrom_Cancelled(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 10 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	begin := time.Now()
	err := timing.WaitFrom(ctx, time.Now())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(begin), time.Second)
}

func TestTimingDelay_Target_WithinJitter(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 100 * time.Millisecond, RandomDelay: 50 * time.Millisecond})

	for i := 0; i < 50; i++ {
		d := timing.Target()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 150*time.Millisecond)
	}
}

func TestTimingDelay_ZeroConfigAndNil(t *testing.T) {
	var nilDelay *auth.TimingDelay
	assert.NoError(t, nilDelay.WaitFrom(context.Background(), time.Now()))

	timing := auth.NewTimingDelay(auth.TimingConfig{})
	assert.Equal(t, time.Duration(0), timing.Target())
}
