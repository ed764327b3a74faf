package guard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresence_ActiveCountWindow(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	p := NewMemoryPresence(DefaultPresenceTimeout, WithClock(clock.Now))

	require.NoError(t, p.Touch(ctx, "alice"))
	clock.Advance(2 * time.Minute)
	require.NoError(t, p.Touch(ctx, "bob"))

	n, err := p.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// alice last seen exactly 5 minutes ago: no longer active
	clock.Advance(3 * time.Minute)
	n, err = p.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	clock.Advance(3 * time.Minute)
	n, err = p.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestPresence_TouchIsIdempotentPerIdentity(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPresence(DefaultPresenceTimeout)

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Touch(ctx, "alice"))
	}

	n, err := p.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPresence_RetouchKeepsActive(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	p := NewMemoryPresence(DefaultPresenceTimeout, WithClock(clock.Now))

	require.NoError(t, p.Touch(ctx, "alice"))
	clock.Advance(4 * time.Minute)
	require.NoError(t, p.Touch(ctx, "alice"))
	clock.Advance(4 * time.Minute)

	n, err := p.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPresence_SweepDropsOnlyStale(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	p := NewMemoryPresence(DefaultPresenceTimeout, WithClock(clock.Now))

	require.NoError(t, p.Touch(ctx, "old"))
	clock.Advance(6 * time.Minute)
	require.NoError(t, p.Touch(ctx, "fresh"))

	removed, err := p.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	n, err := p.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPresence_ConcurrentTouches(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPresence(DefaultPresenceTimeout)

	var wg sync.WaitGroup
	for w := 0; w < 20; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = p.Touch(ctx, fmt.Sprintf("user-%d", i))
			}
		}()
	}
	wg.Wait()

	n, err := p.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)
}

func TestRedisPresence(t *testing.T) {
	client, prefix := setupTestRedis(t)
	ctx := context.Background()
	clock := newTestClock()
	p := NewRedisPresence(client, prefix, DefaultPresenceTimeout, WithClock(clock.Now))

	require.NoError(t, p.Touch(ctx, "alice"))
	require.NoError(t, p.Touch(ctx, "alice"))
	clock.Advance(2 * time.Minute)
	require.NoError(t, p.Touch(ctx, "bob"))

	n, err := p.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	clock.Advance(4 * time.Minute)
	n, err = p.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	removed, err := p.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}
