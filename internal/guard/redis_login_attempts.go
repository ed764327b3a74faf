package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/konghome/boardgate/internal/models"
)

// recordFailureScript increments the failure counter and, at or above the
// threshold, (re)sets the lock key with the lockout TTL. A lock whose stored
// deadline has passed is cleared first so counting restarts from zero.
//
// KEYS[1] failure counter, KEYS[2] lock. ARGV: now ms, threshold, lockout ms.
// Returns {failures, blockedUntil ms or 0}.
var recordFailureScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local lock = redis.call('GET', KEYS[2])
if lock and tonumber(lock) <= now then
  redis.call('DEL', KEYS[1], KEYS[2])
end

local n = redis.call('INCR', KEYS[1])
if n >= max then
  local blocked = now + ttl
  redis.call('SET', KEYS[2], blocked, 'PX', ttl)
  redis.call('PEXPIRE', KEYS[1], ttl)
  return {n, blocked}
end
return {n, 0}
`)

// RedisLoginAttempts shares lockout state between instances. The script runs
// atomically on the server, so concurrent failures are each counted once.
// Expired locks vanish through key TTLs; no sweep is needed.
type RedisLoginAttempts struct {
	client redis.UniversalClient
	prefix string
	policy LockoutPolicy
	now    func() time.Time
}

func NewRedisLoginAttempts(client redis.UniversalClient, prefix string, policy LockoutPolicy, opts ...Option) *RedisLoginAttempts {
	s := applyOptions(opts)
	return &RedisLoginAttempts{
		client: client,
		prefix: prefix,
		policy: policy,
		now:    s.now,
	}
}

func (g *RedisLoginAttempts) failKey(userID string) string {
	return fmt.Sprintf("%s:login:fail:%s", g.prefix, userID)
}

func (g *RedisLoginAttempts) lockKey(userID string) string {
	return fmt.Sprintf("%s:login:lock:%s", g.prefix, userID)
}

func (g *RedisLoginAttempts) RecordFailure(ctx context.Context, userID string) (models.LoginAttemptState, error) {
	now := g.now()
	res, err := recordFailureScript.Run(ctx, g.client,
		[]string{g.failKey(userID), g.lockKey(userID)},
		now.UnixMilli(), g.policy.MaxFailedAttempts, g.policy.LockoutDuration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return models.LoginAttemptState{}, fmt.Errorf("record login failure: %w", err)
	}
	if len(res) != 2 {
		return models.LoginAttemptState{}, fmt.Errorf("record login failure: unexpected script reply %v", res)
	}

	st := models.LoginAttemptState{FailureCount: int(res[0])}
	if res[1] > 0 {
		until := time.UnixMilli(res[1])
		st.BlockedUntil = &until
	}
	return st, nil
}

func (g *RedisLoginAttempts) RecordSuccess(ctx context.Context, userID string) error {
	if err := g.client.Del(ctx, g.failKey(userID), g.lockKey(userID)).Err(); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

func (g *RedisLoginAttempts) IsBlocked(ctx context.Context, userID string) (bool, error) {
	left, err := g.remaining(ctx, userID)
	return left > 0, err
}

func (g *RedisLoginAttempts) RemainingMinutes(ctx context.Context, userID string) (int, error) {
	left, err := g.remaining(ctx, userID)
	if err != nil {
		return 0, err
	}
	return (&models.RateLimitError{Kind: models.RateLimitLockout, RetryAfter: left}).RemainingMinutes(), nil
}

// remaining reads the stored deadline rather than PTTL so an injected clock
// is honored the same way as in the memory guard.
func (g *RedisLoginAttempts) remaining(ctx context.Context, userID string) (time.Duration, error) {
	until, err := g.client.Get(ctx, g.lockKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read login lock: %w", err)
	}
	left := time.UnixMilli(until).Sub(g.now())
	if left < 0 {
		return 0, nil
	}
	return left, nil
}
