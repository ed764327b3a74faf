package guard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPresence keeps last-seen times in one sorted set scored by unix
// milliseconds, so the active count is a single range count.
type RedisPresence struct {
	client  redis.UniversalClient
	key     string
	timeout time.Duration
	now     func() time.Time
}

func NewRedisPresence(client redis.UniversalClient, prefix string, timeout time.Duration, opts ...Option) *RedisPresence {
	s := applyOptions(opts)
	return &RedisPresence{
		client:  client,
		key:     prefix + ":presence",
		timeout: timeout,
		now:     s.now,
	}
}

func (p *RedisPresence) Touch(ctx context.Context, userID string) error {
	err := p.client.ZAdd(ctx, p.key, redis.Z{
		Score:  float64(p.now().UnixMilli()),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("touch presence: %w", err)
	}
	return nil
}

func (p *RedisPresence) ActiveCount(ctx context.Context) (int64, error) {
	n, err := p.client.ZCount(ctx, p.key, "("+p.cutoff(), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return n, nil
}

// Sweep trims members idle past the timeout. ActiveCount already ignores
// them, so this only bounds the set size.
func (p *RedisPresence) Sweep(ctx context.Context) (int, error) {
	n, err := p.client.ZRemRangeByScore(ctx, p.key, "-inf", p.cutoff()).Result()
	if err != nil {
		return 0, fmt.Errorf("sweep presence: %w", err)
	}
	return int(n), nil
}

func (p *RedisPresence) cutoff() string {
	return strconv.FormatInt(p.now().Add(-p.timeout).UnixMilli(), 10)
}
