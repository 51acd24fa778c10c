package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/logging"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gophxfer:admission:"

// RedisLimiter shares fixed windows between relay instances through Redis.
// When Redis is unreachable it admits the request and logs a warning.
type RedisLimiter struct {
	rdb    redis.Cmdable
	limit  int
	period time.Duration
	log    logging.Logger
}

func NewRedisLimiter(rdb redis.Cmdable, limit int, period time.Duration, log logging.Logger) *RedisLimiter {
	if log == nil {
		log = logging.NewNop()
	}
	return &RedisLimiter{rdb: rdb, limit: limit, period: period, log: log.With("module", "admission")}
}

func (l *RedisLimiter) Allow(ctx context.Context, origin string) (Decision, error) {
	d, err := l.allow(ctx, origin)
	if err != nil {
		l.log.Warn(ctx, "rate limiter unavailable, admitting request", "origin", origin, "error", err)
		return Decision{Allowed: true, Remaining: -1}, nil
	}
	return d, nil
}

func (l *RedisLimiter) allow(ctx context.Context, origin string) (Decision, error) {
	key := redisKeyPrefix + origin

	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("incr: %w", err)
	}
	if n == 1 {
		if err := l.rdb.PExpire(ctx, key, l.period).Err(); err != nil {
			return Decision{}, fmt.Errorf("pexpire: %w", err)
		}
	}

	ttl, err := l.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("pttl: %w", err)
	}
	// a key without expiry would block the origin forever
	if ttl < 0 {
		if err := l.rdb.PExpire(ctx, key, l.period).Err(); err != nil {
			return Decision{}, fmt.Errorf("pexpire: %w", err)
		}
		ttl = l.period
	}

	if n > int64(l.limit) {
		return Decision{RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - int(n)}, nil
}
