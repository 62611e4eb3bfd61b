package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// slidingWindowScript trims the window, admits the request only while below the limit and
// returns {admitted, count}. Rejected requests are not recorded.
var slidingWindowScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1])
local count = redis.call("ZCARD", KEYS[1])
local admitted = 0
if count < tonumber(ARGV[3]) then
	redis.call("ZADD", KEYS[1], ARGV[2], ARGV[4])
	count = count + 1
	admitted = 1
end
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return {admitted, count}
`)

// RedisLimiter implements Limiter using a Redis sorted set per key and a sliding window.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{client: client, log: log, now: time.Now}
}

// Check admits one request for key when fewer than limit were admitted during the last window.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	now := l.now()
	if limit <= 0 {
		return &Result{ResetAt: now.Add(window)}, ErrLimitExceeded
	}

	windowStart := now.Add(-window)
	res, err := slidingWindowScript.Run(ctx, l.client, []string{redisKeyPrefix + key},
		windowStart.UnixMilli(),
		now.UnixMilli(),
		limit,
		uuid.NewString(),
		(2 * window).Milliseconds(),
	).Int64Slice()
	if err != nil {
		l.log.Error("rate limiter script failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	admitted, count := res[0] == 1, int(res[1])
	result := &Result{
		Allowed:   admitted,
		Remaining: max(limit-count, 0),
		ResetAt:   now.Add(window),
	}
	if !admitted {
		return result, ErrLimitExceeded
	}
	return result, nil
}
