package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"loanapi/internal/models"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the client's counter and opens the window on the first
// hit. Key expiry is the window reset. Returns {count, ttl_ms}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter is a fixed-window limiter whose windows live in Redis, so every
// instance behind a load balancer shares the same counters.
type RedisLimiter struct {
	client  *redis.Client
	limit   int
	window  time.Duration
	prefix  string
	timeout time.Duration
}

// NewRedisLimiter creates a limiter admitting maxRequests per window for each key.
// The limiter owns client and closes it on Close.
func NewRedisLimiter(client *redis.Client, maxRequests int, windowLength time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:  client,
		limit:   maxRequests,
		window:  windowLength,
		prefix:  "ratelimit:",
		timeout: 2 * time.Second,
	}
}

// OpenRedis connects to Redis and verifies the connection with a PING.
func OpenRedis(cfg models.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Allow checks whether a request from the given key should be admitted. If Redis is
// unreachable the request is admitted and the failure logged.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, Info) {
	if key == "" {
		key = UnknownClient
	}
	now := time.Now()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		slog.Error("Rate limiter: redis unavailable, admitting request", "ip", key, "error", err)
		return true, Info{Limit: l.limit, Remaining: l.limit, Window: l.window, ResetAt: now.Add(l.window)}
	}

	count := int(res[0])
	ttl := time.Duration(res[1]) * time.Millisecond
	info := Info{
		Limit:     l.limit,
		Count:     count,
		Remaining: remaining(l.limit, count),
		Window:    l.window,
		ResetAt:   now.Add(ttl),
	}

	if count == 1 {
		slog.Debug("Rate limiter: window opened for client", "ip", key)
		return true, info
	}
	if count > l.limit {
		info.RetryAfter = ttl
		return false, info
	}
	slog.Debug("Rate limiter: request counted", "ip", key, "count", count, "limit", l.limit)
	return true, info
}

// Close releases the Redis client.
func (l *RedisLimiter) Close() {
	if err := l.client.Close(); err != nil {
		slog.Error("Rate limiter: failed to close redis client", "error", err)
	}
}
