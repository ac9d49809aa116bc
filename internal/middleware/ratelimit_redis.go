package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/tenantry/tenantry/internal/config"
)

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisRateLimiter is a GCRA limiter whose state lives in Redis, so every
// replica draws from the same budget. Keys are namespaced by limiter name.
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	name    string
}

// NewRedisRateLimiter creates a limiter named name (e.g. "general") with the
// given per-minute rate and burst.
func NewRedisRateLimiter(client *redis.Client, name string, cfg RateLimitConfig) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   cfg.RequestsPerMinute,
			Burst:  cfg.BurstSize,
			Period: time.Minute,
		},
		name: name,
	}
}

// Backend implements Limiter.
func (l *RedisRateLimiter) Backend() string {
	return BackendRedis
}

// Take implements Limiter.
func (l *RedisRateLimiter) Take(ctx context.Context, key string) (Decision, error) {
	res, err := l.limiter.Allow(ctx, l.name+":"+key, l.limit)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check rate limit: %w", err)
	}
	d := Decision{
		Allowed:   res.Allowed > 0,
		Limit:     l.limit.Rate,
		Remaining: res.Remaining,
	}
	if !d.Allowed {
		d.RetryAfter = res.RetryAfter
	}
	return d, nil
}
