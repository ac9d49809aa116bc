// ratelimit.go provides Gin middleware that enforces per-client rate limits,
// returning 429 responses when the configured requests-per-minute threshold is exceeded.
// The in-process token bucket serves single-replica deployments; the Redis backend in
// ratelimit_redis.go shares the budget across replicas.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tenantry/tenantry/internal/config"
	"github.com/tenantry/tenantry/internal/telemetry"
)

// Rate limiter backends, used as the rate_limit_rejections_total label.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Take(ctx context.Context, key string) (Decision, error)
	Backend() string
}

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often to clean up expired entries
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the limits applied to every API route
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
		BurstSize:         20,
		CleanupInterval:   5 * time.Minute,
	}
}

// SensitiveRateLimitConfig returns stricter limits for invitation accept,
// token issuance and contact submission
func SensitiveRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimitConfigsFrom derives the general and sensitive limits from configuration,
// keeping the defaults for unset values.
func RateLimitConfigsFrom(cfg config.RateLimitingConfig) (general, sensitive RateLimitConfig) {
	general = DefaultRateLimitConfig()
	sensitive = SensitiveRateLimitConfig()
	if cfg.RequestsPerMinute > 0 {
		general.RequestsPerMinute = cfg.RequestsPerMinute
	}
	if cfg.Burst > 0 {
		general.BurstSize = cfg.Burst
	}
	if cfg.SensitiveRequestsPerMinute > 0 {
		sensitive.RequestsPerMinute = cfg.SensitiveRequestsPerMinute
		if sensitive.BurstSize > sensitive.RequestsPerMinute {
			sensitive.BurstSize = sensitive.RequestsPerMinute
		}
	}
	return general, sensitive
}

// rateLimitEntry tracks request counts for a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter implements an in-process token bucket rate limiter
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.RWMutex
	stopCh  chan struct{}
	once    sync.Once
	now     func() time.Time
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go rl.cleanup()

	return rl
}

// cleanup periodically removes idle entries
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(10 * time.Minute)
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, entry := range rl.entries {
		if now.Sub(entry.lastUpdate) > idle {
			delete(rl.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// Backend implements Limiter.
func (rl *RateLimiter) Backend() string {
	return BackendMemory
}

// Allow checks if a request from the given key should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	d, _ := rl.Take(context.Background(), key)
	return d.Allowed
}

// Take implements Limiter. It never returns an error.
func (rl *RateLimiter) Take(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	d := Decision{Limit: rl.config.RequestsPerMinute}
	entry, exists := rl.entries[key]

	if !exists {
		// New client, give them full burst
		entry = &rateLimitEntry{
			tokens:     float64(rl.config.BurstSize) - 1,
			lastUpdate: now,
		}
		rl.entries[key] = entry
		d.Allowed = true
		d.Remaining = int(entry.tokens)
		return d, nil
	}

	entry.tokens = rl.refill(entry, now)
	entry.lastUpdate = now

	if entry.tokens >= 1 {
		entry.tokens--
		d.Allowed = true
		d.Remaining = int(entry.tokens)
		return d, nil
	}

	perSecond := rl.tokensPerSecond()
	if perSecond > 0 {
		d.RetryAfter = time.Duration((1 - entry.tokens) / perSecond * float64(time.Second))
	} else {
		d.RetryAfter = time.Minute
	}
	return d, nil
}

// RemainingTokens returns how many tokens are left for a key
func (rl *RateLimiter) RemainingTokens(key string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, exists := rl.entries[key]
	if !exists {
		return rl.config.BurstSize
	}
	return int(rl.refill(entry, rl.now()))
}

func (rl *RateLimiter) tokensPerSecond() float64 {
	return float64(rl.config.RequestsPerMinute) / 60.0
}

// refill returns the entry's token count at now, capped at the burst size.
func (rl *RateLimiter) refill(entry *rateLimitEntry, now time.Time) float64 {
	elapsed := now.Sub(entry.lastUpdate)
	return math.Min(float64(rl.config.BurstSize), entry.tokens+elapsed.Seconds()*rl.tokensPerSecond())
}

// RateLimitMiddleware creates a Gin middleware that rate limits requests.
// A limiter error lets the request through so a Redis outage does not take
// the API down with it.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		d, err := limiter.Take(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request",
				"backend", limiter.Backend(), "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			telemetry.RateLimitRejectionsTotal.WithLabelValues(limiter.Backend()).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Rate limit exceeded",
				"retryAfter": retryAfter,
			})
			return
		}

		c.Next()
	}
}

// getRateLimitKey determines the key to use for rate limiting
// Priority: user_id > token_id > IP address
func getRateLimitKey(c *gin.Context) string {
	if userID, exists := c.Get(UserIDKey); exists {
		if id, ok := userID.(string); ok && id != "" {
			return "user:" + id
		}
	}

	if tokenID, exists := c.Get(TokenIDKey); exists {
		if id, ok := tokenID.(string); ok && id != "" {
			return "token:" + id
		}
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
