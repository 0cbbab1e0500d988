package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiterConfig configures a fixed-window limiter kept in Redis, so
// every gateway replica shares the same counters.
type RateLimiterConfig struct {
	RedisClient *redis.Client
	Limit       int
	Window      time.Duration
	KeyPrefix   string
	Extractor   func(c *gin.Context) string
	Logger      *slog.Logger
}

func NewRateLimiter(cfg RateLimiterConfig) gin.HandlerFunc {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:"
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Extractor == nil {
		cfg.Extractor = clientIP
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := cfg.Extractor(c)
		if id == "" {
			id = "anonymous"
		}
		key := cfg.KeyPrefix + id

		var (
			incr *redis.IntCmd
			ttl  *redis.DurationCmd
		)
		_, err := cfg.RedisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			ttl = pipe.PTTL(ctx, key)
			return nil
		})
		if err == nil && ttl.Val() < 0 {
			// First hit of the window: the counter has no expiry yet.
			err = cfg.RedisClient.Expire(ctx, key, cfg.Window).Err()
			ttl.SetVal(cfg.Window)
		}
		if err != nil {
			// Fail open: a Redis outage must not take the API down with it.
			cfg.Logger.WarnContext(ctx, "rate limiter unavailable", slog.String("error", err.Error()))
			c.Next()
			return
		}

		count := incr.Val()
		reset := int(ttl.Val().Round(time.Second).Seconds())
		if reset < 0 {
			reset = 0
		}
		remaining := cfg.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(reset))

		if count > int64(cfg.Limit) {
			c.Header("Retry-After", strconv.Itoa(reset))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("rate limit exceeded: %d requests per %s", cfg.Limit, cfg.Window),
			})
			return
		}

		c.Next()
	}
}

func clientIP(c *gin.Context) string {
	if xff := c.Request.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	return c.ClientIP()
}
