package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"ecom-admin-proxy/internal/config"
)

const (
	redisKeyPrefix   = "ecom-admin-proxy:ratelimit"
	redisCallTimeout = 200 * time.Millisecond
)

// RedisStore is an echo RateLimiterStore backed by a fixed one-second window
// counter in Redis, so every replica shares the same budget per client.
type RedisStore struct {
	client redis.Cmdable
	limit  int64
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisStore creates a RedisStore allowing rps requests per second per identifier.
func NewRedisStore(client redis.Cmdable, rps float64, logger *slog.Logger) *RedisStore {
	limit := int64(math.Ceil(rps))
	if limit < 1 {
		limit = 1
	}
	return &RedisStore{
		client: client,
		limit:  limit,
		logger: logger.With("component", "ratelimit"),
		now:    time.Now,
	}
}

// Allow implements echomw.RateLimiterStore. Redis failures let the request
// through and are logged.
func (s *RedisStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisCallTimeout)
	defer cancel()

	key := fmt.Sprintf("%s:%s:%d", redisKeyPrefix, identifier, s.now().Unix())

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("rate limit store unavailable, allowing request", "err", err)
		return true, nil
	}

	return incr.Val() <= s.limit, nil
}

// RateLimiter returns the rate limiting middleware for cfg. A non-nil rdb
// selects the shared Redis store; otherwise counters are kept in memory.
func RateLimiter(cfg config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
	var store echomw.RateLimiterStore
	if rdb != nil {
		store = NewRedisStore(rdb, cfg.RequestsPerSecond, logger)
		logger.Info("rate limiter enabled", "rps", cfg.RequestsPerSecond, "store", "redis", "addr", cfg.RedisAddr)
	} else {
		store = echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.RequestsPerSecond))
		logger.Info("rate limiter enabled", "rps", cfg.RequestsPerSecond, "store", "memory")
	}
	return echomw.RateLimiter(store)
}
