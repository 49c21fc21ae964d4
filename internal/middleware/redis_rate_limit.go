package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/reelrank/internal/cache"
	"github.com/zfogg/reelrank/internal/logger"
	"go.uber.org/zap"
)

const rateLimitStoreTimeout = 200 * time.Millisecond

// SharedRateLimitMiddleware counts requests in a shared cache store so the limit
// holds across instances. Fixed windows are keyed by client and window start.
// A nil store or a store failure falls back to the in-process limiter.
func SharedRateLimitMiddleware(store cache.Store, config RateLimitConfig) gin.HandlerFunc {
	config = config.normalized()
	local := NewLocalRateLimiter(config)

	return func(c *gin.Context) {
		key := config.KeyFunc(c)

		if store == nil {
			if ok, retryAfter := local.Allow(key); !ok {
				rejectRateLimited(c, config.Limit, retryAfter)
				return
			}
			c.Next()
			return
		}

		now := time.Now()
		windowStart := now.Truncate(config.Window)
		counterKey := cache.Key("rate_limit", key, windowStart.Format("20060102T150405"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), rateLimitStoreTimeout)
		count, err := store.Incr(ctx, counterKey, config.Window)
		cancel()

		if err != nil {
			logger.Log.Warn("Shared rate limiter unavailable, using local limiter",
				logger.WithIP(key),
				zap.Error(err),
			)
			if ok, retryAfter := local.Allow(key); !ok {
				rejectRateLimited(c, config.Limit, retryAfter)
				return
			}
			c.Next()
			return
		}

		if count > int64(config.Limit) {
			logger.Log.Debug("Rate limit exceeded",
				logger.WithIP(key),
				zap.Int("max_requests", config.Limit),
				zap.Int64("current_requests", count),
			)
			rejectRateLimited(c, config.Limit, windowStart.Add(config.Window).Sub(now))
			return
		}

		c.Next()
	}
}
