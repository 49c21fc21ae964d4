package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// KeyFunc identifies the client; defaults to the client IP.
	KeyFunc func(c *gin.Context) string
}

// DefaultRateLimitConfig allows 600 requests per minute per client IP.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:   600,
		Window:  time.Minute,
		KeyFunc: clientKey,
	}
}

// InteractionRateLimitConfig returns stricter limits for interaction writes.
func InteractionRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:  120,
		Window: time.Minute,
		// own bucket, so writes are not charged against the general limit's counter
		KeyFunc: func(c *gin.Context) string {
			return "interaction:" + c.ClientIP()
		},
	}
}

func clientKey(c *gin.Context) string {
	return c.ClientIP()
}

func (cfg RateLimitConfig) normalized() RateLimitConfig {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultRateLimitConfig().Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientKey
	}
	return cfg
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client.
type RateLimiter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewLocalRateLimiter creates an in-process limiter.
func NewLocalRateLimiter(config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:  config.normalized(),
		clients: make(map[string]*clientLimiter),
	}
}

// NewRateLimiter creates an in-process rate limiting middleware.
func NewRateLimiter(config RateLimitConfig) gin.HandlerFunc {
	rl := NewLocalRateLimiter(config)
	return func(c *gin.Context) {
		key := rl.config.KeyFunc(c)
		if ok, retryAfter := rl.Allow(key); !ok {
			rejectRateLimited(c, rl.config.Limit, retryAfter)
			return
		}
		c.Next()
	}
}

// Allow reports whether the client may proceed, and otherwise how long to wait.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	cl, ok := rl.clients[key]
	if !ok {
		// evict before inserting; a fresh entry has no lastSeen yet
		rl.evictIdleLocked(now)
		every := rl.config.Window / time.Duration(rl.config.Limit)
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Every(every), rl.config.Limit)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now
	rl.mu.Unlock()

	r := cl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, rl.config.Window
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// evictIdleLocked drops clients that have been quiet for a full window,
// by which point their bucket has refilled anyway.
func (rl *RateLimiter) evictIdleLocked(now time.Time) {
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > rl.config.Window {
			delete(rl.clients, key)
		}
	}
}

func rejectRateLimited(c *gin.Context, limit int, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	RecordRateLimitExceeded(routeLabel(c), c.Request.Method)
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", "0")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"status":      "error",
		"error":       "rate limit exceeded",
		"retry_after": seconds,
	})
}
