package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RateLimiter enforces a fixed-window request quota per caller. With a
// Redis client the counter is shared across instances (INCR + EXPIRE);
// without one it degrades to a per-process map that resets on restart.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(rdb *redis.Client, limit int, windowSize time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		rdb:     rdb,
		limit:   limit,
		window:  windowSize,
		logger:  logger,
		windows: make(map[string]*window),
	}
}

// Middleware keys the quota by user id when authenticated, client IP
// otherwise.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if user := CurrentUser(c); user != nil {
			key = user.UserID
		}

		if !l.allow(c, key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(c *gin.Context, key string) bool {
	if l.rdb != nil {
		return l.allowRedis(c, key)
	}
	return l.allowLocal(key)
}

func (l *RateLimiter) allowRedis(c *gin.Context, key string) bool {
	ctx := c.Request.Context()
	counterKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.rdb.Incr(ctx, counterKey).Result()
	if err != nil {
		// Counting is best-effort; an unreachable Redis must not take
		// the API down with it.
		l.logger.Warn("rate limit counter unavailable", zap.Error(err))
		return true
	}
	// Only the increment that created the key starts the window; setting
	// the TTL on every request would keep pushing the reset out and turn
	// the counter into a lifetime total.
	if count == 1 {
		if err := l.rdb.Expire(ctx, counterKey, l.window).Err(); err != nil {
			l.logger.Warn("rate limit expiry not set", zap.String("key", counterKey), zap.Error(err))
		}
	}
	return count <= int64(l.limit)
}

func (l *RateLimiter) allowLocal(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	w.count++
	return w.count <= l.limit
}
