package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"mines_client/internal/logger"

	"github.com/gin-gonic/gin"
)

// Limiter counts hits on key in a fixed window and returns the count so far.
type Limiter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

type windowInfo struct {
	start time.Time
	count int64
}

// MemoryLimiter is a process-local fixed window, used when Redis is not configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowInfo
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*windowInfo), now: time.Now}
}

func (m *MemoryLimiter) Hit(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) > window {
		w = &windowInfo{start: now}
		m.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// WithUser puts the authenticated user id into the gin context.
func WithUser(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

// IntentRateLimit limits intents per user (not per IP). WithUser must run first.
func IntentRateLimit(l Limiter, maxIntents int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDVal, exists := c.Get("user_id")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		userID, ok := userIDVal.(int64)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user"})
			return
		}

		key := "intent_rl:" + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(int64(window.Seconds()), 10)
		val, err := l.Hit(c.Request.Context(), key, window)
		if err != nil {
			// fail-open
			logger.Warn("rate limiter unavailable", "error", err)
			c.Header("X-RateLimit-Error", "limiter-error")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxIntents))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxIntents)-val), 10))

		if val > int64(maxIntents) {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "intent rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}
