package router

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/gin-gonic/gin"
)

// RateLimiter counts requests per key in fixed windows. Counters live in a
// TTL cache so idle keys expire on their own.
type RateLimiter struct {
	mu      sync.Mutex
	windows *ristretto.Cache[string, *int64]
	limit   int64
	window  time.Duration
	now     func() time.Time
}

// NewRateLimiter allows limit requests per key in each window.
func NewRateLimiter(limit int, window time.Duration) (*RateLimiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive, got %s", window)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *int64]{
		NumCounters:        1e5,
		MaxCost:            1e4,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit cache: %w", err)
	}

	return &RateLimiter{
		windows: cache,
		limit:   int64(limit),
		window:  window,
		now:     time.Now,
	}, nil
}

// Allow counts one request for key. When the window is full it returns false
// and how long until the next window opens.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	start := now.Truncate(l.window)
	remaining := start.Add(l.window).Sub(now)
	windowKey := key + "|" + strconv.FormatInt(start.UnixNano(), 10)

	l.mu.Lock()
	defer l.mu.Unlock()

	count, ok := l.windows.Get(windowKey)
	if !ok {
		count = new(int64)
		// A dropped set only means this window is counted from zero again
		if l.windows.SetWithTTL(windowKey, count, 1, remaining) {
			l.windows.Wait()
		}
	}

	*count++
	if *count > l.limit {
		return false, remaining
	}
	return true, 0
}

// Close releases the cache.
func (l *RateLimiter) Close() {
	l.windows.Close()
}

// RateLimitMiddleware rejects clients over their per-window budget with 429.
func RateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := limiter.Allow(c.ClientIP())
		if !allowed {
			logger.Warn("Rate limit exceeded",
				slog.String("ip", c.ClientIP()),
				slog.String("path", c.Request.URL.Path),
			)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
