package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter *rate.Limiter

	mu   sync.Mutex
	last time.Time
}

func (v *visitor) touch() {
	v.mu.Lock()
	v.last = time.Now()
	v.mu.Unlock()
}

func (v *visitor) idle(ttl time.Duration) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return time.Since(v.last) > ttl
}

// NewHTTPRateLimitPerIP limits requests per client IP. Visitors live in an
// LRU of cacheSize entries and are dropped after ttl of inactivity. The
// janitor goroutine stops with ctx.
func NewHTTPRateLimitPerIP(
	ctx context.Context,
	limit, burst, cacheSize int,
	ttl time.Duration,
) gin.HandlerFunc {

	visitors, _ := lru.New[string, *visitor](cacheSize)

	go func() {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, key := range visitors.Keys() {
					if v, ok := visitors.Peek(key); ok && v.idle(ttl) {
						visitors.Remove(key)
					}
				}
			}
		}
	}()

	var mu sync.Mutex
	return func(c *gin.Context) {
		// honours X-Forwarded-For only from the engine's trusted proxies
		host := c.ClientIP()

		mu.Lock()
		v, ok := visitors.Get(host)
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(rate.Limit(limit), burst)}
			visitors.Add(host, v)
		}
		mu.Unlock()
		v.touch()

		if !v.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
