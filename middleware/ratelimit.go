package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit provides per-client token-bucket rate limiting, keyed by
// session when one is resolved and by client IP otherwise.
// r = requests per second, b = burst size. Idle entries are pruned until
// ctx is done.
func RateLimit(ctx context.Context, r rate.Limit, b int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*clientLimiter)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				cutoff := now.Add(-10 * time.Minute)
				mu.Lock()
				for k, cl := range limiters {
					if cl.lastSeen.Before(cutoff) {
						delete(limiters, k)
					}
				}
				mu.Unlock()
			}
		}
	}()

	allow := func(key string) bool {
		mu.Lock()
		defer mu.Unlock()
		cl, ok := limiters[key]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(r, b)}
			limiters[key] = cl
		}
		cl.lastSeen = time.Now()
		return cl.limiter.Allow()
	}

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if s := GetSession(c); s != nil {
			key = "sid:" + s.ID
		}
		if !allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
