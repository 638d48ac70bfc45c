package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/takeoff-app/takeoff/model"
	"golang.org/x/time/rate"
)

func newRateLimitRouter(t *testing.T, r rate.Limit, b int, pre ...gin.HandlerFunc) *gin.Engine {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	eng := gin.New()
	eng.Use(pre...)
	eng.Use(RateLimit(ctx, r, b))
	eng.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return eng
}

func get(r *gin.Engine, ip string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", ip)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_AllowsFirst(t *testing.T) {
	r := newRateLimitRouter(t, 100, 5)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1"))
}

func TestRateLimit_Burst(t *testing.T) {
	r := newRateLimitRouter(t, 0.001, 3) // near-zero refill so we exhaust quickly
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(r, "10.0.1.1"), "request %d should be allowed", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, get(r, "10.0.1.1"))
}

func TestRateLimit_PerIP(t *testing.T) {
	r := newRateLimitRouter(t, 0.001, 1)
	assert.Equal(t, http.StatusOK, get(r, "10.1.1.1"))
	assert.Equal(t, http.StatusOK, get(r, "10.1.1.2"))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "10.1.1.1"))
}

func TestRateLimit_KeyedBySession(t *testing.T) {
	withSession := func(c *gin.Context) {
		c.Set(SessionKey, &model.Session{ID: c.GetHeader("X-Session")})
		c.Next()
	}
	r := newRateLimitRouter(t, 0.001, 1, withSession)

	send := func(ip, sid string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", ip)
		req.Header.Set("X-Session", sid)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	// Same IP, different sessions: separate buckets.
	assert.Equal(t, http.StatusOK, send("10.2.2.2", "a"))
	assert.Equal(t, http.StatusOK, send("10.2.2.2", "b"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.2.2.3", "a"))
}
