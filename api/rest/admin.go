package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/takeoff-app/takeoff/scheduler"
	"github.com/takeoff-app/takeoff/session"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	mgr    *session.Manager
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

func NewAdminHandler(mgr *session.Manager, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{mgr: mgr, sched: sched, logger: logger}
}

// Stats returns the session count and the scheduler's live timers.
// GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	n, err := h.mgr.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions":        n,
		"scheduler_tasks": h.sched.ListTickers(),
		"pending_timers":  len(h.sched.Pending()),
	})
}

// Sweep removes expired sessions now instead of waiting for the cron job.
// POST /api/admin/sessions/sweep
func (h *AdminHandler) Sweep(c *gin.Context) {
	n, err := h.mgr.Sweep(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	h.logger.Info("admin swept sessions", zap.Int("count", n))
	c.JSON(http.StatusOK, gin.H{"swept": n})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
