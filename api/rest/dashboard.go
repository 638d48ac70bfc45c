package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/takeoff-app/takeoff/activity"
	"github.com/takeoff-app/takeoff/dashboard"
	mw "github.com/takeoff-app/takeoff/middleware"
	"github.com/takeoff-app/takeoff/reward"
)

// DashboardHandler serves the dashboard shell: header, daily focus,
// activity feed and the reward overlay state.
type DashboardHandler struct {
	bearers Bearers
	svc     *dashboard.Service
	acts    *activity.Service
	rewards *reward.Player
}

func NewDashboardHandler(b Bearers, svc *dashboard.Service, acts *activity.Service, rewards *reward.Player) *DashboardHandler {
	return &DashboardHandler{bearers: b, svc: svc, acts: acts, rewards: rewards}
}

// Me handles GET /api/me.
func (h *DashboardHandler) Me(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	s, err := h.svc.Summary(ctx, sess)
	respond(c, s, err)
}

// Focus handles GET /api/focus.
func (h *DashboardHandler) Focus(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	f, err := h.svc.DailyFocus(ctx, sess)
	respond(c, f, err)
}

// Activity handles GET /api/activity?limit=.
func (h *DashboardHandler) Activity(c *gin.Context) {
	sess := mw.GetSession(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.acts.Recent(c.Request.Context(), sess.UserID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": logs, "count": len(logs)})
}

// Reward handles GET /api/reward, the overlay state for clients that
// (re)connect mid-celebration.
func (h *DashboardHandler) Reward(c *gin.Context) {
	c.JSON(http.StatusOK, h.rewards.State(mw.GetSession(c).ID))
}
