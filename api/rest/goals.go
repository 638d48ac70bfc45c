package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/takeoff-app/takeoff/goals"
)

// GoalHandler serves the long-term and ultimate goal widgets.
type GoalHandler struct {
	bearers  Bearers
	longTerm *goals.LongTerm
	ultimate *goals.Ultimate
}

func NewGoalHandler(b Bearers, lt *goals.LongTerm, ult *goals.Ultimate) *GoalHandler {
	return &GoalHandler{bearers: b, longTerm: lt, ultimate: ult}
}

// List handles GET /api/goals.
func (h *GoalHandler) List(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	gs, err := h.longTerm.List(ctx, sess)
	respond(c, gs, err)
}

type goalRequest struct {
	Description string `json:"description"`
	LifePillar  string `json:"life_pillar"`
}

// Create handles POST /api/goals.
func (h *GoalHandler) Create(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.longTerm.Create(ctx, sess, req.Description, req.LifePillar)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// CompleteMilestone handles POST /api/goals/:id/milestones/:mid/complete.
func (h *GoalHandler) CompleteMilestone(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	res, err := h.longTerm.CompleteMilestone(ctx, sess, c.Param("id"), c.Param("mid"))
	respond(c, res, err)
}

// Abandon handles DELETE /api/goals/:id.
func (h *GoalHandler) Abandon(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	if err := h.longTerm.Abandon(ctx, sess, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListUltimate handles GET /api/ultimate-goals.
func (h *GoalHandler) ListUltimate(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	b, err := h.ultimate.List(ctx, sess)
	respond(c, b, err)
}

// CreateUltimate handles POST /api/ultimate-goals.
func (h *GoalHandler) CreateUltimate(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	var d goals.CustomDraft
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.ultimate.CreateCustom(ctx, sess, d)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// CompleteUltimateMilestone handles
// POST /api/ultimate-goals/:id/milestones/:mid/complete.
func (h *GoalHandler) CompleteUltimateMilestone(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	res, err := h.ultimate.CompleteMilestone(ctx, sess, c.Param("id"), c.Param("mid"))
	respond(c, res, err)
}

// DeleteUltimate handles DELETE /api/ultimate-goals/:id.
func (h *GoalHandler) DeleteUltimate(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	if err := h.ultimate.Delete(ctx, sess, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
