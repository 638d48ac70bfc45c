package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/quests"
)

// QuestHandler serves the quest board.
type QuestHandler struct {
	bearers Bearers
	svc     *quests.Service
}

func NewQuestHandler(b Bearers, svc *quests.Service) *QuestHandler {
	return &QuestHandler{bearers: b, svc: svc}
}

// List handles GET /api/quests?completed=&pillar=.
func (h *QuestHandler) List(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	f := backend.QuestFilter{Pillar: c.Query("pillar")}
	if v, set := c.GetQuery("completed"); set && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "completed must be true or false"})
			return
		}
		f.Completed = &b
	}
	qs, err := h.svc.List(ctx, sess, f)
	respond(c, qs, err)
}

// Generate handles POST /api/quests/generate?pillar=.
func (h *QuestHandler) Generate(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	res, err := h.svc.Generate(ctx, sess, c.Query("pillar"))
	respond(c, res, err)
}

type progressRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

// Progress handles PATCH /api/quests/:id/progress.
func (h *QuestHandler) Progress(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.UpdateProgress(ctx, sess, c.Param("id"), *req.Value)
	respond(c, res, err)
}

// Complete handles POST /api/quests/:id/complete.
func (h *QuestHandler) Complete(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	res, err := h.svc.Complete(ctx, sess, c.Param("id"))
	respond(c, res, err)
}

// Abandon handles DELETE /api/quests/:id.
func (h *QuestHandler) Abandon(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	if err := h.svc.Abandon(ctx, sess, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
