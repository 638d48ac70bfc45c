package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/takeoff-app/takeoff/tasks"
)

// TaskHandler serves the task list widget.
type TaskHandler struct {
	bearers Bearers
	svc     *tasks.Service
}

func NewTaskHandler(b Bearers, svc *tasks.Service) *TaskHandler {
	return &TaskHandler{bearers: b, svc: svc}
}

// List handles GET /api/tasks.
func (h *TaskHandler) List(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	board, err := h.svc.Board(ctx, sess)
	respond(c, board, err)
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	var d tasks.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.svc.Create(ctx, sess, d)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// Complete handles POST /api/tasks/:id/complete.
func (h *TaskHandler) Complete(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	res, err := h.svc.Complete(ctx, sess, c.Param("id"))
	respond(c, res, err)
}

// Delete handles DELETE /api/tasks/:id.
func (h *TaskHandler) Delete(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	if err := h.svc.Delete(ctx, sess, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
