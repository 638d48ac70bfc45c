package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/takeoff-app/takeoff/chat"
)

type ChatHandler struct {
	bearers Bearers
	svc     *chat.Service
}

func NewChatHandler(b Bearers, svc *chat.Service) *ChatHandler {
	return &ChatHandler{bearers: b, svc: svc}
}

// Greeting handles GET /api/chat/greeting.
func (h *ChatHandler) Greeting(c *gin.Context) {
	c.JSON(http.StatusOK, chat.Greeting())
}

type chatRequest struct {
	Message string `json:"message"`
}

// Send handles POST /api/chat.
func (h *ChatHandler) Send(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r, err := h.svc.Send(ctx, sess, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
