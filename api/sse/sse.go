// Package sse streams each session's pushed UI events to the browser.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/takeoff-app/takeoff/cache"
	mw "github.com/takeoff-app/takeoff/middleware"
	"github.com/takeoff-app/takeoff/push"
	"go.uber.org/zap"
)

// KeepaliveInterval spaces the comment lines that hold proxies open.
const KeepaliveInterval = 30 * time.Second

// Handler handles the SSE endpoint.
type Handler struct {
	pubsub    cache.PubSub
	keepalive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, keepalive: KeepaliveInterval, logger: logger}
}

// ServeSSE handles GET /sse?token=<jwt>. It must run behind the Auth
// middleware, which accepts the token query parameter.
// Every event published on the session channel is forwarded as
// "event: <name>" with its JSON data.
func (h *Handler) ServeSSE(c *gin.Context) {
	sess := mw.GetSession(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, push.Channel(sess.ID))
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.String("session_id", sess.ID), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	// Set SSE headers.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			env, err := push.Decode(msg.Payload)
			if err != nil {
				h.logger.Warn("sse dropped malformed event", zap.String("session_id", sess.ID), zap.Error(err))
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", env.Event, env.Data)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
