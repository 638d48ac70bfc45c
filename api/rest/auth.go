package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/takeoff-app/takeoff/activity"
	"github.com/takeoff-app/takeoff/backend"
	mw "github.com/takeoff-app/takeoff/middleware"
	"github.com/takeoff-app/takeoff/session"
	"go.uber.org/zap"
)

// AuthHandler opens and closes BFF sessions.
type AuthHandler struct {
	mgr    *session.Manager
	api    *backend.Client
	acts   *activity.Service
	logger *zap.Logger
}

func NewAuthHandler(mgr *session.Manager, api *backend.Client, acts *activity.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{mgr: mgr, api: api, acts: acts, logger: logger}
}

// Login handles GET /api/auth/login by sending the browser to Google.
func (h *AuthHandler) Login(c *gin.Context) {
	c.Redirect(http.StatusFound, h.api.GoogleLoginURL())
}

type sessionRequest struct {
	Token string `json:"token" binding:"required"`
}

// Callback handles GET /api/auth/callback?token=&needs_onboarding=.
func (h *AuthHandler) Callback(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	var needs *bool
	if v, ok := c.GetQuery("needs_onboarding"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			needs = &b
		}
	}
	h.open(c, token, needs)
}

// CreateSession handles POST /api/auth/session.
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.open(c, req.Token, nil)
}

func (h *AuthHandler) open(c *gin.Context, bearer string, needs *bool) {
	ctx := c.Request.Context()
	sess, token, err := h.mgr.Init(ctx, bearer)
	if err != nil {
		h.logger.Info("session init refused", zap.Error(err))
		fail(c, err)
		return
	}
	user, err := h.mgr.Profile(ctx, sess.ID)
	if err != nil {
		fail(c, err)
		return
	}
	needsOnboarding := !user.HasCompletedOnboarding
	if needs != nil {
		needsOnboarding = *needs
	}
	h.acts.Log(activity.Entry{
		TraceID:   backend.TraceID(ctx),
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Action:    activity.SessionInit,
	})
	c.JSON(http.StatusOK, gin.H{
		"token":            token,
		"user":             user,
		"needs_onboarding": needsOnboarding,
	})
}

// DeleteSession handles DELETE /api/auth/session.
func (h *AuthHandler) DeleteSession(c *gin.Context) {
	sess := mw.GetSession(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.mgr.Teardown(c.Request.Context(), sess.ID); err != nil {
		fail(c, err)
		return
	}
	h.acts.Log(activity.Entry{
		TraceID:   backend.TraceID(c.Request.Context()),
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Action:    activity.SessionTeardown,
	})
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
