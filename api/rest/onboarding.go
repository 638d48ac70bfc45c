package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	mw "github.com/takeoff-app/takeoff/middleware"
	"github.com/takeoff-app/takeoff/quiz"
)

// OnboardingHandler drives the onboarding quiz of the session.
type OnboardingHandler struct {
	bearers Bearers
	svc     *quiz.Service
}

func NewOnboardingHandler(b Bearers, svc *quiz.Service) *OnboardingHandler {
	return &OnboardingHandler{bearers: b, svc: svc}
}

// quizResult writes the view, with the error message when the step was
// refused.
func quizResult(c *gin.Context, v quiz.View, err error) {
	if err != nil {
		status := statusOf(err)
		c.AbortWithStatusJSON(status, gin.H{"error": messageOf(err, status), "quiz": v})
		return
	}
	c.JSON(http.StatusOK, v)
}

// State handles GET /api/onboarding.
func (h *OnboardingHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.State(mw.GetSession(c).ID))
}

type nameRequest struct {
	DisplayName string `json:"display_name"`
}

// Name handles POST /api/onboarding/name.
func (h *OnboardingHandler) Name(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.svc.SetName(mw.GetSession(c).ID, req.DisplayName)
	quizResult(c, v, err)
}

type answerRequest struct {
	Value *int `json:"value" binding:"required"`
}

// Answer handles POST /api/onboarding/answer.
func (h *OnboardingHandler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.svc.Answer(mw.GetSession(c).ID, *req.Value)
	quizResult(c, v, err)
}

// Next handles POST /api/onboarding/next.
func (h *OnboardingHandler) Next(c *gin.Context) {
	v, err := h.svc.Next(mw.GetSession(c).ID)
	quizResult(c, v, err)
}

// Prev handles POST /api/onboarding/prev.
func (h *OnboardingHandler) Prev(c *gin.Context) {
	v, err := h.svc.Prev(mw.GetSession(c).ID)
	quizResult(c, v, err)
}

// Submit handles POST /api/onboarding/submit.
func (h *OnboardingHandler) Submit(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	res, err := h.svc.Submit(ctx, sess)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
