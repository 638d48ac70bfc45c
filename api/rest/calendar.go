package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/takeoff-app/takeoff/banner"
	"github.com/takeoff-app/takeoff/calendar"
)

// CalendarHandler serves the calendar widget and the banner channels.
type CalendarHandler struct {
	bearers Bearers
	svc     *calendar.Service
	banners *banner.Board
}

func NewCalendarHandler(b Bearers, svc *calendar.Service, banners *banner.Board) *CalendarHandler {
	return &CalendarHandler{bearers: b, svc: svc, banners: banners}
}

// failWithBanner is fail plus the banner the operation raised.
func failWithBanner(c *gin.Context, err error, bn banner.Banner) {
	if bn.Message == "" {
		fail(c, err)
		return
	}
	status := statusOf(err)
	c.AbortWithStatusJSON(status, gin.H{"error": messageOf(err, status), "banner": bn})
}

// View handles GET /api/calendar?view=&date=.
func (h *CalendarHandler) View(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	kind, valid := calendar.ParseView(c.Query("view"))
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "view must be day, week or month"})
		return
	}
	focus, err := h.svc.ParseDate(c.Query("date"))
	if err != nil {
		fail(c, err)
		return
	}
	vm, err := h.svc.View(ctx, sess, kind, focus)
	respond(c, vm, err)
}

// Draft handles GET /api/calendar/draft?date=&hour=, the form prefilled
// from a clicked slot.
func (h *CalendarHandler) Draft(c *gin.Context) {
	date, err := h.svc.ParseDate(c.Query("date"))
	if err != nil {
		fail(c, err)
		return
	}
	hour, err := strconv.Atoi(c.DefaultQuery("hour", "9"))
	if err != nil || hour < 0 || hour > 23 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hour must be between 0 and 23"})
		return
	}
	c.JSON(http.StatusOK, calendar.DraftFromSlot(date, hour))
}

// CreateEvent handles POST /api/calendar/events.
func (h *CalendarHandler) CreateEvent(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	var d calendar.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev, bn, err := h.svc.Create(ctx, sess, d)
	if err != nil {
		failWithBanner(c, err, bn)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": ev, "banner": bn})
}

// DeleteEvent handles DELETE /api/calendar/events/:id.
func (h *CalendarHandler) DeleteEvent(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	if err := h.svc.Delete(ctx, sess, c.Param("id")); err != nil {
		bn, _ := h.banners.Current(sess.ID, banner.ChannelCalendar)
		failWithBanner(c, err, bn)
		return
	}
	c.Status(http.StatusNoContent)
}

// Sync handles POST /api/calendar/sync. A missing Google credential is
// not a failure of the request: the banner carries the message.
func (h *CalendarHandler) Sync(c *gin.Context) {
	sess, ctx, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	out, err := h.svc.Sync(ctx, sess)
	switch {
	case errors.Is(err, calendar.ErrNoCalendarCredential):
		c.JSON(http.StatusOK, out)
	case err != nil:
		failWithBanner(c, err, out.Banner)
	default:
		c.JSON(http.StatusOK, out)
	}
}

// Banner handles GET /api/banners/:channel.
func (h *CalendarHandler) Banner(c *gin.Context) {
	sess, _, ok := withSession(c, h.bearers)
	if !ok {
		return
	}
	switch ch := c.Param("channel"); ch {
	case banner.ChannelCalendar, banner.ChannelGoals, banner.ChannelUltimate:
		if bn, shown := h.banners.Current(sess.ID, ch); shown {
			c.JSON(http.StatusOK, gin.H{"banner": bn})
			return
		}
		c.JSON(http.StatusOK, gin.H{"banner": nil})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown banner channel"})
	}
}
