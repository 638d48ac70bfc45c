// Package rest is the BFF HTTP surface: one handler type per widget, all
// sharing the session lookup and the error mapping below.
package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/goals"
	mw "github.com/takeoff-app/takeoff/middleware"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/session"
	"github.com/takeoff-app/takeoff/store"
	"github.com/takeoff-app/takeoff/tasks"
)

// StaleHeader marks a response built from a stale cached view.
const StaleHeader = "X-Takeoff-Stale"

// Bearers opens a session's upstream token into a request context.
type Bearers interface {
	Context(ctx context.Context, sess *model.Session) (context.Context, error)
}

// withSession returns the authenticated session and a context carrying
// its upstream token. It writes the 401 itself when either is missing.
func withSession(c *gin.Context, b Bearers) (*model.Session, context.Context, bool) {
	sess := mw.GetSession(c)
	if sess == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, nil, false
	}
	ctx, err := b.Context(c.Request.Context(), sess)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return nil, nil, false
	}
	return sess, ctx, true
}

// statusOf maps a service error to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrInFlight),
		errors.Is(err, goals.ErrMilestoneLocked),
		errors.Is(err, goals.ErrMilestoneDone),
		errors.Is(err, tasks.ErrTaskCompleted):
		return http.StatusConflict
	case errors.Is(err, goals.ErrPredefinedGoal):
		return http.StatusForbidden
	case errors.Is(err, backend.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	if apiErr, ok := backend.AsAPIError(err); ok {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return http.StatusUnauthorized
		case http.StatusNotFound:
			return http.StatusNotFound
		}
	}
	return http.StatusBadGateway
}

func messageOf(err error, status int) string {
	if apiErr, ok := backend.AsAPIError(err); ok && apiErr.Detail != "" && status != http.StatusBadGateway {
		return apiErr.Detail
	}
	switch status {
	case http.StatusBadGateway:
		return "upstream unavailable"
	case http.StatusGatewayTimeout:
		return "upstream timed out"
	}
	return err.Error()
}

// fail writes err as a JSON error body.
func fail(c *gin.Context, err error) {
	status := statusOf(err)
	c.AbortWithStatusJSON(status, gin.H{"error": messageOf(err, status)})
}

// respond writes v, or the error when there is no usable value. A stale
// error with a value is served with StaleHeader set.
func respond(c *gin.Context, v any, err error) {
	if err != nil {
		if !store.IsStale(err) {
			fail(c, err)
			return
		}
		c.Header(StaleHeader, "1")
	}
	c.JSON(http.StatusOK, v)
}
