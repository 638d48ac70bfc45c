package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a panicking handler into a 500 carrying the trace id, so
// the widget can show it with its error banner.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			traceID := GetTraceID(c)
			fields := []zap.Field{
				zap.Any("panic", r),
				zap.String("trace_id", traceID),
				zap.String("route", c.FullPath()),
				zap.Stack("stack"),
			}
			if s := GetSession(c); s != nil {
				fields = append(fields, zap.String("session_id", s.ID))
			}
			log.Error("handler panicked", fields...)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":    "internal server error",
				"trace_id": traceID,
			})
		}()
		c.Next()
	}
}
