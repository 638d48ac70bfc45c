package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/model"
)

const SessionKey = "session"

// SessionResolver looks up a live session by id.
type SessionResolver interface {
	Resolve(ctx context.Context, sid string) (*model.Session, error)
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for EventSource clients that cannot set headers.
func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

// Auth validates the BFF JWT and resolves the session it names.
func Auth(sec config.SecurityConfig, sessions SessionResolver) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenStr := bearerToken(ctx)
		if tokenStr == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := ParseToken(tokenStr, sec.JWTSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		lookupCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		sess, err := sessions.Resolve(lookupCtx, claims.SessionID)
		if err != nil || sess == nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		ctx.Set(SessionKey, sess)
		ctx.Next()
	}
}

// GetSession retrieves the authenticated session from the Gin context.
func GetSession(c *gin.Context) *model.Session {
	if v, exists := c.Get(SessionKey); exists {
		if s, ok := v.(*model.Session); ok {
			return s
		}
	}
	return nil
}
