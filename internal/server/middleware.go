package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const callerIDKey = "caller_id"

// CallerRequired extracts the authenticated user from the X-User-ID header
// set by the app gateway. Requests arriving without it never passed auth.
func (s *Server) CallerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if callerID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(callerIDKey, callerID)
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(callerIDKey)
}
