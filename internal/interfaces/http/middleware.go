package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ownerIDKey is the context key the auth middleware sets for handlers.
const ownerIDKey = "owner_id"

// authMiddleware resolves the bearer token to an owner before anything else
// runs. Rejecting here means an unauthenticated upload never reads its files.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing bearer token",
			})
			return
		}

		ownerID, err := s.authenticator.ResolveToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "invalid token",
			})
			return
		}

		c.Set(ownerIDKey, ownerID)
		c.Next()
	}
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerIDKey)
}
