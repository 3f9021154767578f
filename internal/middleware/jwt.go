package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-streams/backend/internal/auth"
	"github.com/aura-streams/backend/pkg/response"
)

// JWT returns a middleware that validates JWT and sets the caller's principal in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(auth.ContextPrincipalID, claims.PrincipalID)
		c.Set(auth.ContextUserEmail, claims.Email)
		c.Next()
	}
}
