package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-streams/backend/internal/access"
	"github.com/aura-streams/backend/internal/auth"
	"github.com/aura-streams/backend/pkg/response"
)

// CapabilityChecker is satisfied by *access.Gate.
type CapabilityChecker interface {
	Require(ctx context.Context, principal uuid.UUID, c access.Capability) error
}

// RequireCapability returns a middleware that allows only principals holding
// capability. It must run after JWT.
func RequireCapability(gate CapabilityChecker, capability access.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := auth.Principal(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if err := gate.Require(c.Request.Context(), principal, capability); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
