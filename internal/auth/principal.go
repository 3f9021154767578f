package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// ContextPrincipalID is the key for the caller's principal in gin context.
	ContextPrincipalID = "principal_id"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// Principal returns the authenticated caller stored by the JWT middleware.
func Principal(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextPrincipalID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
