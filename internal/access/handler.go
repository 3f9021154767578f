package access

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-streams/backend/internal/auth"
	"github.com/aura-streams/backend/pkg/response"
)

// ChangeRequest is the body for POST /capabilities/grant and /capabilities/revoke.
type ChangeRequest struct {
	Capability string    `json:"capability" binding:"required"`
	Principal  uuid.UUID `json:"principal"`
}

// ListResponse is the body of GET /capabilities/:principal.
type ListResponse struct {
	Principal    uuid.UUID    `json:"principal"`
	Capabilities []Capability `json:"capabilities"`
}

// Handler serves capability administration endpoints.
type Handler struct {
	gate *Gate
}

// NewHandler creates a capability handler.
func NewHandler(gate *Gate) *Handler {
	return &Handler{gate: gate}
}

// Grant handles POST /capabilities/grant.
func (h *Handler) Grant(c *gin.Context) {
	h.change(c, h.gate.Grant)
}

// Revoke handles POST /capabilities/revoke.
func (h *Handler) Revoke(c *gin.Context) {
	h.change(c, h.gate.Revoke)
}

// List handles GET /capabilities/:principal.
func (h *Handler) List(c *gin.Context) {
	principal, err := uuid.Parse(c.Param("principal"))
	if err != nil {
		response.BadRequest(c, "invalid principal")
		return
	}
	caps, err := h.gate.List(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	if caps == nil {
		caps = []Capability{}
	}
	response.OK(c, ListResponse{Principal: principal, Capabilities: caps})
}

type changeFunc func(ctx context.Context, caller uuid.UUID, c Capability, principal uuid.UUID) error

func (h *Handler) change(c *gin.Context, fn changeFunc) {
	caller, ok := auth.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req ChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := fn(c.Request.Context(), caller, Capability(req.Capability), req.Principal); err != nil {
		response.Error(c, err)
		return
	}
	caps, err := h.gate.List(c.Request.Context(), req.Principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	if caps == nil {
		caps = []Capability{}
	}
	response.OK(c, ListResponse{Principal: req.Principal, Capabilities: caps})
}
