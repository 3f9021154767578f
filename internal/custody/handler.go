package custody

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/aura-streams/backend/internal/auth"
	"github.com/aura-streams/backend/internal/models"
	"github.com/aura-streams/backend/pkg/response"
)

// AmountRequest is the body for approve and credit.
type AmountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// AccountResponse describes one principal's custody position.
type AccountResponse struct {
	Principal uuid.UUID `json:"principal"`
	Asset     string    `json:"asset"`
	Balance   string    `json:"balance"`
	Allowance string    `json:"allowance"`
}

// Handler serves account endpoints over a Book.
type Handler struct {
	book   Book
	asset  string
	logger *zap.Logger
}

// NewHandler creates an account handler.
func NewHandler(book Book, asset string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{book: book, asset: asset, logger: logger}
}

// Me handles GET /accounts/me.
func (h *Handler) Me(c *gin.Context) {
	caller, ok := auth.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	h.respond(c, caller)
}

// Approve handles POST /accounts/approve. The amount replaces any previous
// allowance granted to the custody account.
func (h *Handler) Approve(c *gin.Context) {
	caller, ok := auth.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	amount, ok := bindAmount(c)
	if !ok {
		return
	}
	if err := h.book.Approve(c.Request.Context(), caller, amount); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("allowance approved", zap.String("owner", caller.String()), zap.String("amount", amount.Dec()))
	h.respond(c, caller)
}

// Credit handles POST /accounts/:principal/credit. Administrator only; it
// mints funds into an account and is the sole source of new balance.
func (h *Handler) Credit(c *gin.Context) {
	caller, _ := auth.Principal(c)
	principal, err := uuid.Parse(c.Param("principal"))
	if err != nil || principal == uuid.Nil {
		response.BadRequest(c, "invalid principal")
		return
	}
	amount, ok := bindAmount(c)
	if !ok {
		return
	}
	if err := h.book.Credit(c.Request.Context(), principal, amount); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("account credited",
		zap.String("principal", principal.String()),
		zap.String("amount", amount.Dec()),
		zap.String("credited_by", caller.String()),
	)
	h.respond(c, principal)
}

func (h *Handler) respond(c *gin.Context, principal uuid.UUID) {
	ctx := c.Request.Context()
	balance, err := h.book.BalanceOf(ctx, principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	allowance, err := h.book.Allowance(ctx, principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, AccountResponse{
		Principal: principal,
		Asset:     h.asset,
		Balance:   balance.Dec(),
		Allowance: allowance.Dec(),
	})
}

func bindAmount(c *gin.Context) (amount uint256.Int, ok bool) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return amount, false
	}
	v, err := models.ParseAmount(req.Amount)
	if err != nil {
		response.BadRequest(c, "invalid amount")
		return amount, false
	}
	return v, true
}
