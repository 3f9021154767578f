package lifecycle

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-streams/backend/internal/auth"
	"github.com/aura-streams/backend/internal/models"
	"github.com/aura-streams/backend/internal/streams"
	"github.com/aura-streams/backend/internal/vesting"
	"github.com/aura-streams/backend/pkg/response"
	"github.com/aura-streams/backend/pkg/storage"
)

// Receipts resolves archived receipts. *storage.S3 satisfies it.
type Receipts interface {
	ReceiptExists(ctx context.Context, key string) (bool, error)
	PresignReceipt(ctx context.Context, key string) (string, time.Duration, error)
}

// CreateRequest is the body for POST /streams.
type CreateRequest struct {
	Recipient       uuid.UUID `json:"recipient" binding:"required"`
	DepositAmount   string    `json:"deposit_amount" binding:"required"`
	MilestoneAmount string    `json:"milestone_amount"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	StopTime        time.Time `json:"stop_time" binding:"required"`
}

// WithdrawRequest is the body for POST /streams/:id/withdraw.
type WithdrawRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// StreamResponse is a stream with its claimable amount at the time of the read.
type StreamResponse struct {
	models.StreamView
	Claimable string    `json:"claimable"`
	AsOf      time.Time `json:"as_of"`
}

// ClaimableResponse is the body of GET /streams/:id/claimable.
type ClaimableResponse struct {
	StreamID  uint64    `json:"stream_id"`
	Claimable string    `json:"claimable"`
	AsOf      time.Time `json:"as_of"`
}

// Handler serves stream HTTP endpoints.
type Handler struct {
	manager  *Manager
	receipts Receipts
	logger   *zap.Logger
}

// NewHandler creates a stream handler. receipts may be nil, in which case
// receipt downloads report 503.
func NewHandler(manager *Manager, receipts Receipts, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{manager: manager, receipts: receipts, logger: logger}
}

// Create handles POST /streams.
func (h *Handler) Create(c *gin.Context) {
	caller, ok := auth.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	deposit, err := models.ParseAmount(req.DepositAmount)
	if err != nil {
		response.BadRequest(c, "invalid deposit_amount")
		return
	}
	milestone, err := models.ParseAmount(req.MilestoneAmount)
	if err != nil {
		response.BadRequest(c, "invalid milestone_amount")
		return
	}

	id, err := h.manager.Create(c.Request.Context(), caller, CreateParams{
		Recipient:       req.Recipient,
		DepositAmount:   deposit,
		MilestoneAmount: milestone,
		StartTime:       req.StartTime,
		StopTime:        req.StopTime,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	s, err := h.manager.GetStream(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, h.view(&s))
}

// Get handles GET /streams/:id. No authentication is required.
func (h *Handler) Get(c *gin.Context) {
	id, ok := streamID(c)
	if !ok {
		return
	}
	s, err := h.manager.GetStream(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.view(&s))
}

// Claimable handles GET /streams/:id/claimable. No authentication is required.
func (h *Handler) Claimable(c *gin.Context) {
	id, ok := streamID(c)
	if !ok {
		return
	}
	amount, err := h.manager.ClaimableAmount(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ClaimableResponse{StreamID: id, Claimable: amount.Dec(), AsOf: h.manager.Now()})
}

// List handles GET /streams?role=sender|recipient for the caller.
func (h *Handler) List(c *gin.Context) {
	caller, ok := auth.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	role := streams.Participant(c.Query("role"))
	switch role {
	case streams.ParticipantAny, streams.ParticipantSender, streams.ParticipantRecipient:
	default:
		response.BadRequest(c, "role must be sender or recipient")
		return
	}
	list, err := h.manager.ListStreams(c.Request.Context(), caller, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]StreamResponse, 0, len(list))
	for i := range list {
		out = append(out, h.view(&list[i]))
	}
	response.OK(c, out)
}

// Pause handles POST /streams/:id/pause.
func (h *Handler) Pause(c *gin.Context) {
	h.act(c, func(ctx context.Context, caller uuid.UUID, id uint64) error {
		return h.manager.SetPaused(ctx, caller, id, true)
	})
}

// Resume handles POST /streams/:id/resume.
func (h *Handler) Resume(c *gin.Context) {
	h.act(c, func(ctx context.Context, caller uuid.UUID, id uint64) error {
		return h.manager.SetPaused(ctx, caller, id, false)
	})
}

// Withdraw handles POST /streams/:id/withdraw.
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		response.BadRequest(c, "invalid amount")
		return
	}
	h.act(c, func(ctx context.Context, caller uuid.UUID, id uint64) error {
		return h.manager.Withdraw(ctx, caller, id, amount)
	})
}

// ReleaseMilestone handles POST /streams/:id/milestone.
func (h *Handler) ReleaseMilestone(c *gin.Context) {
	h.act(c, h.manager.ReleaseMilestone)
}

// Cancel handles POST /streams/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	h.act(c, h.manager.Cancel)
}

// ReceiptURL handles GET /streams/:id/receipts/:eventId/download-url. Only
// the stream's sender and recipient may fetch its receipts.
func (h *Handler) ReceiptURL(c *gin.Context) {
	caller, ok := auth.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	id, ok := streamID(c)
	if !ok {
		return
	}
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if h.receipts == nil {
		response.ServiceUnavailable(c, "receipt archive not configured")
		return
	}

	s, err := h.manager.GetStream(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if caller != s.Sender && caller != s.Recipient {
		response.Forbidden(c, "only stream participants may download receipts")
		return
	}

	key := storage.ReceiptKey(id, eventID.String())
	exists, err := h.receipts.ReceiptExists(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("receipt lookup", zap.String("s3_key", key), zap.Error(err))
		response.Internal(c, "failed to look up receipt")
		return
	}
	if !exists {
		response.NotFound(c, "receipt not archived yet")
		return
	}
	url, expires, err := h.receipts.PresignReceipt(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("presign receipt", zap.String("s3_key", key), zap.Error(err))
		response.Internal(c, "failed to sign receipt url")
		return
	}
	response.OK(c, gin.H{"url": url, "expires_in_seconds": int(expires.Seconds())})
}

func (h *Handler) act(c *gin.Context, op func(ctx context.Context, caller uuid.UUID, id uint64) error) {
	caller, ok := auth.Principal(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	id, ok := streamID(c)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), caller, id); err != nil {
		response.Error(c, err)
		return
	}
	s, err := h.manager.GetStream(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.view(&s))
}

func (h *Handler) view(s *models.Stream) StreamResponse {
	now := h.manager.Now()
	claimable := vesting.Claimable(s, now)
	return StreamResponse{StreamView: s.View(), Claimable: claimable.Dec(), AsOf: now}
}

func streamID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid stream id")
		return 0, false
	}
	return id, true
}
