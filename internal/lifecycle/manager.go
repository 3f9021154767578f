// Package lifecycle implements the stream operations: create, pause and
// resume, withdraw, milestone release and cancellation. Each operation is one
// serialized unit of work against the registry and the custody ledger.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/aura-streams/backend/internal/access"
	"github.com/aura-streams/backend/internal/apperr"
	"github.com/aura-streams/backend/internal/custody"
	"github.com/aura-streams/backend/internal/events"
	"github.com/aura-streams/backend/internal/models"
	"github.com/aura-streams/backend/internal/streams"
	"github.com/aura-streams/backend/internal/vesting"
)

// Gate is the capability check the manager consults.
type Gate interface {
	Require(ctx context.Context, principal uuid.UUID, c access.Capability) error
}

// Deps are the collaborators of a Manager. Emitter, Clock and Logger are optional.
type Deps struct {
	Registry *streams.Registry
	Gate     Gate
	Ledger   custody.Ledger
	Tx       Transactor
	Emitter  events.Emitter
	Clock    Clock
	Logger   *zap.Logger
}

// Manager runs stream operations.
type Manager struct {
	registry *streams.Registry
	gate     Gate
	ledger   custody.Ledger
	tx       Transactor
	emitter  events.Emitter
	clock    Clock
	logger   *zap.Logger
	guard    guard
}

// NewManager validates deps and creates a manager.
func NewManager(d Deps) (*Manager, error) {
	if d.Ledger == nil || d.Ledger.Account() == uuid.Nil {
		return nil, apperr.ErrInvalidTokenAddress
	}
	if d.Registry == nil || d.Gate == nil || d.Tx == nil {
		return nil, fmt.Errorf("lifecycle: registry, gate and transactor are required")
	}
	m := &Manager{
		registry: d.Registry,
		gate:     d.Gate,
		ledger:   d.Ledger,
		tx:       d.Tx,
		emitter:  d.Emitter,
		clock:    d.Clock,
		logger:   d.Logger,
	}
	if m.emitter == nil {
		m.emitter = events.Nop{}
	}
	if m.clock == nil {
		m.clock = SystemClock{}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m, nil
}

// CreateParams describes a new stream.
type CreateParams struct {
	Recipient       uuid.UUID
	DepositAmount   uint256.Int
	MilestoneAmount uint256.Int
	StartTime       time.Time
	StopTime        time.Time
}

// Create funds a new stream from caller and returns its id. The caller needs
// the Creator capability and an allowance covering deposit plus milestone.
// A start time earlier than the current second is rejected with
// InvalidTimeframe, as is a stop time not after the start.
func (m *Manager) Create(ctx context.Context, caller uuid.UUID, p CreateParams) (uint64, error) {
	outer := ctx
	ctx, release, err := m.guard.enter(ctx)
	if err != nil {
		return 0, err
	}
	defer release()
	now := secondOf(m.clock.Now())

	if err := m.gate.Require(ctx, caller, access.Creator); err != nil {
		return 0, err
	}
	start, stop := secondOf(p.StartTime), secondOf(p.StopTime)
	switch {
	case p.Recipient == uuid.Nil:
		return 0, apperr.New(apperr.CodeInvalidRecipientAddress, "recipient must not be the zero identity")
	case p.Recipient == caller:
		return 0, apperr.New(apperr.CodeInvalidRecipientAddress, "recipient must differ from sender")
	case p.Recipient == m.ledger.Account():
		return 0, apperr.New(apperr.CodeInvalidRecipientAddress, "recipient must not be the custody account")
	case p.DepositAmount.IsZero():
		return 0, apperr.New(apperr.CodeInvalidDepositAmount, "deposit must be positive")
	case !stop.After(start):
		return 0, apperr.New(apperr.CodeInvalidTimeframe, "stop time must be after start time")
	case start.Before(now):
		return 0, apperr.New(apperr.CodeInvalidTimeframe, "start time must not be in the past")
	}

	var total uint256.Int
	if _, overflow := total.AddOverflow(&p.DepositAmount, &p.MilestoneAmount); overflow {
		return 0, apperr.New(apperr.CodeInvalidDepositAmount, "deposit plus milestone overflows")
	}
	duration := uint256.NewInt(uint64(stop.Unix() - start.Unix()))
	var rate uint256.Int
	rate.Div(&p.DepositAmount, duration)
	if rate.IsZero() {
		return 0, apperr.New(apperr.CodeInvalidDepositAmount,
			fmt.Sprintf("deposit %s vests less than one unit per second over %ss", p.DepositAmount.Dec(), duration.Dec()))
	}

	s := models.Stream{
		Sender:           caller,
		Recipient:        p.Recipient,
		DepositAmount:    p.DepositAmount,
		MilestoneAmount:  p.MilestoneAmount,
		RatePerSecond:    rate,
		RemainingBalance: p.DepositAmount,
		StartTime:        start,
		StopTime:         stop,
	}
	s.Status = s.Project()

	err = m.tx.InTx(ctx, func(ctx context.Context) error {
		balance, err := m.ledger.BalanceOf(ctx, caller)
		if err != nil {
			return fmt.Errorf("sender balance: %w", err)
		}
		if balance.Lt(&total) {
			return apperr.New(apperr.CodeInsufficientBalance,
				fmt.Sprintf("sender balance %s below required %s", balance.Dec(), total.Dec()))
		}
		if err := m.registry.Create(ctx, &s); err != nil {
			return err
		}
		return m.ledger.TransferFrom(ctx, caller, m.ledger.Account(), total)
	})
	if err != nil {
		m.logger.Info("create stream rejected", zap.String("sender", caller.String()), zap.Error(err))
		return 0, err
	}

	m.logger.Info("stream created",
		zap.Uint64("stream_id", s.ID),
		zap.String("sender", s.Sender.String()),
		zap.String("recipient", s.Recipient.String()),
		zap.String("deposit", s.DepositAmount.Dec()),
		zap.String("milestone", s.MilestoneAmount.Dec()),
		zap.String("rate_per_second", s.RatePerSecond.Dec()),
	)
	release()
	m.emit(outer, events.StreamCreated(s.ID, s.Sender, s.Recipient, now))
	return s.ID, nil
}

// SetPaused freezes (pause=true) or restarts (pause=false) the vesting clock.
// Resuming shifts the whole window forward by the paused duration, so the
// rate and the total deposit are untouched.
func (m *Manager) SetPaused(ctx context.Context, caller uuid.UUID, id uint64, pause bool) error {
	op := opResume
	if pause {
		op = opPause
	}
	return m.mutate(ctx, id, op, func(ctx context.Context, s *models.Stream, now time.Time) (events.Event, error) {
		if s.Sender != caller {
			return events.Event{}, apperr.New(apperr.CodeUnauthorized, "only the sender may pause or resume")
		}
		if err := admit(s.Status, op); err != nil {
			return events.Event{}, err
		}
		if pause {
			s.IsPaused = true
			s.PauseTime = now
			s.Status = s.Project()
			return events.StreamPaused(s.ID, now), nil
		}

		if now.After(s.PauseTime) {
			paused := now.Sub(s.PauseTime)
			s.StartTime = s.StartTime.Add(paused)
			s.StopTime = s.StopTime.Add(paused)
		}
		s.IsPaused = false
		s.PauseTime = time.Time{}
		s.Status = s.Project()
		return events.StreamResumed(s.ID, now), nil
	})
}

// Withdraw pays amount of the vested balance to the recipient. It works while
// paused, against the frozen clock.
func (m *Manager) Withdraw(ctx context.Context, caller uuid.UUID, id uint64, amount uint256.Int) error {
	return m.mutate(ctx, id, opWithdraw, func(ctx context.Context, s *models.Stream, now time.Time) (events.Event, error) {
		if s.Recipient != caller {
			return events.Event{}, apperr.New(apperr.CodeUnauthorized, "only the recipient may withdraw")
		}
		if err := admit(s.Status, opWithdraw); err != nil {
			return events.Event{}, err
		}
		if amount.IsZero() {
			return events.Event{}, apperr.New(apperr.CodeInvalidWithdrawAmount, "withdraw amount must be positive")
		}
		claimable := vesting.Claimable(s, now)
		if amount.Gt(&claimable) {
			return events.Event{}, apperr.New(apperr.CodeInsufficientBalance,
				fmt.Sprintf("requested %s exceeds claimable %s", amount.Dec(), claimable.Dec()))
		}

		s.WithdrawnAmount.Add(&s.WithdrawnAmount, &amount)
		s.RemainingBalance.Sub(&s.RemainingBalance, &amount)
		s.Status = s.Project()
		if err := m.registry.Save(ctx, s); err != nil {
			return events.Event{}, err
		}
		if err := m.ledger.Transfer(ctx, s.Recipient, amount); err != nil {
			return events.Event{}, err
		}
		return events.Withdraw(s.ID, s.Recipient, amount, now), nil
	})
}

// ReleaseMilestone pays the milestone lump sum to the recipient. Auditor only,
// once per stream, regardless of pause state.
func (m *Manager) ReleaseMilestone(ctx context.Context, caller uuid.UUID, id uint64) error {
	return m.mutate(ctx, id, opReleaseMilestone, func(ctx context.Context, s *models.Stream, now time.Time) (events.Event, error) {
		if err := m.gate.Require(ctx, caller, access.Auditor); err != nil {
			return events.Event{}, err
		}
		switch {
		case s.Status == models.StatusCancelled:
			return events.Event{}, apperr.ErrStreamIsCancelled
		case s.IsMilestoneReleased:
			return events.Event{}, apperr.ErrMilestoneAlreadyReleased
		case s.MilestoneAmount.IsZero():
			return events.Event{}, apperr.ErrMilestoneNotSet
		}
		if err := admit(s.Status, opReleaseMilestone); err != nil {
			return events.Event{}, err
		}

		s.IsMilestoneReleased = true
		s.Status = s.Project()
		if err := m.registry.Save(ctx, s); err != nil {
			return events.Event{}, err
		}
		if err := m.ledger.Transfer(ctx, s.Recipient, s.MilestoneAmount); err != nil {
			return events.Event{}, err
		}
		return events.MilestoneReleased(s.ID, s.MilestoneAmount, now), nil
	})
}

// Cancel settles the stream: the recipient receives what has vested, the
// sender is refunded the rest plus any unreleased milestone.
func (m *Manager) Cancel(ctx context.Context, caller uuid.UUID, id uint64) error {
	return m.mutate(ctx, id, opCancel, func(ctx context.Context, s *models.Stream, now time.Time) (events.Event, error) {
		if s.Sender != caller {
			return events.Event{}, apperr.New(apperr.CodeUnauthorized, "only the sender may cancel")
		}
		if err := admit(s.Status, opCancel); err != nil {
			return events.Event{}, err
		}

		// Both amounts come from this one snapshot, before any field changes.
		recipientAmount := vesting.Claimable(s, now)
		var senderRefund uint256.Int
		senderRefund.Sub(&s.RemainingBalance, &recipientAmount)
		if !s.IsMilestoneReleased {
			senderRefund.Add(&senderRefund, &s.MilestoneAmount)
			s.MilestoneAmount.Clear()
		}

		s.IsCancelled = true
		s.StopTime = now
		s.RatePerSecond.Clear()
		s.WithdrawnAmount.Add(&s.WithdrawnAmount, &recipientAmount)
		s.RemainingBalance.Clear()
		s.IsPaused = false
		s.PauseTime = time.Time{}
		s.Status = s.Project()
		if err := m.registry.Save(ctx, s); err != nil {
			return events.Event{}, err
		}

		if !recipientAmount.IsZero() {
			if err := m.ledger.Transfer(ctx, s.Recipient, recipientAmount); err != nil {
				return events.Event{}, err
			}
		}
		if !senderRefund.IsZero() {
			if err := m.ledger.Transfer(ctx, s.Sender, senderRefund); err != nil {
				return events.Event{}, err
			}
		}
		return events.StreamCancelled(s.ID, senderRefund, recipientAmount, now), nil
	})
}

// ClaimableAmount returns what the recipient of stream id could withdraw now.
func (m *Manager) ClaimableAmount(ctx context.Context, id uint64) (uint256.Int, error) {
	s, err := m.registry.Get(ctx, id)
	if err != nil {
		return uint256.Int{}, err
	}
	return vesting.Claimable(&s, secondOf(m.clock.Now())), nil
}

// GetStream returns a snapshot of stream id.
func (m *Manager) GetStream(ctx context.Context, id uint64) (models.Stream, error) {
	return m.registry.Get(ctx, id)
}

// ListStreams returns the streams principal sends or receives.
func (m *Manager) ListStreams(ctx context.Context, principal uuid.UUID, role streams.Participant) ([]models.Stream, error) {
	return m.registry.List(ctx, principal, role)
}

// Now returns the manager's clock reading at second resolution.
func (m *Manager) Now() time.Time {
	return secondOf(m.clock.Now())
}

type mutation func(ctx context.Context, s *models.Stream, now time.Time) (events.Event, error)

// mutate runs fn against a locked snapshot of stream id inside the guard and a
// transaction. Pause and resume are persisted here; the other operations save
// before they transfer, so transfers always follow the final local state.
// The guard is released before the event goes out.
func (m *Manager) mutate(ctx context.Context, id uint64, op operation, fn mutation) error {
	outer := ctx
	ctx, release, err := m.guard.enter(ctx)
	if err != nil {
		return err
	}
	defer release()
	now := secondOf(m.clock.Now())

	var ev events.Event
	err = m.tx.InTx(ctx, func(ctx context.Context) error {
		s, err := m.registry.Load(ctx, id)
		if err != nil {
			return err
		}
		if ev, err = fn(ctx, &s, now); err != nil {
			return err
		}
		if op == opPause || op == opResume {
			return m.registry.Save(ctx, &s)
		}
		return nil
	})
	if err != nil {
		m.logger.Info("stream operation rejected",
			zap.Uint64("stream_id", id),
			zap.Stringer("op", op),
			zap.Error(err),
		)
		return err
	}
	m.logger.Info("stream operation applied",
		zap.Uint64("stream_id", id),
		zap.Stringer("op", op),
		zap.String("event", string(ev.Kind)),
	)
	release()
	m.emit(outer, ev)
	return nil
}

func (m *Manager) emit(ctx context.Context, e events.Event) {
	if err := m.emitter.Emit(ctx, e); err != nil {
		m.logger.Warn("event emission failed",
			zap.String("kind", string(e.Kind)),
			zap.Uint64("stream_id", e.StreamID),
			zap.Error(err),
		)
	}
}
