// Package streams owns stream records: it assigns identifiers, validates the
// accounting invariants on every write and serves read-only snapshots.
package streams

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-streams/backend/internal/apperr"
	"github.com/aura-streams/backend/internal/models"
)

// Registry is the only writer of stream records. Every value it returns is a
// copy; mutations go back through Save.
type Registry struct {
	store  Store
	logger *zap.Logger
}

// NewRegistry creates a registry over store.
func NewRegistry(store Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, logger: logger}
}

// Create validates s, persists it and assigns its id.
func (r *Registry) Create(ctx context.Context, s *models.Stream) error {
	if err := r.check(s); err != nil {
		return err
	}
	if err := r.store.Insert(ctx, s); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	return nil
}

// Get returns a snapshot of stream id.
func (r *Registry) Get(ctx context.Context, id uint64) (models.Stream, error) {
	s, err := r.store.Get(ctx, id)
	if err != nil {
		return models.Stream{}, err
	}
	return *s, nil
}

// Load returns a snapshot of stream id locked for the current unit of work.
func (r *Registry) Load(ctx context.Context, id uint64) (models.Stream, error) {
	s, err := r.store.GetForUpdate(ctx, id)
	if err != nil {
		return models.Stream{}, err
	}
	return *s, nil
}

// Save validates and writes s.
func (r *Registry) Save(ctx context.Context, s *models.Stream) error {
	if err := r.check(s); err != nil {
		return err
	}
	if err := r.store.Update(ctx, s); err != nil {
		return fmt.Errorf("save stream %d: %w", s.ID, err)
	}
	return nil
}

// List returns snapshots of the principal's streams.
func (r *Registry) List(ctx context.Context, principal uuid.UUID, role Participant) ([]models.Stream, error) {
	list, err := r.store.ListByParticipant(ctx, principal, role)
	if err != nil {
		return nil, err
	}
	out := make([]models.Stream, 0, len(list))
	for _, s := range list {
		out = append(out, *s)
	}
	return out, nil
}

func (r *Registry) check(s *models.Stream) error {
	if err := CheckInvariants(s); err != nil {
		r.logger.Error("refusing stream write", zap.Uint64("stream_id", s.ID), zap.Error(err))
		return err
	}
	return nil
}

// CheckInvariants verifies the accounting rules every stored stream obeys.
func CheckInvariants(s *models.Stream) error {
	violation := func(format string, args ...any) error {
		return apperr.Wrap(apperr.CodeInvariantViolation, "stream invariant violated", fmt.Errorf(format, args...))
	}

	if s.WithdrawnAmount.Gt(&s.DepositAmount) {
		return violation("withdrawn %s exceeds deposit %s", s.WithdrawnAmount.Dec(), s.DepositAmount.Dec())
	}
	// Cancellation zeroes the remaining balance and refunds the unvested part,
	// so the identity only binds live streams.
	var want = s.DepositAmount
	want.Sub(&want, &s.WithdrawnAmount)
	if !s.IsCancelled && !want.Eq(&s.RemainingBalance) {
		return violation("remaining %s != deposit - withdrawn (%s)", s.RemainingBalance.Dec(), want.Dec())
	}
	if s.IsPaused == s.PauseTime.IsZero() {
		return violation("is_paused=%t with pause_time=%v", s.IsPaused, s.PauseTime)
	}
	if s.IsCancelled {
		if !s.RatePerSecond.IsZero() || !s.RemainingBalance.IsZero() {
			return violation("cancelled stream still holds rate %s or balance %s", s.RatePerSecond.Dec(), s.RemainingBalance.Dec())
		}
	} else {
		if s.RatePerSecond.IsZero() {
			return violation("rate per second is zero")
		}
		if !s.StopTime.After(s.StartTime) {
			return violation("stop time %v not after start time %v", s.StopTime, s.StartTime)
		}
	}
	if !s.Status.Valid() || s.Status != s.Project() {
		return violation("status %q does not match fields (want %q)", s.Status, s.Project())
	}
	return nil
}
