package streams

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-streams/backend/internal/apperr"
	"github.com/aura-streams/backend/internal/models"
	"github.com/aura-streams/backend/pkg/database"
)

// Repository handles streams persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a streams repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `id, sender_id, recipient_id,
	deposit_amount::text, milestone_amount::text, rate_per_second::text, withdrawn_amount::text, remaining_balance::text,
	start_time, stop_time, pause_time, is_paused, is_milestone_released, status, created_at, updated_at`

// Insert creates a stream row and sets s.ID from the sequence.
func (r *Repository) Insert(ctx context.Context, s *models.Stream) error {
	const q = `INSERT INTO streams (sender_id, recipient_id, deposit_amount, milestone_amount, rate_per_second,
		withdrawn_amount, remaining_balance, start_time, stop_time, pause_time, is_paused, is_milestone_released, status)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`
	var id int64
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q,
		s.Sender, s.Recipient,
		s.DepositAmount.Dec(), s.MilestoneAmount.Dec(), s.RatePerSecond.Dec(), s.WithdrawnAmount.Dec(), s.RemainingBalance.Dec(),
		s.StartTime, s.StopTime, nullTime(s.PauseTime), s.IsPaused, s.IsMilestoneReleased, string(s.Status),
	).Scan(&id, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert stream: %w", err)
	}
	s.ID = uint64(id)
	return nil
}

// Get returns a stream by id.
func (r *Repository) Get(ctx context.Context, id uint64) (*models.Stream, error) {
	return r.get(ctx, `SELECT `+selectColumns+` FROM streams WHERE id = $1`, id)
}

// GetForUpdate returns a stream by id and row-locks it until the transaction ends.
func (r *Repository) GetForUpdate(ctx context.Context, id uint64) (*models.Stream, error) {
	return r.get(ctx, `SELECT `+selectColumns+` FROM streams WHERE id = $1 FOR UPDATE`, id)
}

// Update writes every mutable column of s.
func (r *Repository) Update(ctx context.Context, s *models.Stream) error {
	const q = `UPDATE streams SET
		milestone_amount = $2::numeric, rate_per_second = $3::numeric, withdrawn_amount = $4::numeric,
		remaining_balance = $5::numeric, start_time = $6, stop_time = $7, pause_time = $8,
		is_paused = $9, is_milestone_released = $10, status = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, int64(s.ID),
		s.MilestoneAmount.Dec(), s.RatePerSecond.Dec(), s.WithdrawnAmount.Dec(), s.RemainingBalance.Dec(),
		s.StartTime, s.StopTime, nullTime(s.PauseTime),
		s.IsPaused, s.IsMilestoneReleased, string(s.Status),
	).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrStreamNotFound
	}
	if err != nil {
		return fmt.Errorf("update stream %d: %w", s.ID, err)
	}
	return nil
}

// ListByParticipant returns the principal's streams, newest first.
func (r *Repository) ListByParticipant(ctx context.Context, principal uuid.UUID, role Participant) ([]*models.Stream, error) {
	q := `SELECT ` + selectColumns + ` FROM streams WHERE `
	switch role {
	case ParticipantSender:
		q += `sender_id = $1`
	case ParticipantRecipient:
		q += `recipient_id = $1`
	default:
		q += `(sender_id = $1 OR recipient_id = $1)`
	}
	q += ` ORDER BY id DESC`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, principal)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	defer rows.Close()
	var list []*models.Stream
	for rows.Next() {
		s, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *Repository) get(ctx context.Context, q string, id uint64) (*models.Stream, error) {
	s, err := scanStream(database.Conn(ctx, r.pool).QueryRow(ctx, q, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select stream %d: %w", id, err)
	}
	return s, nil
}

func scanStream(row pgx.Row) (*models.Stream, error) {
	var (
		s                                              models.Stream
		id                                             int64
		deposit, milestone, rate, withdrawn, remaining string
		pauseTime                                      *time.Time
		status                                         string
	)
	if err := row.Scan(&id, &s.Sender, &s.Recipient,
		&deposit, &milestone, &rate, &withdrawn, &remaining,
		&s.StartTime, &s.StopTime, &pauseTime, &s.IsPaused, &s.IsMilestoneReleased, &status,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.ID = uint64(id)
	amounts := []struct {
		raw string
		dst *uint256.Int
	}{
		{deposit, &s.DepositAmount},
		{milestone, &s.MilestoneAmount},
		{rate, &s.RatePerSecond},
		{withdrawn, &s.WithdrawnAmount},
		{remaining, &s.RemainingBalance},
	}
	for _, a := range amounts {
		v, err := models.ParseAmount(a.raw)
		if err != nil {
			return nil, fmt.Errorf("stream %d: %w", id, err)
		}
		a.dst.Set(&v)
	}
	s.StartTime = s.StartTime.UTC()
	s.StopTime = s.StopTime.UTC()
	if pauseTime != nil {
		s.PauseTime = pauseTime.UTC()
	}
	s.Status = models.Status(status)
	s.IsCancelled = s.Status == models.StatusCancelled
	return &s, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
