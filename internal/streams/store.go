package streams

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-streams/backend/internal/models"
)

// Store persists stream records. Implementations return
// apperr.ErrStreamNotFound for unknown ids.
type Store interface {
	// Insert assigns the next id to s and stores it.
	Insert(ctx context.Context, s *models.Stream) error
	Get(ctx context.Context, id uint64) (*models.Stream, error)
	// GetForUpdate reads a stream and locks it for the rest of the unit of work.
	GetForUpdate(ctx context.Context, id uint64) (*models.Stream, error)
	Update(ctx context.Context, s *models.Stream) error
	// ListByParticipant returns streams where principal is sender or recipient, newest first.
	ListByParticipant(ctx context.Context, principal uuid.UUID, role Participant) ([]*models.Stream, error)
}

// Participant filters ListByParticipant.
type Participant string

const (
	ParticipantAny       Participant = ""
	ParticipantSender    Participant = "sender"
	ParticipantRecipient Participant = "recipient"
)
