package streams

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-streams/backend/internal/apperr"
	"github.com/aura-streams/backend/internal/models"
)

// MemoryStore is an in-process Store. Records are copied in and out so no
// caller holds a reference into the store.
type MemoryStore struct {
	mu      sync.RWMutex
	lastID  uint64
	streams map[uint64]models.Stream
}

var _ Store = (*MemoryStore)(nil)

// journal holds the undo steps of one checkpoint. Steps run with mu held.
type journal struct {
	undo []func()
}

type journalKey struct{ m *MemoryStore }

// NewMemoryStore creates an empty store whose first id is 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[uint64]models.Stream)}
}

func (m *MemoryStore) Insert(ctx context.Context, s *models.Stream) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID++
	s.ID = m.lastID
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	m.streams[s.ID] = *s
	id := s.ID
	m.record(ctx, func() { delete(m.streams, id) })
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uint64) (*models.Stream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.streams[id]
	if !ok {
		return nil, apperr.ErrStreamNotFound
	}
	return &s, nil
}

// GetForUpdate is Get; the lifecycle manager serializes writers in-process.
func (m *MemoryStore) GetForUpdate(ctx context.Context, id uint64) (*models.Stream, error) {
	return m.Get(ctx, id)
}

func (m *MemoryStore) Update(ctx context.Context, s *models.Stream) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.streams[s.ID]
	if !ok {
		return apperr.ErrStreamNotFound
	}
	s.UpdatedAt = time.Now().UTC()
	m.streams[s.ID] = *s
	m.record(ctx, func() { m.streams[prev.ID] = prev })
	return nil
}

func (m *MemoryStore) ListByParticipant(_ context.Context, principal uuid.UUID, role Participant) ([]*models.Stream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Stream
	for _, s := range m.streams {
		if matches(&s, principal, role) {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Checkpoint starts an undo journal carried by the returned context; restore
// reverses the writes made with it. The id counter is not rewound, so an id
// handed out by a rolled-back insert is never assigned again (as with a
// database sequence).
func (m *MemoryStore) Checkpoint(ctx context.Context) (context.Context, func()) {
	j := &journal{}
	return context.WithValue(ctx, journalKey{m}, j), func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		j.undo = nil
	}
}

// record must be called with m.mu held.
func (m *MemoryStore) record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{m}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

func matches(s *models.Stream, principal uuid.UUID, role Participant) bool {
	switch role {
	case ParticipantSender:
		return s.Sender == principal
	case ParticipantRecipient:
		return s.Recipient == principal
	default:
		return s.Sender == principal || s.Recipient == principal
	}
}
