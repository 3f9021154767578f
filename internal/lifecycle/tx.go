package lifecycle

import "context"

// Transactor runs fn as one unit of work: if fn fails, none of its registry or
// custody writes remain visible.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Checkpointer is an in-memory store that can undo the writes made with the
// context it returns.
type Checkpointer interface {
	Checkpoint(ctx context.Context) (context.Context, func())
}

// MemoryTransactor gives in-memory stores rollback semantics: fn runs with a
// checkpointed context and its writes are undone if it fails. Writes made
// outside fn's context, such as an HTTP Credit or Approve, survive the
// rollback. It relies on the manager's guard for isolation between
// operations.
type MemoryTransactor struct {
	parts []Checkpointer
}

// NewMemoryTransactor creates a transactor over the given stores.
func NewMemoryTransactor(parts ...Checkpointer) *MemoryTransactor {
	return &MemoryTransactor{parts: parts}
}

// InTx implements Transactor.
func (t *MemoryTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	restores := make([]func(), len(t.parts))
	for i, p := range t.parts {
		ctx, restores[i] = p.Checkpoint(ctx)
	}
	if err := fn(ctx); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	return nil
}
