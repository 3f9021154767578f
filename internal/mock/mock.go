// Package mock provides function-field test doubles for the lifecycle
// collaborators. Unset fields fall back to a harmless default.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/aura-streams/backend/internal/access"
	"github.com/aura-streams/backend/internal/custody"
	"github.com/aura-streams/backend/internal/events"
)

// Ledger delegates to Inner when it is set; each Fn field overrides one method.
type Ledger struct {
	Inner     custody.Ledger
	AccountID uuid.UUID

	BalanceOfFn    func(ctx context.Context, account uuid.UUID) (uint256.Int, error)
	TransferFn     func(ctx context.Context, to uuid.UUID, amount uint256.Int) error
	TransferFromFn func(ctx context.Context, from, to uuid.UUID, amount uint256.Int) error
}

func (l *Ledger) Account() uuid.UUID {
	if l.AccountID == uuid.Nil && l.Inner != nil {
		return l.Inner.Account()
	}
	return l.AccountID
}

func (l *Ledger) BalanceOf(ctx context.Context, account uuid.UUID) (uint256.Int, error) {
	if l.BalanceOfFn != nil {
		return l.BalanceOfFn(ctx, account)
	}
	if l.Inner != nil {
		return l.Inner.BalanceOf(ctx, account)
	}
	return uint256.Int{}, nil
}

func (l *Ledger) Transfer(ctx context.Context, to uuid.UUID, amount uint256.Int) error {
	if l.TransferFn != nil {
		return l.TransferFn(ctx, to, amount)
	}
	if l.Inner != nil {
		return l.Inner.Transfer(ctx, to, amount)
	}
	return nil
}

func (l *Ledger) TransferFrom(ctx context.Context, from, to uuid.UUID, amount uint256.Int) error {
	if l.TransferFromFn != nil {
		return l.TransferFromFn(ctx, from, to, amount)
	}
	if l.Inner != nil {
		return l.Inner.TransferFrom(ctx, from, to, amount)
	}
	return nil
}

// Gate allows everything unless RequireFn says otherwise.
type Gate struct {
	RequireFn func(ctx context.Context, principal uuid.UUID, c access.Capability) error
}

func (g *Gate) Require(ctx context.Context, principal uuid.UUID, c access.Capability) error {
	if g.RequireFn != nil {
		return g.RequireFn(ctx, principal, c)
	}
	return nil
}

// Emitter calls EmitFn.
type Emitter struct {
	EmitFn func(ctx context.Context, e events.Event) error
}

func (m *Emitter) Emit(ctx context.Context, e events.Event) error {
	if m.EmitFn != nil {
		return m.EmitFn(ctx, e)
	}
	return nil
}

// Clock is a settable clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock reading t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
