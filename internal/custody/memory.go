package custody

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/aura-streams/backend/internal/apperr"
)

// MemoryLedger is an in-process Book.
type MemoryLedger struct {
	account uuid.UUID

	mu         sync.Mutex
	balances   map[uuid.UUID]uint256.Int
	allowances map[uuid.UUID]uint256.Int // owner -> amount approved for the custody account
}

var _ Book = (*MemoryLedger)(nil)

// journal holds the undo steps of one checkpoint. Steps run with mu held.
type journal struct {
	undo []func()
}

type journalKey struct{ l *MemoryLedger }

// NewMemoryLedger creates an empty ledger whose custody account is account.
func NewMemoryLedger(account uuid.UUID) (*MemoryLedger, error) {
	if err := validateAccount(account); err != nil {
		return nil, err
	}
	return &MemoryLedger{
		account:    account,
		balances:   make(map[uuid.UUID]uint256.Int),
		allowances: make(map[uuid.UUID]uint256.Int),
	}, nil
}

func (l *MemoryLedger) Account() uuid.UUID { return l.account }

func (l *MemoryLedger) BalanceOf(_ context.Context, account uuid.UUID) (uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

func (l *MemoryLedger) Transfer(ctx context.Context, to uuid.UUID, amount uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.move(l.account, to, amount); err != nil {
		return err
	}
	l.record(ctx, func() { l.unmove(l.account, to, amount) })
	return nil
}

func (l *MemoryLedger) TransferFrom(ctx context.Context, from, to uuid.UUID, amount uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	before := l.allowances[from]
	if before.Lt(&amount) {
		return apperr.ErrInsufficientAllowance
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	var after uint256.Int
	after.Sub(&before, &amount)
	l.allowances[from] = after
	l.record(ctx, func() {
		l.unmove(from, to, amount)
		l.resetAllowance(from, after, before)
	})
	return nil
}

func (l *MemoryLedger) Credit(ctx context.Context, to uuid.UUID, amount uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balances[to]
	if _, overflow := bal.AddOverflow(&bal, &amount); overflow {
		return apperr.New(apperr.CodeInvalidDepositAmount, "credit overflows balance")
	}
	l.balances[to] = bal
	l.record(ctx, func() {
		bal := l.balances[to]
		bal.Sub(&bal, &amount)
		l.balances[to] = bal
	})
	return nil
}

func (l *MemoryLedger) Approve(ctx context.Context, owner uuid.UUID, amount uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	before := l.allowances[owner]
	l.allowances[owner] = amount
	l.record(ctx, func() { l.resetAllowance(owner, amount, before) })
	return nil
}

func (l *MemoryLedger) Allowance(_ context.Context, owner uuid.UUID) (uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[owner], nil
}

// Checkpoint starts an undo journal carried by the returned context. Writes
// made with that context are reversed by restore; writes made with any other
// context, such as a Credit landing mid-transaction, are left in place.
func (l *MemoryLedger) Checkpoint(ctx context.Context) (context.Context, func()) {
	j := &journal{}
	return context.WithValue(ctx, journalKey{l}, j), func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		j.undo = nil
	}
}

// record must be called with l.mu held.
func (l *MemoryLedger) record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{l}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// resetAllowance puts back before unless owner re-approved since.
func (l *MemoryLedger) resetAllowance(owner uuid.UUID, after, before uint256.Int) {
	if cur := l.allowances[owner]; cur.Eq(&after) {
		l.allowances[owner] = before
	}
}

// unmove reverses a move. Balances only grow outside the manager, so the
// destination still holds amount.
func (l *MemoryLedger) unmove(from, to uuid.UUID, amount uint256.Int) {
	dst := l.balances[to]
	dst.Sub(&dst, &amount)
	l.balances[to] = dst
	src := l.balances[from]
	src.Add(&src, &amount)
	l.balances[from] = src
}

// move must be called with l.mu held.
func (l *MemoryLedger) move(from, to uuid.UUID, amount uint256.Int) error {
	src := l.balances[from]
	if src.Lt(&amount) {
		return apperr.ErrInsufficientFunds
	}
	src.Sub(&src, &amount)
	l.balances[from] = src
	dst := l.balances[to]
	dst.Add(&dst, &amount)
	l.balances[to] = dst
	return nil
}
