package custody_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-streams/backend/internal/apperr"
	"github.com/aura-streams/backend/internal/custody"
	"github.com/aura-streams/backend/internal/models"
)

func balance(t *testing.T, l custody.Ledger, who uuid.UUID) uint64 {
	t.Helper()
	b, err := l.BalanceOf(context.Background(), who)
	require.NoError(t, err)
	return b.Uint64()
}

func TestNewMemoryLedger_RejectsZeroAccount(t *testing.T) {
	t.Parallel()

	_, err := custody.NewMemoryLedger(uuid.Nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidTokenAddress)
}

func TestMemoryLedger_TransferFrom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	account, alice := uuid.New(), uuid.New()
	l, err := custody.NewMemoryLedger(account)
	require.NoError(t, err)
	require.NoError(t, l.Credit(ctx, alice, models.Amount(100)))

	assert.ErrorIs(t, l.TransferFrom(ctx, alice, account, models.Amount(10)), apperr.ErrInsufficientAllowance)

	require.NoError(t, l.Approve(ctx, alice, models.Amount(500)))
	assert.ErrorIs(t, l.TransferFrom(ctx, alice, account, models.Amount(101)), apperr.ErrInsufficientFunds)
	assert.Equal(t, uint64(100), balance(t, l, alice), "failed transfer leaves balances untouched")

	require.NoError(t, l.TransferFrom(ctx, alice, account, models.Amount(60)))
	assert.Equal(t, uint64(40), balance(t, l, alice))
	assert.Equal(t, uint64(60), balance(t, l, account))
	allowance, err := l.Allowance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(440), allowance.Uint64())
}

func TestMemoryLedger_Transfer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	account, bob := uuid.New(), uuid.New()
	l, err := custody.NewMemoryLedger(account)
	require.NoError(t, err)
	require.NoError(t, l.Credit(ctx, account, models.Amount(50)))

	assert.ErrorIs(t, l.Transfer(ctx, bob, models.Amount(51)), apperr.ErrInsufficientFunds)
	require.NoError(t, l.Transfer(ctx, bob, models.Amount(50)))
	assert.Equal(t, uint64(50), balance(t, l, bob))
	assert.Zero(t, balance(t, l, account))
}

func TestMemoryLedger_CreditOverflow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	alice := uuid.New()
	l, err := custody.NewMemoryLedger(uuid.New())
	require.NoError(t, err)

	top := new(uint256.Int).SetAllOne()
	require.NoError(t, l.Credit(ctx, alice, *top))
	assert.ErrorIs(t, l.Credit(ctx, alice, models.Amount(1)), apperr.ErrInvalidDepositAmount)
}

func TestMemoryLedger_Checkpoint(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	custodyAccount := uuid.New()
	l, err := custody.NewMemoryLedger(custodyAccount)
	require.NoError(t, err)
	require.NoError(t, l.Credit(ctx, alice, models.Amount(10)))
	require.NoError(t, l.Approve(ctx, alice, models.Amount(8)))

	txCtx, restore := l.Checkpoint(ctx)
	require.NoError(t, l.TransferFrom(txCtx, alice, custodyAccount, models.Amount(6)))
	require.NoError(t, l.Transfer(txCtx, bob, models.Amount(4)))
	require.NoError(t, l.Credit(txCtx, alice, models.Amount(5)))
	// Writes made outside the checkpointed context survive the restore.
	require.NoError(t, l.Credit(ctx, alice, models.Amount(7)))
	require.NoError(t, l.Credit(ctx, bob, models.Amount(1)))
	restore()

	assert.Equal(t, uint64(17), balance(t, l, alice))
	assert.Equal(t, uint64(1), balance(t, l, bob))
	assert.Zero(t, balance(t, l, custodyAccount))
	allowance, err := l.Allowance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), allowance.Uint64())
}

func TestMemoryLedger_CheckpointKeepsLaterApprove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	alice := uuid.New()
	custodyAccount := uuid.New()
	l, err := custody.NewMemoryLedger(custodyAccount)
	require.NoError(t, err)
	require.NoError(t, l.Credit(ctx, alice, models.Amount(10)))
	require.NoError(t, l.Approve(ctx, alice, models.Amount(8)))

	txCtx, restore := l.Checkpoint(ctx)
	require.NoError(t, l.TransferFrom(txCtx, alice, custodyAccount, models.Amount(6)))
	require.NoError(t, l.Approve(ctx, alice, models.Amount(3)))
	restore()

	allowance, err := l.Allowance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), allowance.Uint64(), "a re-approval is not overwritten")
	assert.Equal(t, uint64(10), balance(t, l, alice))
}
