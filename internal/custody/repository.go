package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-streams/backend/internal/apperr"
	"github.com/aura-streams/backend/internal/models"
	"github.com/aura-streams/backend/pkg/database"
)

// Repository is a Book backed by the custody_balances and custody_allowances
// tables. Multi-row transfers run inside one transaction, joining the caller's
// transaction when ctx carries one.
type Repository struct {
	pool    *pgxpool.Pool
	tx      *database.TxManager
	account uuid.UUID
}

var _ Book = (*Repository)(nil)

// NewRepository creates a PostgreSQL custody book for the given custody account.
func NewRepository(pool *pgxpool.Pool, account uuid.UUID) (*Repository, error) {
	if err := validateAccount(account); err != nil {
		return nil, err
	}
	return &Repository{pool: pool, tx: database.NewTxManager(pool), account: account}, nil
}

func (r *Repository) Account() uuid.UUID { return r.account }

// BalanceOf returns the account balance; unknown accounts hold zero.
func (r *Repository) BalanceOf(ctx context.Context, account uuid.UUID) (uint256.Int, error) {
	const q = `SELECT balance::text FROM custody_balances WHERE account_id = $1`
	var raw string
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, account).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return uint256.Int{}, nil
	}
	if err != nil {
		return uint256.Int{}, fmt.Errorf("select balance: %w", err)
	}
	return models.ParseAmount(raw)
}

// Transfer moves amount out of the custody account.
func (r *Repository) Transfer(ctx context.Context, to uuid.UUID, amount uint256.Int) error {
	return r.tx.InTx(ctx, func(ctx context.Context) error {
		if err := r.debit(ctx, r.account, amount); err != nil {
			return err
		}
		return r.credit(ctx, to, amount)
	})
}

// TransferFrom spends from's allowance to the custody account and moves amount.
func (r *Repository) TransferFrom(ctx context.Context, from, to uuid.UUID, amount uint256.Int) error {
	return r.tx.InTx(ctx, func(ctx context.Context) error {
		const q = `UPDATE custody_allowances SET amount = amount - $3::numeric, updated_at = NOW()
			WHERE owner_id = $1 AND spender_id = $2 AND amount >= $3::numeric`
		tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, from, r.account, amount.Dec())
		if err != nil {
			return fmt.Errorf("spend allowance: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.ErrInsufficientAllowance
		}
		if err := r.debit(ctx, from, amount); err != nil {
			return err
		}
		return r.credit(ctx, to, amount)
	})
}

// Credit adds freshly issued funds to an account.
func (r *Repository) Credit(ctx context.Context, to uuid.UUID, amount uint256.Int) error {
	return r.credit(ctx, to, amount)
}

// Approve sets the amount the custody account may pull from owner.
func (r *Repository) Approve(ctx context.Context, owner uuid.UUID, amount uint256.Int) error {
	const q = `INSERT INTO custody_allowances (owner_id, spender_id, amount)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (owner_id, spender_id) DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()`
	if _, err := database.Conn(ctx, r.pool).Exec(ctx, q, owner, r.account, amount.Dec()); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return nil
}

// Allowance returns what owner has approved for the custody account.
func (r *Repository) Allowance(ctx context.Context, owner uuid.UUID) (uint256.Int, error) {
	const q = `SELECT amount::text FROM custody_allowances WHERE owner_id = $1 AND spender_id = $2`
	var raw string
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, owner, r.account).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return uint256.Int{}, nil
	}
	if err != nil {
		return uint256.Int{}, fmt.Errorf("select allowance: %w", err)
	}
	return models.ParseAmount(raw)
}

func (r *Repository) debit(ctx context.Context, account uuid.UUID, amount uint256.Int) error {
	const q = `UPDATE custody_balances SET balance = balance - $2::numeric, updated_at = NOW()
		WHERE account_id = $1 AND balance >= $2::numeric`
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, account, amount.Dec())
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if tag.RowsAffected() == 0 && !amount.IsZero() {
		return apperr.ErrInsufficientFunds
	}
	return nil
}

func (r *Repository) credit(ctx context.Context, account uuid.UUID, amount uint256.Int) error {
	const q = `INSERT INTO custody_balances (account_id, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (account_id) DO UPDATE SET balance = custody_balances.balance + EXCLUDED.balance, updated_at = NOW()`
	if _, err := database.Conn(ctx, r.pool).Exec(ctx, q, account, amount.Dec()); err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	return nil
}
