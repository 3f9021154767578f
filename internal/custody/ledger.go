// Package custody holds the fungible-asset balances the stream ledger moves
// funds through. The lifecycle code only depends on the Ledger interface.
package custody

import (
	"context"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/aura-streams/backend/internal/apperr"
)

// Ledger is the custody contract consumed by the lifecycle manager. Transfers
// either fully succeed or fully fail.
type Ledger interface {
	// Account is the custody account that holds funds pending disbursement.
	Account() uuid.UUID
	BalanceOf(ctx context.Context, account uuid.UUID) (uint256.Int, error)
	// Transfer moves amount from the custody account to to.
	Transfer(ctx context.Context, to uuid.UUID, amount uint256.Int) error
	// TransferFrom moves amount from from to to, spending the allowance from
	// granted to the custody account.
	TransferFrom(ctx context.Context, from, to uuid.UUID, amount uint256.Int) error
}

// Book extends Ledger with the account administration the HTTP API exposes.
type Book interface {
	Ledger
	Credit(ctx context.Context, to uuid.UUID, amount uint256.Int) error
	Approve(ctx context.Context, owner uuid.UUID, amount uint256.Int) error
	Allowance(ctx context.Context, owner uuid.UUID) (uint256.Int, error)
}

func validateAccount(account uuid.UUID) error {
	if account == uuid.Nil {
		return apperr.New(apperr.CodeInvalidTokenAddress, "custody account must not be the zero identity")
	}
	return nil
}
