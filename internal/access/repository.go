package access

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-streams/backend/pkg/database"
)

// Repository is a Directory backed by the capability_grants table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a capability grants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Has reports whether a grant row exists.
func (r *Repository) Has(ctx context.Context, principal uuid.UUID, c Capability) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM capability_grants WHERE capability = $1 AND principal_id = $2)`
	var ok bool
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, string(c), principal).Scan(&ok)
	return ok, err
}

// Set inserts a grant; granting twice is a no-op.
func (r *Repository) Set(ctx context.Context, c Capability, principal, grantedBy uuid.UUID) error {
	const q = `INSERT INTO capability_grants (capability, principal_id, granted_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (capability, principal_id) DO NOTHING`
	_, err := database.Conn(ctx, r.pool).Exec(ctx, q, string(c), principal, grantedBy)
	return err
}

// Unset deletes a grant.
func (r *Repository) Unset(ctx context.Context, c Capability, principal uuid.UUID) error {
	const q = `DELETE FROM capability_grants WHERE capability = $1 AND principal_id = $2`
	_, err := database.Conn(ctx, r.pool).Exec(ctx, q, string(c), principal)
	return err
}

// List returns the principal's capabilities ordered by name.
func (r *Repository) List(ctx context.Context, principal uuid.UUID) ([]Capability, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx,
		`SELECT capability FROM capability_grants WHERE principal_id = $1 ORDER BY capability`, principal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Capability
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		list = append(list, Capability(c))
	}
	return list, rows.Err()
}
