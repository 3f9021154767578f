// Package access answers capability checks for ledger principals and lets
// administrators grant and revoke capabilities.
package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-streams/backend/internal/apperr"
)

// Capability is a role a principal may hold.
type Capability string

const (
	Administrator Capability = "administrator"
	Creator       Capability = "creator"
	Auditor       Capability = "auditor"
)

// Capabilities lists every known capability.
var Capabilities = []Capability{Administrator, Creator, Auditor}

// ParseCapability validates a capability name.
func ParseCapability(s string) (Capability, error) {
	for _, c := range Capabilities {
		if string(c) == s {
			return c, nil
		}
	}
	return "", apperr.New(apperr.CodeInvalidCapability, fmt.Sprintf("unknown capability %q", s))
}

// Directory stores (capability, principal) grants.
type Directory interface {
	Has(ctx context.Context, principal uuid.UUID, c Capability) (bool, error)
	Set(ctx context.Context, c Capability, principal, grantedBy uuid.UUID) error
	Unset(ctx context.Context, c Capability, principal uuid.UUID) error
	List(ctx context.Context, principal uuid.UUID) ([]Capability, error)
}

// Gate is the capability predicate consulted before every mutating operation.
// It reads the directory on every call; grants are visible immediately.
type Gate struct {
	dir    Directory
	logger *zap.Logger
}

// NewGate creates a gate over dir.
func NewGate(dir Directory, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{dir: dir, logger: logger}
}

// HasCapability reports whether principal holds c.
func (g *Gate) HasCapability(ctx context.Context, principal uuid.UUID, c Capability) (bool, error) {
	ok, err := g.dir.Has(ctx, principal, c)
	if err != nil {
		return false, fmt.Errorf("capability lookup: %w", err)
	}
	return ok, nil
}

// Require returns apperr.ErrMissingCapability unless principal holds c.
func (g *Gate) Require(ctx context.Context, principal uuid.UUID, c Capability) error {
	ok, err := g.HasCapability(ctx, principal, c)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.CodeMissingCapability, fmt.Sprintf("%s capability required", c))
	}
	return nil
}

// Grant gives c to principal. The caller must be an administrator.
func (g *Gate) Grant(ctx context.Context, caller uuid.UUID, c Capability, principal uuid.UUID) error {
	if err := g.authorize(ctx, caller, c, principal); err != nil {
		return err
	}
	if err := g.dir.Set(ctx, c, principal, caller); err != nil {
		return fmt.Errorf("grant %s: %w", c, err)
	}
	g.logger.Info("capability granted",
		zap.String("capability", string(c)),
		zap.String("principal", principal.String()),
		zap.String("granted_by", caller.String()),
	)
	return nil
}

// Revoke removes c from principal. The caller must be an administrator.
func (g *Gate) Revoke(ctx context.Context, caller uuid.UUID, c Capability, principal uuid.UUID) error {
	if err := g.authorize(ctx, caller, c, principal); err != nil {
		return err
	}
	if err := g.dir.Unset(ctx, c, principal); err != nil {
		return fmt.Errorf("revoke %s: %w", c, err)
	}
	g.logger.Info("capability revoked",
		zap.String("capability", string(c)),
		zap.String("principal", principal.String()),
		zap.String("revoked_by", caller.String()),
	)
	return nil
}

// List returns the capabilities principal holds.
func (g *Gate) List(ctx context.Context, principal uuid.UUID) ([]Capability, error) {
	return g.dir.List(ctx, principal)
}

// Bootstrap grants Administrator to principal without a caller check. It is
// used once at start-up so the first administrator can exist.
func (g *Gate) Bootstrap(ctx context.Context, principal uuid.UUID) error {
	if principal == uuid.Nil {
		return nil
	}
	if err := g.dir.Set(ctx, Administrator, principal, principal); err != nil {
		return fmt.Errorf("bootstrap administrator: %w", err)
	}
	g.logger.Info("bootstrap administrator granted", zap.String("principal", principal.String()))
	return nil
}

func (g *Gate) authorize(ctx context.Context, caller uuid.UUID, c Capability, principal uuid.UUID) error {
	if _, err := ParseCapability(string(c)); err != nil {
		return err
	}
	if principal == uuid.Nil {
		return apperr.New(apperr.CodeInvalidRecipientAddress, "principal must not be the zero identity")
	}
	return g.Require(ctx, caller, Administrator)
}
