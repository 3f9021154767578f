package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/aura-streams/backend/config"
	"github.com/aura-streams/backend/internal/access"
	"github.com/aura-streams/backend/internal/auth"
	"github.com/aura-streams/backend/internal/custody"
	"github.com/aura-streams/backend/internal/lifecycle"
	"github.com/aura-streams/backend/internal/streams"
	"github.com/aura-streams/backend/pkg/database"
)

// backend is the storage the server runs on.
type backend struct {
	users     auth.Users
	streams   streams.Store
	book      custody.Book
	directory access.Directory
	tx        lifecycle.Transactor
	close     func()
}

func newBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	if cfg.Ledger.StorageBackend == config.BackendMemory {
		return newMemoryBackend(cfg)
	}
	return newPostgresBackend(ctx, cfg, logger)
}

func newPostgresBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	book, err := custody.NewRepository(pool, cfg.Ledger.CustodyAccountID)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &backend{
		users:     auth.NewRepository(pool),
		streams:   streams.NewRepository(pool),
		book:      book,
		directory: access.NewRepository(pool),
		tx:        database.NewTxManager(pool),
		close:     closePool(pool),
	}, nil
}

// newMemoryBackend keeps everything in process. State is lost on restart.
func newMemoryBackend(cfg *config.Config) (*backend, error) {
	store := streams.NewMemoryStore()
	ledger, err := custody.NewMemoryLedger(cfg.Ledger.CustodyAccountID)
	if err != nil {
		return nil, err
	}
	return &backend{
		users:     auth.NewMemoryRepository(),
		streams:   store,
		book:      ledger,
		directory: access.NewMemoryDirectory(),
		tx:        lifecycle.NewMemoryTransactor(store, ledger),
		close:     func() {},
	}, nil
}

func closePool(pool *pgxpool.Pool) func() {
	return func() { pool.Close() }
}
