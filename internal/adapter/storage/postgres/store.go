package postgres

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
)

// Store implements ports.Store and ports.UnitOfWork on PostgreSQL.
type Store struct {
	pool       Pool
	currencies []string
	seed       decimal.Decimal
}

// NewStore wraps a connection pool.
func NewStore(pool Pool, currencies []string, seed decimal.Decimal) *Store {
	return &Store{pool: pool, currencies: currencies, seed: seed}
}

// Capabilities implements ports.Store.
func (s *Store) Capabilities() ports.StoreCapabilities {
	return ports.StoreCapabilities{Name: "postgres", Transactions: true}
}

// Repositories returns repos bound to the pool (autocommit per statement).
func (s *Store) Repositories() ports.Repositories {
	return s.repos(s.pool)
}

func (s *Store) repos(db DBTX) ports.Repositories {
	return ports.Repositories{
		Wallets: NewWalletRepo(db, s.currencies, s.seed),
		Ledger:  NewLedgerRepo(db),
		Audit:   NewAuditRepo(db),
	}
}

// WithinTx runs fn with repos bound to one database transaction.
// The transaction commits only if fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, s.repos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
