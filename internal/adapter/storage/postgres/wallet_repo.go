package postgres

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletStore. One row per (owner, currency).
type WalletRepo struct {
	db         DBTX
	currencies []string
	seed       decimal.Decimal
}

// NewWalletRepo creates a new WalletRepo. New wallets get seed in every currency.
func NewWalletRepo(db DBTX, currencies []string, seed decimal.Decimal) *WalletRepo {
	return &WalletRepo{db: db, currencies: currencies, seed: seed}
}

func (r *WalletRepo) ensure(ctx context.Context, ownerID string) error {
	query := `INSERT INTO wallets (owner_id, currency, balance)
		SELECT $1, c, $3::numeric FROM unnest($2::text[]) AS c
		ON CONFLICT (owner_id, currency) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, ownerID, r.currencies, r.seed.String()); err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}
	return nil
}

// GetOrCreate returns the wallet, creating it with the seed balance if absent.
func (r *WalletRepo) GetOrCreate(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	if err := r.ensure(ctx, ownerID); err != nil {
		return nil, err
	}
	return r.Get(ctx, ownerID)
}

// Get fetches every currency row of a wallet. Returns nil, nil if none exist.
func (r *WalletRepo) Get(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	query := `SELECT currency, balance::text, created_at, updated_at
		FROM wallets WHERE owner_id = $1 ORDER BY currency`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	defer rows.Close()

	var w *domain.Wallet
	for rows.Next() {
		var (
			currency, balance string
			row               domain.Wallet
		)
		if err := rows.Scan(&currency, &balance, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		amount, err := decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("parse balance %q: %w", balance, err)
		}
		if w == nil {
			w = &domain.Wallet{OwnerID: ownerID, Balances: make(map[string]decimal.Decimal), CreatedAt: row.CreatedAt}
		}
		w.Balances[currency] = amount
		if row.CreatedAt.Before(w.CreatedAt) {
			w.CreatedAt = row.CreatedAt
		}
		if row.UpdatedAt.After(w.UpdatedAt) {
			w.UpdatedAt = row.UpdatedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return w, nil
}

// Credit adds amount unconditionally, creating the wallet if needed.
func (r *WalletRepo) Credit(ctx context.Context, ownerID, currency string, amount decimal.Decimal) error {
	if err := r.ensure(ctx, ownerID); err != nil {
		return err
	}

	query := `INSERT INTO wallets (owner_id, currency, balance) VALUES ($1, $2, $3::numeric)
		ON CONFLICT (owner_id, currency)
		DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, ownerID, currency, amount.String()); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}

// DebitIfSufficient subtracts amount only if the balance covers it.
// Check and decrement are one statement, so concurrent debits cannot overdraw.
func (r *WalletRepo) DebitIfSufficient(ctx context.Context, ownerID, currency string, amount decimal.Decimal) (bool, error) {
	query := `UPDATE wallets SET balance = balance - $1::numeric, updated_at = NOW()
		WHERE owner_id = $2 AND currency = $3 AND balance >= $1::numeric`

	tag, err := r.db.Exec(ctx, query, amount.String(), ownerID, currency)
	if err != nil {
		return false, fmt.Errorf("debit wallet: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
