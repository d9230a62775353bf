package service

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	wallets ports.WalletStore
	ledger  ports.LedgerStore
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(wallets ports.WalletStore, ledger ports.LedgerStore) *WalletServiceImpl {
	return &WalletServiceImpl{wallets: wallets, ledger: ledger}
}

// Balance returns the owner's wallet, creating it on first reference.
func (s *WalletServiceImpl) Balance(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	if ownerID == "" {
		return nil, apperror.Validation("owner id is required")
	}
	w, err := s.wallets.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	return w, nil
}

// History lists the owner's transfers, newest first.
func (s *WalletServiceImpl) History(ctx context.Context, ownerID string, limit int) ([]domain.TransferRecord, error) {
	if ownerID == "" {
		return nil, apperror.Validation("owner id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := s.ledger.HistoryFor(ctx, ownerID, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list history: %w", err))
	}
	return records, nil
}
