package ports

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletStore defines persistence operations for wallets.
// DebitIfSufficient must be a single conditional store operation: the
// balance check and the decrement can never be observed apart.
type WalletStore interface {
	GetOrCreate(ctx context.Context, ownerID string) (*domain.Wallet, error)
	Get(ctx context.Context, ownerID string) (*domain.Wallet, error) // nil, nil when absent
	Credit(ctx context.Context, ownerID, currency string, amount decimal.Decimal) error
	DebitIfSufficient(ctx context.Context, ownerID, currency string, amount decimal.Decimal) (bool, error)
}

// LedgerStore is the append-only journal of transfer headers and postings.
// Postings are never updated or deleted; headers only move pending -> completed|failed.
type LedgerStore interface {
	// AppendHeader returns domain.ErrDuplicateIdempotencyKey when the key is taken.
	AppendHeader(ctx context.Context, rec *domain.TransferRecord) error
	AppendEntries(ctx context.Context, debit, credit *domain.LedgerEntry) error
	AppendAdjustment(ctx context.Context, entry *domain.LedgerEntry) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	HeaderFor(ctx context.Context, id uuid.UUID) (*domain.TransferRecord, error)
	HeaderByIdempotencyKey(ctx context.Context, key string) (*domain.TransferRecord, error)
	EntriesFor(ctx context.Context, transferID uuid.UUID) ([]domain.LedgerEntry, error)
	HistoryFor(ctx context.Context, ownerID string, limit int) ([]domain.TransferRecord, error)
	OutboundTotalSince(ctx context.Context, senderID, currency string, since time.Time) (decimal.Decimal, error)
	ListCompletedSince(ctx context.Context, since time.Time, limit int) ([]domain.TransferRecord, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TransferRecord, error)
}

// AuditStore persists audit events. Rows are never modified.
type AuditStore interface {
	Append(ctx context.Context, ev *domain.AuditEvent) error
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error)
}

// Repositories groups the stores that share one backend (and one transaction).
type Repositories struct {
	Wallets WalletStore
	Ledger  LedgerStore
	Audit   AuditStore
}

// StoreCapabilities is probed once at startup to pick the transfer strategy.
type StoreCapabilities struct {
	Name         string
	Transactions bool
}

// Store is a storage backend.
type Store interface {
	Repositories() Repositories
	Capabilities() StoreCapabilities
}

// UnitOfWork runs fn inside a single multi-record transaction. Any error
// returned by fn rolls back every write made through the provided repos.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached record JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimiter counts requests in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}
