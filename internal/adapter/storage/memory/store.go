package memory

import (
	"context"
	"sync"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// state is everything the store holds. WithinTx works on a clone and swaps
// it in only when fn succeeds.
type state struct {
	wallets   map[string]*domain.Wallet
	transfers map[uuid.UUID]*domain.TransferRecord
	order     []uuid.UUID
	idem      map[string]uuid.UUID
	entries   map[uuid.UUID][]domain.LedgerEntry
	audit     []domain.AuditEvent
}

func newState() *state {
	return &state{
		wallets:   make(map[string]*domain.Wallet),
		transfers: make(map[uuid.UUID]*domain.TransferRecord),
		idem:      make(map[string]uuid.UUID),
		entries:   make(map[uuid.UUID][]domain.LedgerEntry),
	}
}

func (s *state) clone() *state {
	cp := &state{
		wallets:   make(map[string]*domain.Wallet, len(s.wallets)),
		transfers: make(map[uuid.UUID]*domain.TransferRecord, len(s.transfers)),
		order:     append([]uuid.UUID(nil), s.order...),
		idem:      make(map[string]uuid.UUID, len(s.idem)),
		entries:   make(map[uuid.UUID][]domain.LedgerEntry, len(s.entries)),
		audit:     append([]domain.AuditEvent(nil), s.audit...),
	}
	for k, w := range s.wallets {
		cp.wallets[k] = w.Snapshot()
	}
	for k, t := range s.transfers {
		rec := *t
		cp.transfers[k] = &rec
	}
	for k, v := range s.idem {
		cp.idem[k] = v
	}
	for k, e := range s.entries {
		cp.entries[k] = append([]domain.LedgerEntry(nil), e...)
	}
	return cp
}

// Store is a process-local backend with full transaction support.
// It is meant for development and tests; nothing survives a restart.
type Store struct {
	mu         sync.Mutex
	st         *state
	currencies []string
	seed       decimal.Decimal
}

// NewStore creates an empty store. New wallets get seed in every currency.
func NewStore(currencies []string, seed decimal.Decimal) *Store {
	return &Store{
		st:         newState(),
		currencies: currencies,
		seed:       seed,
	}
}

// Capabilities implements ports.Store.
func (s *Store) Capabilities() ports.StoreCapabilities {
	return ports.StoreCapabilities{Name: "memory", Transactions: true}
}

// Repositories implements ports.Store. Every call takes the store lock.
func (s *Store) Repositories() ports.Repositories {
	return s.repos(&view{store: s})
}

// WithinTx implements ports.UnitOfWork. Transactions are serialised.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, s.repos(&view{store: s, st: work})); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(_ context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

func (s *Store) repos(v *view) ports.Repositories {
	return ports.Repositories{
		Wallets: &walletRepo{v: v},
		Ledger:  &ledgerRepo{v: v},
		Audit:   &auditRepo{v: v},
	}
}

// view routes repo calls either to the live state under the lock or to a
// transaction's working copy, whose lock is already held.
type view struct {
	store *Store
	st    *state
}

func (v *view) do(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}
