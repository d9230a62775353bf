package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Wallets ---

type walletRepo struct {
	v *view
}

func (r *walletRepo) ensure(st *state, ownerID string) *domain.Wallet {
	w, ok := st.wallets[ownerID]
	if !ok {
		w = domain.NewWallet(ownerID, r.v.store.currencies, r.v.store.seed)
		st.wallets[ownerID] = w
	}
	return w
}

func (r *walletRepo) GetOrCreate(_ context.Context, ownerID string) (*domain.Wallet, error) {
	var out *domain.Wallet
	err := r.v.do(func(st *state) error {
		out = r.ensure(st, ownerID).Snapshot()
		return nil
	})
	return out, err
}

func (r *walletRepo) Get(_ context.Context, ownerID string) (*domain.Wallet, error) {
	var out *domain.Wallet
	err := r.v.do(func(st *state) error {
		out = st.wallets[ownerID].Snapshot()
		return nil
	})
	return out, err
}

func (r *walletRepo) Credit(_ context.Context, ownerID, currency string, amount decimal.Decimal) error {
	return r.v.do(func(st *state) error {
		w := r.ensure(st, ownerID)
		w.Balances[currency] = w.Balance(currency).Add(amount)
		w.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *walletRepo) DebitIfSufficient(_ context.Context, ownerID, currency string, amount decimal.Decimal) (bool, error) {
	applied := false
	err := r.v.do(func(st *state) error {
		w, ok := st.wallets[ownerID]
		if !ok || w.Balance(currency).LessThan(amount) {
			return nil
		}
		w.Balances[currency] = w.Balance(currency).Sub(amount)
		w.UpdatedAt = time.Now().UTC()
		applied = true
		return nil
	})
	return applied, err
}

// --- Ledger ---

type ledgerRepo struct {
	v *view
}

func (r *ledgerRepo) AppendHeader(_ context.Context, rec *domain.TransferRecord) error {
	return r.v.do(func(st *state) error {
		if rec.IdempotencyKey != nil {
			if _, taken := st.idem[*rec.IdempotencyKey]; taken {
				return domain.ErrDuplicateIdempotencyKey
			}
			st.idem[*rec.IdempotencyKey] = rec.ID
		}
		cp := *rec
		st.transfers[rec.ID] = &cp
		st.order = append(st.order, rec.ID)
		return nil
	})
}

func (r *ledgerRepo) AppendEntries(_ context.Context, debit, credit *domain.LedgerEntry) error {
	return r.v.do(func(st *state) error {
		st.entries[debit.TransferID] = append(st.entries[debit.TransferID], *debit)
		st.entries[credit.TransferID] = append(st.entries[credit.TransferID], *credit)
		return nil
	})
}

func (r *ledgerRepo) AppendAdjustment(_ context.Context, entry *domain.LedgerEntry) error {
	return r.v.do(func(st *state) error {
		st.entries[entry.TransferID] = append(st.entries[entry.TransferID], *entry)
		return nil
	})
}

func (r *ledgerRepo) transition(id uuid.UUID, to domain.TransferStatus, reason *string) error {
	return r.v.do(func(st *state) error {
		rec, ok := st.transfers[id]
		if !ok {
			return domain.ErrTransferNotFound
		}
		if rec.Status != domain.TransferStatusPending {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, rec.Status, to)
		}
		now := time.Now().UTC()
		rec.Status = to
		rec.FailureReason = reason
		rec.CompletedAt = &now
		return nil
	})
}

func (r *ledgerRepo) MarkCompleted(_ context.Context, id uuid.UUID) error {
	return r.transition(id, domain.TransferStatusCompleted, nil)
}

func (r *ledgerRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	return r.transition(id, domain.TransferStatusFailed, &reason)
}

func (r *ledgerRepo) HeaderFor(_ context.Context, id uuid.UUID) (*domain.TransferRecord, error) {
	var out *domain.TransferRecord
	err := r.v.do(func(st *state) error {
		if rec, ok := st.transfers[id]; ok {
			cp := *rec
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *ledgerRepo) HeaderByIdempotencyKey(_ context.Context, key string) (*domain.TransferRecord, error) {
	var out *domain.TransferRecord
	err := r.v.do(func(st *state) error {
		id, ok := st.idem[key]
		if !ok {
			return nil
		}
		if rec, ok := st.transfers[id]; ok {
			cp := *rec
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *ledgerRepo) EntriesFor(_ context.Context, transferID uuid.UUID) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	err := r.v.do(func(st *state) error {
		out = append([]domain.LedgerEntry(nil), st.entries[transferID]...)
		return nil
	})
	return out, err
}

// scan walks headers newest first and collects those accepted by keep.
func (r *ledgerRepo) scan(limit int, newestFirst bool, keep func(*domain.TransferRecord) bool) ([]domain.TransferRecord, error) {
	var out []domain.TransferRecord
	err := r.v.do(func(st *state) error {
		for i := range st.order {
			idx := i
			if newestFirst {
				idx = len(st.order) - 1 - i
			}
			rec := st.transfers[st.order[idx]]
			if !keep(rec) {
				continue
			}
			out = append(out, *rec)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *ledgerRepo) HistoryFor(_ context.Context, ownerID string, limit int) ([]domain.TransferRecord, error) {
	return r.scan(limit, true, func(rec *domain.TransferRecord) bool {
		return rec.SenderID == ownerID || rec.RecipientID == ownerID
	})
}

func (r *ledgerRepo) OutboundTotalSince(_ context.Context, senderID, currency string, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	err := r.v.do(func(st *state) error {
		for _, rec := range st.transfers {
			if rec.SenderID == senderID && rec.Currency == currency &&
				rec.Status == domain.TransferStatusCompleted && !rec.CreatedAt.Before(since) {
				total = total.Add(rec.Amount)
			}
		}
		return nil
	})
	return total, err
}

func (r *ledgerRepo) ListCompletedSince(_ context.Context, since time.Time, limit int) ([]domain.TransferRecord, error) {
	return r.scan(limit, false, func(rec *domain.TransferRecord) bool {
		return rec.Status == domain.TransferStatusCompleted && !rec.CreatedAt.Before(since)
	})
}

func (r *ledgerRepo) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.TransferRecord, error) {
	return r.scan(limit, false, func(rec *domain.TransferRecord) bool {
		return rec.Status == domain.TransferStatusPending && rec.CreatedAt.Before(cutoff)
	})
}

// --- Audit ---

type auditRepo struct {
	v *view
}

func (r *auditRepo) Append(_ context.Context, ev *domain.AuditEvent) error {
	return r.v.do(func(st *state) error {
		st.audit = append(st.audit, *ev)
		return nil
	})
}

func (r *auditRepo) List(_ context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	err := r.v.do(func(st *state) error {
		for i := range st.audit {
			if filter.Matches(&st.audit[i]) {
				out = append(out, st.audit[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
