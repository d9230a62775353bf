package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	transferColumns = `id, idempotency_key, currency, amount::text, sender_id, recipient_id,
		status, failure_reason, note, created_at, completed_at`
	entryColumns = `id, transfer_id, owner_id, entry_type, currency, amount::text, counterparty, created_at`

	// maxListLimit caps list queries that were called without a limit.
	maxListLimit = 1000
)

// LedgerRepo implements ports.LedgerStore.
type LedgerRepo struct {
	db DBTX
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(db DBTX) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// AppendHeader inserts a transfer header. A taken idempotency key yields
// domain.ErrDuplicateIdempotencyKey via the unique index.
func (r *LedgerRepo) AppendHeader(ctx context.Context, t *domain.TransferRecord) error {
	query := `INSERT INTO transfers (id, idempotency_key, currency, amount, sender_id, recipient_id,
		status, failure_reason, note, created_at, completed_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		t.ID, t.IdempotencyKey, t.Currency, t.Amount.String(), t.SenderID, t.RecipientID,
		string(t.Status), t.FailureReason, t.Note, t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); errors.Is(mapped, domain.ErrDuplicateIdempotencyKey) {
			return mapped
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// AppendEntries inserts the debit and credit postings of a transfer.
func (r *LedgerRepo) AppendEntries(ctx context.Context, debit, credit *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, transfer_id, owner_id, entry_type, currency, amount, counterparty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8), ($9, $10, $11, $12, $13, $14::numeric, $15, $16)`

	_, err := r.db.Exec(ctx, query,
		debit.ID, debit.TransferID, debit.OwnerID, string(debit.EntryType), debit.Currency, debit.Amount.String(), debit.Counterparty, debit.CreatedAt,
		credit.ID, credit.TransferID, credit.OwnerID, string(credit.EntryType), credit.Currency, credit.Amount.String(), credit.Counterparty, credit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return nil
}

// AppendAdjustment inserts a single adjustment posting.
func (r *LedgerRepo) AppendAdjustment(ctx context.Context, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, transfer_id, owner_id, entry_type, currency, amount, counterparty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		e.ID, e.TransferID, e.OwnerID, string(e.EntryType), e.Currency, e.Amount.String(), e.Counterparty, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert adjustment entry: %w", err)
	}
	return nil
}

// MarkCompleted moves a pending header to completed.
func (r *LedgerRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE transfers SET status = 'completed', completed_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark transfer completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, id, domain.TransferStatusCompleted)
	}
	return nil
}

// MarkFailed moves a pending header to failed with a reason.
func (r *LedgerRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `UPDATE transfers SET status = 'failed', failure_reason = $2, completed_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.db.Exec(ctx, query, id, reason)
	if err != nil {
		return fmt.Errorf("mark transfer failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, id, domain.TransferStatusFailed)
	}
	return nil
}

func (r *LedgerRepo) transitionError(ctx context.Context, id uuid.UUID, to domain.TransferStatus) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM transfers WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTransferNotFound
		}
		return fmt.Errorf("read transfer status: %w", err)
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, status, to)
}

// HeaderFor fetches a header by id. Returns nil, nil if absent.
func (r *LedgerRepo) HeaderFor(ctx context.Context, id uuid.UUID) (*domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	rec, err := scanTransfer(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	return rec, nil
}

// HeaderByIdempotencyKey fetches a header by its client key. Returns nil, nil if absent.
func (r *LedgerRepo) HeaderByIdempotencyKey(ctx context.Context, key string) (*domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE idempotency_key = $1`

	rec, err := scanTransfer(r.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer by idempotency key: %w", err)
	}
	return rec, nil
}

// EntriesFor lists the postings of a transfer or adjustment.
func (r *LedgerRepo) EntriesFor(ctx context.Context, transferID uuid.UUID) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE transfer_id = $1 ORDER BY created_at, entry_type`

	rows, err := r.db.Query(ctx, query, transferID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

// HistoryFor lists transfers sent or received by ownerID, newest first.
func (r *LedgerRepo) HistoryFor(ctx context.Context, ownerID string, limit int) ([]domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC LIMIT $2`

	return r.listTransfers(ctx, query, ownerID, clampLimit(limit))
}

// OutboundTotalSince sums completed transfers sent by senderID in currency since the cutoff.
func (r *LedgerRepo) OutboundTotalSince(ctx context.Context, senderID, currency string, since time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::text FROM transfers
		WHERE sender_id = $1 AND currency = $2 AND status = 'completed' AND created_at >= $3`

	var total string
	if err := r.db.QueryRow(ctx, query, senderID, currency, since).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum outbound transfers: %w", err)
	}
	sum, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse outbound total %q: %w", total, err)
	}
	return sum, nil
}

// ListCompletedSince lists completed transfers created at or after since, oldest first.
func (r *LedgerRepo) ListCompletedSince(ctx context.Context, since time.Time, limit int) ([]domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
		WHERE status = 'completed' AND created_at >= $1
		ORDER BY created_at ASC LIMIT $2`

	return r.listTransfers(ctx, query, since, clampLimit(limit))
}

// ListPendingBefore lists headers still pending that were created before cutoff.
func (r *LedgerRepo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC LIMIT $2`

	return r.listTransfers(ctx, query, cutoff, clampLimit(limit))
}

func (r *LedgerRepo) listTransfers(ctx context.Context, query string, args ...any) ([]domain.TransferRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []domain.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return out, nil
}

func scanTransfer(row scanner) (*domain.TransferRecord, error) {
	var (
		t              domain.TransferRecord
		amount, status string
	)
	err := row.Scan(
		&t.ID, &t.IdempotencyKey, &t.Currency, &amount, &t.SenderID, &t.RecipientID,
		&status, &t.FailureReason, &t.Note, &t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	t.Status = domain.TransferStatus(status)
	return &t, nil
}

func scanEntry(row scanner) (*domain.LedgerEntry, error) {
	var (
		e                 domain.LedgerEntry
		entryType, amount string
	)
	err := row.Scan(&e.ID, &e.TransferID, &e.OwnerID, &entryType, &e.Currency, &amount, &e.Counterparty, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse entry amount %q: %w", amount, err)
	}
	e.EntryType = domain.EntryType(entryType)
	return &e, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
