package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// VerifierServiceImpl implements ports.VerifierService. It only reads.
type VerifierServiceImpl struct {
	ledger ports.LedgerStore
	now    func() time.Time
	log    zerolog.Logger
}

// NewVerifierService creates a new VerifierServiceImpl.
func NewVerifierService(ledger ports.LedgerStore, log zerolog.Logger) *VerifierServiceImpl {
	return &VerifierServiceImpl{ledger: ledger, now: time.Now, log: log}
}

// Verify checks the double-entry shape of one transfer.
func (s *VerifierServiceImpl) Verify(ctx context.Context, transferID uuid.UUID) (*ports.VerificationResult, error) {
	rec, err := s.ledger.HeaderFor(ctx, transferID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transfer header: %w", err))
	}
	res := &ports.VerificationResult{TransferID: transferID, Sum: decimal.Zero}
	if rec == nil {
		res.Detail = "transfer header not found"
		return res, nil
	}

	entries, err := s.ledger.EntriesFor(ctx, transferID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list postings: %w", err))
	}
	res.EntryCount = len(entries)
	res.Sum = domain.SumEntries(entries)
	res.Valid, res.Detail = checkPostings(rec, entries, res.Sum)
	return res, nil
}

func checkPostings(rec *domain.TransferRecord, entries []domain.LedgerEntry, sum decimal.Decimal) (bool, string) {
	if rec.Status != domain.TransferStatusCompleted {
		return false, fmt.Sprintf("transfer status is %s", rec.Status)
	}
	if len(entries) != 2 {
		return false, fmt.Sprintf("expected 2 postings, found %d", len(entries))
	}

	var debits, credits int
	for _, e := range entries {
		if e.TransferID != rec.ID {
			return false, fmt.Sprintf("posting %s references transfer %s", e.ID, e.TransferID)
		}
		switch e.EntryType {
		case domain.EntryTypeDebit:
			debits++
		case domain.EntryTypeCredit:
			credits++
			if !e.Amount.Equal(rec.Amount) {
				return false, fmt.Sprintf("credit %s does not match header amount %s", e.Amount, rec.Amount)
			}
		}
	}
	if debits != 1 || credits != 1 {
		return false, fmt.Sprintf("expected one debit and one credit, found %d and %d", debits, credits)
	}
	if sum.Abs().GreaterThan(domain.BalanceEpsilon) {
		return false, fmt.Sprintf("postings sum to %s", sum)
	}
	return true, "ok"
}

// Reconcile verifies every completed transfer created since the cutoff.
func (s *VerifierServiceImpl) Reconcile(ctx context.Context, since time.Time, limit int) (*ports.ReconcileReport, error) {
	records, err := s.ledger.ListCompletedSince(ctx, since, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list completed transfers: %w", err))
	}

	report := &ports.ReconcileReport{Since: since, Invalid: []ports.VerificationResult{}}
	for _, rec := range records {
		res, err := s.Verify(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		report.Checked++
		if res.Valid {
			report.Valid++
			continue
		}
		s.log.Warn().
			Str("tx_id", rec.ID.String()).
			Str("detail", res.Detail).
			Msg("ledger integrity violation")
		report.Invalid = append(report.Invalid, *res)
	}

	s.log.Info().
		Time("since", since).
		Int("checked", report.Checked).
		Int("invalid", len(report.Invalid)).
		Msg("reconciliation finished")
	return report, nil
}

// FindOrphans lists headers still pending after olderThan. It only reports;
// resolving them is an operator decision.
func (s *VerifierServiceImpl) FindOrphans(ctx context.Context, olderThan time.Duration, limit int) ([]domain.TransferRecord, error) {
	cutoff := s.now().Add(-olderThan)
	records, err := s.ledger.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list pending transfers: %w", err))
	}
	for _, rec := range records {
		s.log.Warn().
			Str("tx_id", rec.ID.String()).
			Str("sender_id", rec.SenderID).
			Time("created_at", rec.CreatedAt).
			Msg("orphaned pending transfer")
	}
	return records, nil
}
