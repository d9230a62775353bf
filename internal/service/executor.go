package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// NewExecutor picks the transfer strategy once, from what the store can do.
func NewExecutor(store ports.Store, log zerolog.Logger) ports.TransferExecutor {
	caps := store.Capabilities()
	var exec ports.TransferExecutor
	if uow, ok := store.(ports.UnitOfWork); ok && caps.Transactions {
		exec = NewTransactionalExecutor(uow, log)
	} else {
		exec = NewSequentialExecutor(store.Repositories(), log)
	}

	log.Info().
		Str("store", caps.Name).
		Bool("transactions", caps.Transactions).
		Str("executor", exec.Name()).
		Msg("transfer executor selected")
	return exec
}

// TransactionalExecutor writes a transfer as one all-or-nothing unit of work.
type TransactionalExecutor struct {
	uow ports.UnitOfWork
	log zerolog.Logger
}

// NewTransactionalExecutor creates an executor for stores with multi-record transactions.
func NewTransactionalExecutor(uow ports.UnitOfWork, log zerolog.Logger) *TransactionalExecutor {
	return &TransactionalExecutor{uow: uow, log: log}
}

// Name implements ports.TransferExecutor.
func (e *TransactionalExecutor) Name() string { return "transactional" }

// Execute inserts the completed header and both postings, then debits and
// credits. A failed conditional debit aborts the unit with
// domain.ErrInsufficientBalance; nothing is visible to other readers.
func (e *TransactionalExecutor) Execute(ctx context.Context, rec *domain.TransferRecord) error {
	now := time.Now().UTC()
	rec.Status = domain.TransferStatusCompleted
	rec.CompletedAt = &now

	err := e.uow.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Ledger.AppendHeader(ctx, rec); err != nil {
			return err
		}
		debit, credit := domain.NewPostingPair(rec)
		if err := repos.Ledger.AppendEntries(ctx, debit, credit); err != nil {
			return fmt.Errorf("append postings: %w", err)
		}
		ok, err := repos.Wallets.DebitIfSufficient(ctx, rec.SenderID, rec.Currency, rec.Amount)
		if err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
		if !ok {
			return domain.ErrInsufficientBalance
		}
		if err := repos.Wallets.Credit(ctx, rec.RecipientID, rec.Currency, rec.Amount); err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	rec.Status = domain.TransferStatusFailed
	rec.CompletedAt = nil
	if errors.Is(err, domain.ErrDuplicateIdempotencyKey) || errors.Is(err, domain.ErrInsufficientBalance) {
		return err
	}
	e.log.Error().Err(err).Str("tx_id", rec.ID.String()).Msg("transfer rolled back")
	return apperror.InternalError(fmt.Errorf("transfer %s: %w", rec.ID, err))
}

// SequentialExecutor runs on stores that only offer single-record atomicity.
// The header is written first and always resolved: a failed debit marks it
// failed, and so does any fault after the debit. In the latter case the
// sender has been debited without a matching credit.
type SequentialExecutor struct {
	repos ports.Repositories
	log   zerolog.Logger
}

// NewSequentialExecutor creates the fallback executor.
func NewSequentialExecutor(repos ports.Repositories, log zerolog.Logger) *SequentialExecutor {
	return &SequentialExecutor{repos: repos, log: log}
}

// Name implements ports.TransferExecutor.
func (e *SequentialExecutor) Name() string { return "sequential" }

// Execute implements ports.TransferExecutor.
func (e *SequentialExecutor) Execute(ctx context.Context, rec *domain.TransferRecord) error {
	rec.Status = domain.TransferStatusPending
	rec.CompletedAt = nil

	// The header reserves the idempotency key and the transfer id.
	if err := e.repos.Ledger.AppendHeader(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			return err
		}
		return apperror.InternalError(fmt.Errorf("append header: %w", err))
	}

	ok, err := e.repos.Wallets.DebitIfSufficient(ctx, rec.SenderID, rec.Currency, rec.Amount)
	if err != nil {
		e.fail(ctx, rec, "debit error")
		return apperror.InternalError(fmt.Errorf("debit sender: %w", err))
	}
	if !ok {
		e.fail(ctx, rec, domain.FailureReasonInsufficient)
		return domain.ErrInsufficientBalance
	}

	debit, credit := domain.NewPostingPair(rec)
	if err := e.repos.Ledger.AppendEntries(ctx, debit, credit); err != nil {
		return e.incomplete(ctx, rec, "append postings", err)
	}
	if err := e.repos.Wallets.Credit(ctx, rec.RecipientID, rec.Currency, rec.Amount); err != nil {
		return e.incomplete(ctx, rec, "credit recipient", err)
	}
	if err := e.repos.Ledger.MarkCompleted(ctx, rec.ID); err != nil {
		return e.incomplete(ctx, rec, "mark completed", err)
	}

	now := time.Now().UTC()
	rec.Status = domain.TransferStatusCompleted
	rec.CompletedAt = &now
	return nil
}

// incomplete handles a fault after the debit applied.
func (e *SequentialExecutor) incomplete(ctx context.Context, rec *domain.TransferRecord, step string, cause error) error {
	e.log.Error().Err(cause).
		Str("tx_id", rec.ID.String()).
		Str("sender_id", rec.SenderID).
		Str("recipient_id", rec.RecipientID).
		Str("amount", rec.Amount.String()).
		Str("step", step).
		Msg("sender debited but transfer not completed")
	e.fail(ctx, rec, "system failure: "+step)
	return apperror.ErrTransferIncomplete(fmt.Errorf("%s: %w", step, cause))
}

// fail marks the header failed. It outlives the caller's context so a
// cancelled request still resolves its header.
func (e *SequentialExecutor) fail(ctx context.Context, rec *domain.TransferRecord, reason string) {
	rec.Status = domain.TransferStatusFailed
	rec.FailureReason = &reason
	now := time.Now().UTC()
	rec.CompletedAt = &now

	if err := e.repos.Ledger.MarkFailed(context.WithoutCancel(ctx), rec.ID, reason); err != nil {
		e.log.Error().Err(err).
			Str("tx_id", rec.ID.String()).
			Str("reason", reason).
			Msg("failed to mark transfer failed; header left pending")
	}
}
