package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransferPolicy holds the validation knobs of the transfer engine.
type TransferPolicy struct {
	Limits                   Limits
	Currencies               []string // first entry is the primary currency
	RequireExistingRecipient bool
}

// TransferServiceImpl implements ports.TransferService.
type TransferServiceImpl struct {
	repos    ports.Repositories
	executor ports.TransferExecutor
	guard    *IdempotencyGuard
	policy   TransferPolicy
	now      func() time.Time
	log      zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(
	repos ports.Repositories,
	executor ports.TransferExecutor,
	guard *IdempotencyGuard,
	policy TransferPolicy,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		repos:    repos,
		executor: executor,
		guard:    guard,
		policy:   policy,
		now:      time.Now,
		log:      log,
	}
}

// Transfer validates req, then hands the writes to the configured executor.
// Every validation failure happens before any durable write.
func (s *TransferServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	req.Currency = s.currency(req.Currency)

	// 1. Idempotency
	if req.IdempotencyKey != nil {
		prior, err := s.guard.Resolve(ctx, *req.IdempotencyKey, req)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			return s.replay(ctx, prior), nil
		}
	}

	// 2. Amount
	if err := s.policy.Limits.CheckAmount(req.Amount); err != nil {
		return nil, err
	}

	// 3. Parties and currency
	if req.SenderID == req.RecipientID {
		return nil, apperror.ErrSelfTransfer()
	}
	if !slices.Contains(s.policy.Currencies, req.Currency) {
		return nil, apperror.ErrUnsupportedCurrency(req.Currency)
	}
	if s.policy.RequireExistingRecipient {
		recipient, err := s.repos.Wallets.Get(ctx, req.RecipientID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get recipient wallet: %w", err))
		}
		if recipient == nil {
			return nil, apperror.ErrRecipientNotFound()
		}
	}

	// 4. Daily cap
	if s.policy.Limits.Daily.IsPositive() {
		since := s.policy.Limits.DayStart(s.now())
		spent, err := s.repos.Ledger.OutboundTotalSince(ctx, req.SenderID, req.Currency, since)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("sum outbound transfers: %w", err))
		}
		if err := s.policy.Limits.CheckDaily(spent, req.Amount); err != nil {
			return nil, err
		}
	}

	// 5. Balance pre-check. The conditional debit re-checks atomically.
	sender, err := s.repos.Wallets.GetOrCreate(ctx, req.SenderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get sender wallet: %w", err))
	}
	available := sender.Balance(req.Currency)
	if available.LessThan(req.Amount) {
		return nil, apperror.ErrInsufficientBalance(available.StringFixed(2), req.Amount.StringFixed(2))
	}

	rec := domain.NewTransferRecord(req.SenderID, req.RecipientID, req.Currency, req.Amount,
		req.Note, req.IdempotencyKey, domain.TransferStatusPending)

	if err := s.executor.Execute(ctx, rec); err != nil {
		return s.handleExecuteError(ctx, req, rec, err)
	}

	s.guard.Remember(ctx, rec)

	senderBalance, err := s.balance(ctx, req.SenderID, req.Currency)
	if err != nil {
		s.log.Warn().Err(err).Str("tx_id", rec.ID.String()).Msg("failed to read sender balance after transfer")
		senderBalance = available.Sub(req.Amount)
	}

	s.log.Info().
		Str("tx_id", rec.ID.String()).
		Str("sender_id", rec.SenderID).
		Str("recipient_id", rec.RecipientID).
		Str("amount", rec.Amount.StringFixed(2)).
		Str("currency", rec.Currency).
		Str("executor", s.executor.Name()).
		Msg("transfer completed")

	return &ports.TransferResult{
		Record:        rec,
		SenderBalance: senderBalance,
		Fee:           decimal.Zero,
	}, nil
}

func (s *TransferServiceImpl) handleExecuteError(ctx context.Context, req ports.TransferRequest, rec *domain.TransferRecord, err error) (*ports.TransferResult, error) {
	switch {
	case errors.Is(err, domain.ErrDuplicateIdempotencyKey) && req.IdempotencyKey != nil:
		// Lost the race for a first-time key: the winner's header decides.
		prior, rerr := s.guard.Resolve(ctx, *req.IdempotencyKey, req)
		if rerr != nil {
			return nil, rerr
		}
		if prior == nil {
			return nil, apperror.InternalError(fmt.Errorf("idempotency key %q taken but no header found", *req.IdempotencyKey))
		}
		return s.replay(ctx, prior), nil

	case errors.Is(err, domain.ErrInsufficientBalance):
		available, berr := s.balance(ctx, req.SenderID, req.Currency)
		if berr != nil {
			available = decimal.Zero
		}
		s.log.Info().
			Str("tx_id", rec.ID.String()).
			Str("sender_id", req.SenderID).
			Str("amount", req.Amount.StringFixed(2)).
			Msg("conditional debit rejected")
		return nil, apperror.ErrInsufficientBalance(available.StringFixed(2), req.Amount.StringFixed(2))
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return nil, err
	}
	return nil, apperror.InternalError(err)
}

// replay answers with the original header and performs no writes.
func (s *TransferServiceImpl) replay(ctx context.Context, prior *domain.TransferRecord) *ports.TransferResult {
	balance, err := s.balance(ctx, prior.SenderID, prior.Currency)
	if err != nil {
		s.log.Warn().Err(err).Str("tx_id", prior.ID.String()).Msg("failed to read sender balance for replay")
	}

	s.log.Info().
		Str("tx_id", prior.ID.String()).
		Str("status", string(prior.Status)).
		Msg("idempotent replay")

	return &ports.TransferResult{
		Record:        prior,
		IsDuplicate:   true,
		SenderBalance: balance,
		Fee:           decimal.Zero,
	}
}

func (s *TransferServiceImpl) balance(ctx context.Context, ownerID, currency string) (decimal.Decimal, error) {
	w, err := s.repos.Wallets.Get(ctx, ownerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get wallet %s: %w", ownerID, err)
	}
	return w.Balance(currency), nil
}

// currency normalises the requested currency; empty means primary.
func (s *TransferServiceImpl) currency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" && len(s.policy.Currencies) > 0 {
		return s.policy.Currencies[0]
	}
	return c
}
