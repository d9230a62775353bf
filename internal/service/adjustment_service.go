package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AdjustmentServiceImpl implements ports.AdjustmentService, the only
// sanctioned path for out-of-band balance corrections.
type AdjustmentServiceImpl struct {
	store      ports.Store
	uow        ports.UnitOfWork // nil when the store has no transactions
	access     ports.AccessControl
	currencies []string
	log        zerolog.Logger
}

// NewAdjustmentService creates a new AdjustmentServiceImpl.
func NewAdjustmentService(store ports.Store, access ports.AccessControl, currencies []string, log zerolog.Logger) *AdjustmentServiceImpl {
	s := &AdjustmentServiceImpl{store: store, access: access, currencies: currencies, log: log}
	if uow, ok := store.(ports.UnitOfWork); ok && store.Capabilities().Transactions {
		s.uow = uow
	}
	return s
}

// Adjust applies a signed correction, writes one adjustment posting and one
// audit event. Authorization and the reason rule are checked before any write.
func (s *AdjustmentServiceImpl) Adjust(ctx context.Context, actor *domain.Actor, req ports.AdjustmentRequest) (*ports.AdjustmentResult, error) {
	if err := s.access.Authorize(actor, ports.Requirement{
		Permission: domain.PermBalanceAdjust,
		Roles:      []domain.Role{domain.RoleSuperAdmin},
	}); err != nil {
		return nil, err
	}

	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.OwnerID == "" {
		return nil, apperror.Validation("owner id is required")
	}
	if !slices.Contains(s.currencies, req.Currency) {
		return nil, apperror.ErrUnsupportedCurrency(req.Currency)
	}
	if req.Amount.IsZero() || !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, apperror.Validation("adjustment amount must be non-zero with at most two decimal places")
	}
	if err := checkReason(domain.AuditActionBalanceAdjust, req.Reason); err != nil {
		return nil, err
	}

	adjustmentID := uuid.New()
	var result *ports.AdjustmentResult
	apply := func(ctx context.Context, repos ports.Repositories) error {
		res, err := s.apply(ctx, repos, actor, adjustmentID, req)
		result = res
		return err
	}

	var err error
	if s.uow != nil {
		err = s.uow.WithinTx(ctx, apply)
	} else {
		err = apply(ctx, s.store.Repositories())
	}
	if err != nil {
		return nil, s.mapError(ctx, req, err)
	}

	s.log.Info().
		Str("adjustment_id", adjustmentID.String()).
		Str("actor_id", actor.ID).
		Str("owner_id", req.OwnerID).
		Str("currency", req.Currency).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("balance adjusted")
	return result, nil
}

// apply mutates the wallet first so that, without transactions, a rejected
// debit leaves no posting or event behind.
func (s *AdjustmentServiceImpl) apply(ctx context.Context, repos ports.Repositories, actor *domain.Actor, id uuid.UUID, req ports.AdjustmentRequest) (*ports.AdjustmentResult, error) {
	before, err := repos.Wallets.GetOrCreate(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	before = before.Snapshot()

	if req.Amount.IsNegative() {
		ok, err := repos.Wallets.DebitIfSufficient(ctx, req.OwnerID, req.Currency, req.Amount.Neg())
		if err != nil {
			return nil, fmt.Errorf("debit wallet: %w", err)
		}
		if !ok {
			return nil, domain.ErrInsufficientBalance
		}
	} else if err := repos.Wallets.Credit(ctx, req.OwnerID, req.Currency, req.Amount); err != nil {
		return nil, fmt.Errorf("credit wallet: %w", err)
	}

	entry := domain.NewAdjustmentEntry(id, req.OwnerID, req.Currency, req.Amount, actor.ID)
	if err := repos.Ledger.AppendAdjustment(ctx, entry); err != nil {
		return nil, fmt.Errorf("append adjustment posting: %w", err)
	}

	after, err := repos.Wallets.Get(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("reload wallet: %w", err)
	}

	ev, err := newAuditEvent(ports.RecordInput{
		Actor:      *actor,
		Action:     domain.AuditActionBalanceAdjust,
		TargetType: "wallet",
		TargetID:   req.OwnerID,
		Reason:     req.Reason,
		Before:     before,
		After:      after,
		Metadata: map[string]string{
			"adjustment_id": id.String(),
			"currency":      req.Currency,
			"amount":        req.Amount.StringFixed(2),
			"justification": actor.Justification,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := repos.Audit.Append(ctx, ev); err != nil {
		return nil, fmt.Errorf("append audit event: %w", err)
	}
	logAuditEvent(s.log, ev)

	return &ports.AdjustmentResult{
		AdjustmentID: id,
		Entry:        entry,
		Before:       before,
		After:        after,
		AuditEventID: ev.ID,
	}, nil
}

func (s *AdjustmentServiceImpl) mapError(ctx context.Context, req ports.AdjustmentRequest, err error) error {
	if errors.Is(err, domain.ErrInsufficientBalance) {
		available := "0.00"
		if w, werr := s.store.Repositories().Wallets.Get(ctx, req.OwnerID); werr == nil {
			available = w.Balance(req.Currency).StringFixed(2)
		}
		return apperror.ErrInsufficientBalance(available, req.Amount.Neg().StringFixed(2))
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	s.log.Error().Err(err).Str("owner_id", req.OwnerID).Msg("balance adjustment failed")
	return apperror.InternalError(err)
}
