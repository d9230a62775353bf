package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditServiceImpl implements ports.AuditService. Writes are synchronous:
// a privileged action is not reported done until its event is stored.
type AuditServiceImpl struct {
	store ports.AuditStore
	log   zerolog.Logger
}

// NewAuditService creates a new audit service.
func NewAuditService(store ports.AuditStore, log zerolog.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{store: store, log: log}
}

// Record validates, seals and stores one audit event.
func (s *AuditServiceImpl) Record(ctx context.Context, in ports.RecordInput) (*domain.AuditEvent, error) {
	ev, err := newAuditEvent(in)
	if err != nil {
		return nil, err
	}

	if err := s.store.Append(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("action", string(ev.Action)).
			Str("actor_id", ev.ActorID).
			Msg("failed to persist audit event")
		return nil, apperror.InternalError(fmt.Errorf("append audit event: %w", err))
	}

	logAuditEvent(s.log, ev)
	return ev, nil
}

// List returns stored events matching the filter, newest first.
func (s *AuditServiceImpl) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	events, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list audit events: %w", err))
	}
	return events, nil
}

// checkReason enforces the written justification on high-risk actions.
func checkReason(action domain.AuditAction, reason string) error {
	if !action.IsHighRisk() {
		return nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(reason)) < domain.MinReasonLength {
		return apperror.Validation(
			fmt.Sprintf("%s requires a reason of at least %d characters", action, domain.MinReasonLength),
		).WithDetail("min_length", domain.MinReasonLength)
	}
	return nil
}

// newAuditEvent builds and seals an event. Adjustments call it directly so the
// event can be written through the same unit of work as the balance change.
func newAuditEvent(in ports.RecordInput) (*domain.AuditEvent, error) {
	if in.Action == "" {
		return nil, apperror.Validation("audit action is required")
	}
	if err := checkReason(in.Action, in.Reason); err != nil {
		return nil, err
	}

	before, err := snapshot(in.Before)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encode before state: %w", err))
	}
	after, err := snapshot(in.After)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encode after state: %w", err))
	}

	ev := &domain.AuditEvent{
		ID:         uuid.New(),
		ActorID:    in.Actor.ID,
		ActorRole:  in.Actor.Role,
		Action:     in.Action,
		TargetType: in.TargetType,
		TargetID:   in.TargetID,
		Reason:     strings.TrimSpace(in.Reason),
		Before:     before,
		After:      after,
		Metadata:   in.Metadata,
		IPAddress:  in.Actor.IPAddress,
		UserAgent:  in.Actor.UserAgent,
		// TIMESTAMPTZ keeps microseconds; the digest must survive a round trip.
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	ev.Seal()
	return ev, nil
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil, err
	}
	return b, nil
}

func logAuditEvent(log zerolog.Logger, ev *domain.AuditEvent) {
	log.Info().
		Str("audit_id", ev.ID.String()).
		Str("action", string(ev.Action)).
		Str("actor_id", ev.ActorID).
		Str("actor_role", string(ev.ActorRole)).
		Str("target_type", ev.TargetType).
		Str("target_id", ev.TargetID).
		Str("ip", ev.IPAddress).
		Msg("audit")
}
