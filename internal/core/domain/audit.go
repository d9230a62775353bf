package domain

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// AuditAction names a privileged action.
type AuditAction string

const (
	AuditActionBalanceAdjust      AuditAction = "balance.adjust"
	AuditActionTransferReverse    AuditAction = "transfer.reverse"
	AuditActionComplianceOverride AuditAction = "compliance.override"
	AuditActionRoleGrant          AuditAction = "role.grant"
	AuditActionAuditView          AuditAction = "audit.view"
	AuditActionLedgerVerify       AuditAction = "ledger.verify"
	AuditActionLedgerReconcile    AuditAction = "ledger.reconcile"
	AuditActionWalletInspect      AuditAction = "wallet.inspect"
)

// MinReasonLength is the shortest justification accepted for a high-risk action.
const MinReasonLength = 10

// IsHighRisk reports whether the action needs a written reason.
func (a AuditAction) IsHighRisk() bool {
	switch a {
	case AuditActionBalanceAdjust, AuditActionTransferReverse,
		AuditActionComplianceOverride, AuditActionRoleGrant:
		return true
	}
	return false
}

// AuditEvent records a single privileged action. Rows are append-only.
type AuditEvent struct {
	ID         uuid.UUID         `json:"id"`
	ActorID    string            `json:"actor_id"`
	ActorRole  Role              `json:"actor_role"`
	Action     AuditAction       `json:"action"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	Reason     string            `json:"reason,omitempty"`
	Before     json.RawMessage   `json:"before,omitempty"`
	After      json.RawMessage   `json:"after,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Digest     string            `json:"digest"`
}

// ComputeDigest returns the BLAKE2b-256 hex digest over the event content.
// Metadata is excluded so stores that cannot preserve map ordering still verify.
func (e *AuditEvent) ComputeDigest() string {
	parts := []string{
		e.ID.String(),
		e.ActorID,
		string(e.ActorRole),
		string(e.Action),
		e.TargetType,
		e.TargetID,
		e.Reason,
		string(e.Before),
		string(e.After),
		e.IPAddress,
		e.UserAgent,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Seal stamps the digest on the event.
func (e *AuditEvent) Seal() {
	e.Digest = e.ComputeDigest()
}

// Intact reports whether the stored digest still matches the content.
func (e *AuditEvent) Intact() bool {
	return e.Digest != "" && e.Digest == e.ComputeDigest()
}

// AuditFilter narrows an audit log query. Zero values are ignored.
type AuditFilter struct {
	ActorID    string
	Action     AuditAction
	TargetType string
	TargetID   string
	From       *time.Time
	To         *time.Time
	Limit      int
}

// Matches reports whether ev passes every non-zero field of the filter.
func (f AuditFilter) Matches(ev *AuditEvent) bool {
	if f.ActorID != "" && ev.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && ev.Action != f.Action {
		return false
	}
	if f.TargetType != "" && ev.TargetType != f.TargetType {
		return false
	}
	if f.TargetID != "" && ev.TargetID != f.TargetID {
		return false
	}
	if f.From != nil && ev.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && ev.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
