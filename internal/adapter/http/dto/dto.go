package dto

import (
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
)

// TransferRequest is the request body for POST /transfers. The sender is the
// authenticated actor. AmountMinor is a pointer so that zero and negative
// values reach the amount rules instead of failing binding.
type TransferRequest struct {
	RecipientID string  `json:"recipient_id" binding:"required,owner_id"`
	AmountMinor *int64  `json:"amount_minor" binding:"required"`
	Currency    string  `json:"currency" binding:"omitempty,currency"`
	Note        *string `json:"note,omitempty" binding:"omitempty,max=140"`
}

// AdjustmentRequest is the request body for POST /admin/adjustments.
// Negative amounts debit the wallet.
type AdjustmentRequest struct {
	OwnerID     string `json:"owner_id" binding:"required,owner_id"`
	Currency    string `json:"currency" binding:"required,currency"`
	AmountMinor *int64 `json:"amount_minor" binding:"required"`
	// Reason is stored verbatim in the audit log and escaped on render.
	Reason string `json:"reason" binding:"required,max=500" sanitize:"trim"`
}

// TransferResponse is returned for fresh and replayed transfers.
type TransferResponse struct {
	TransactionID string  `json:"transaction_id"`
	SenderID      string  `json:"sender_id"`
	RecipientID   string  `json:"recipient_id"`
	Amount        string  `json:"amount"`
	Fee           string  `json:"fee"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	FailureReason *string `json:"failure_reason,omitempty"`
	SenderBalance string  `json:"sender_balance"`
	CreatedAt     string  `json:"created_at"`
	Duplicate     bool    `json:"duplicate"`
}

// TransferView is one row of a wallet history.
type TransferView struct {
	TransactionID string  `json:"transaction_id"`
	SenderID      string  `json:"sender_id"`
	RecipientID   string  `json:"recipient_id"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	FailureReason *string `json:"failure_reason,omitempty"`
	Note          *string `json:"note,omitempty"`
	CreatedAt     string  `json:"created_at"`
	CompletedAt   *string `json:"completed_at,omitempty"`
}

// BalanceResponse lists every currency balance of a wallet.
type BalanceResponse struct {
	OwnerID  string            `json:"owner_id"`
	Balances map[string]string `json:"balances"`
}

// AdjustmentResponse is returned after a balance correction.
type AdjustmentResponse struct {
	AdjustmentID  string            `json:"adjustment_id"`
	AuditEventID  string            `json:"audit_event_id"`
	OwnerID       string            `json:"owner_id"`
	Currency      string            `json:"currency"`
	Amount        string            `json:"amount"`
	BalanceBefore map[string]string `json:"balance_before"`
	BalanceAfter  map[string]string `json:"balance_after"`
}

// AuditEventView is one row of the audit log.
type AuditEventView struct {
	ID         string            `json:"id"`
	ActorID    string            `json:"actor_id"`
	ActorRole  string            `json:"actor_role"`
	Action     string            `json:"action"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	Reason     string            `json:"reason,omitempty"`
	Before     any               `json:"before,omitempty"`
	After      any               `json:"after,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty"`
	CreatedAt  string            `json:"created_at"`
	Intact     bool              `json:"intact"`
}

// AmountFromMinor converts integer cents to a decimal amount.
func AmountFromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatBalances(w *domain.Wallet) map[string]string {
	out := make(map[string]string)
	if w == nil {
		return out
	}
	for c, b := range w.Balances {
		out[c] = b.StringFixed(2)
	}
	return out
}

// NewTransferResponse converts a transfer result.
func NewTransferResponse(res *ports.TransferResult) TransferResponse {
	rec := res.Record
	return TransferResponse{
		TransactionID: rec.ID.String(),
		SenderID:      rec.SenderID,
		RecipientID:   rec.RecipientID,
		Amount:        rec.Amount.StringFixed(2),
		Fee:           res.Fee.StringFixed(2),
		Currency:      rec.Currency,
		Status:        string(rec.Status),
		FailureReason: rec.FailureReason,
		SenderBalance: res.SenderBalance.StringFixed(2),
		CreatedAt:     formatTime(rec.CreatedAt),
		Duplicate:     res.IsDuplicate,
	}
}

// NewTransferView converts a ledger header.
func NewTransferView(rec *domain.TransferRecord) TransferView {
	v := TransferView{
		TransactionID: rec.ID.String(),
		SenderID:      rec.SenderID,
		RecipientID:   rec.RecipientID,
		Amount:        rec.Amount.StringFixed(2),
		Currency:      rec.Currency,
		Status:        string(rec.Status),
		FailureReason: rec.FailureReason,
		Note:          rec.Note,
		CreatedAt:     formatTime(rec.CreatedAt),
	}
	if rec.CompletedAt != nil {
		s := formatTime(*rec.CompletedAt)
		v.CompletedAt = &s
	}
	return v
}

// NewBalanceResponse converts a wallet.
func NewBalanceResponse(w *domain.Wallet) BalanceResponse {
	return BalanceResponse{OwnerID: w.OwnerID, Balances: formatBalances(w)}
}

// NewAdjustmentResponse converts an adjustment result.
func NewAdjustmentResponse(res *ports.AdjustmentResult) AdjustmentResponse {
	return AdjustmentResponse{
		AdjustmentID:  res.AdjustmentID.String(),
		AuditEventID:  res.AuditEventID.String(),
		OwnerID:       res.Entry.OwnerID,
		Currency:      res.Entry.Currency,
		Amount:        res.Entry.Amount.StringFixed(2),
		BalanceBefore: formatBalances(res.Before),
		BalanceAfter:  formatBalances(res.After),
	}
}

// NewAuditEventView converts an audit event. Snapshots are passed through as raw JSON.
func NewAuditEventView(ev *domain.AuditEvent) AuditEventView {
	v := AuditEventView{
		ID:         ev.ID.String(),
		ActorID:    ev.ActorID,
		ActorRole:  string(ev.ActorRole),
		Action:     string(ev.Action),
		TargetType: ev.TargetType,
		TargetID:   ev.TargetID,
		Reason:     ev.Reason,
		Metadata:   ev.Metadata,
		IPAddress:  ev.IPAddress,
		CreatedAt:  formatTime(ev.CreatedAt),
		Intact:     ev.Intact(),
	}
	if len(ev.Before) > 0 {
		v.Before = ev.Before
	}
	if len(ev.After) > 0 {
		v.After = ev.After
	}
	return v
}
