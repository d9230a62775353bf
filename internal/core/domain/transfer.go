package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferStatus represents the lifecycle state of a transfer header.
type TransferStatus string

const (
	// TransferStatusPending only exists on the sequential path, between the
	// durable header write and its resolution.
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
)

// FailureReasonInsufficient is recorded on a header whose conditional debit did not apply.
const FailureReasonInsufficient = "insufficient balance or concurrent modification"

// TransferRecord is the ledger header of one logical transfer attempt.
type TransferRecord struct {
	ID             uuid.UUID       `json:"id"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	SenderID       string          `json:"sender_id"`
	RecipientID    string          `json:"recipient_id"`
	Status         TransferStatus  `json:"status"`
	FailureReason  *string         `json:"failure_reason,omitempty"`
	Note           *string         `json:"note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// IsTerminal returns true once the header can no longer change.
func (t *TransferRecord) IsTerminal() bool {
	return t.Status == TransferStatusCompleted || t.Status == TransferStatusFailed
}

// MatchesRequest reports whether a replay carries the same defining parameters.
func (t *TransferRecord) MatchesRequest(senderID, recipientID, currency string, amount decimal.Decimal) bool {
	return t.SenderID == senderID &&
		t.RecipientID == recipientID &&
		t.Currency == currency &&
		t.Amount.Equal(amount)
}

// NewTransferRecord builds a header with a fresh id.
func NewTransferRecord(senderID, recipientID, currency string, amount decimal.Decimal, note, idempotencyKey *string, status TransferStatus) *TransferRecord {
	now := time.Now().UTC()
	rec := &TransferRecord{
		ID:             uuid.New(),
		IdempotencyKey: idempotencyKey,
		Currency:       currency,
		Amount:         amount,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Status:         status,
		Note:           note,
		CreatedAt:      now,
	}
	if status == TransferStatusCompleted {
		rec.CompletedAt = &now
	}
	return rec
}
