package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType tags a ledger posting.
type EntryType string

const (
	EntryTypeDebit      EntryType = "debit"
	EntryTypeCredit     EntryType = "credit"
	EntryTypeAdjustment EntryType = "adjustment"
)

// BalanceEpsilon is the largest drift tolerated when summing the postings of a transfer.
var BalanceEpsilon = decimal.RequireFromString("0.001")

// LedgerEntry is one immutable posting in the journal.
// Amount is signed: negative for debits, positive for credits.
type LedgerEntry struct {
	ID           uuid.UUID       `json:"id"`
	TransferID   uuid.UUID       `json:"transfer_id"`
	OwnerID      string          `json:"owner_id"`
	EntryType    EntryType       `json:"entry_type"`
	Currency     string          `json:"currency"`
	Amount       decimal.Decimal `json:"amount"`
	Counterparty string          `json:"counterparty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewPostingPair builds the debit and credit postings for a transfer header.
func NewPostingPair(rec *TransferRecord) (*LedgerEntry, *LedgerEntry) {
	now := time.Now().UTC()
	debit := &LedgerEntry{
		ID:           uuid.New(),
		TransferID:   rec.ID,
		OwnerID:      rec.SenderID,
		EntryType:    EntryTypeDebit,
		Currency:     rec.Currency,
		Amount:       rec.Amount.Neg(),
		Counterparty: rec.RecipientID,
		CreatedAt:    now,
	}
	credit := &LedgerEntry{
		ID:           uuid.New(),
		TransferID:   rec.ID,
		OwnerID:      rec.RecipientID,
		EntryType:    EntryTypeCredit,
		Currency:     rec.Currency,
		Amount:       rec.Amount,
		Counterparty: rec.SenderID,
		CreatedAt:    now,
	}
	return debit, credit
}

// NewAdjustmentEntry builds the single-sided posting for a manual correction.
// The counterparty is the actor who performed it.
func NewAdjustmentEntry(adjustmentID uuid.UUID, ownerID, currency string, amount decimal.Decimal, actorID string) *LedgerEntry {
	return &LedgerEntry{
		ID:           uuid.New(),
		TransferID:   adjustmentID,
		OwnerID:      ownerID,
		EntryType:    EntryTypeAdjustment,
		Currency:     currency,
		Amount:       amount,
		Counterparty: actorID,
		CreatedAt:    time.Now().UTC(),
	}
}

// SumEntries adds the signed amounts of a set of postings.
func SumEntries(entries []LedgerEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	return sum
}
