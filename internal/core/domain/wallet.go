package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds the per-currency balances of a single owner.
type Wallet struct {
	OwnerID   string                     `json:"owner_id"`
	Balances  map[string]decimal.Decimal `json:"balances"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// NewWallet returns a wallet with every currency set to seed.
func NewWallet(ownerID string, currencies []string, seed decimal.Decimal) *Wallet {
	now := time.Now().UTC()
	w := &Wallet{
		OwnerID:   ownerID,
		Balances:  make(map[string]decimal.Decimal, len(currencies)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, c := range currencies {
		w.Balances[c] = seed
	}
	return w
}

// Balance returns the balance for currency, zero when the field is absent.
func (w *Wallet) Balance(currency string) decimal.Decimal {
	if w == nil {
		return decimal.Zero
	}
	if b, ok := w.Balances[currency]; ok {
		return b
	}
	return decimal.Zero
}

// Snapshot copies the wallet so later mutations do not leak into audit records.
func (w *Wallet) Snapshot() *Wallet {
	if w == nil {
		return nil
	}
	cp := *w
	cp.Balances = make(map[string]decimal.Decimal, len(w.Balances))
	for k, v := range w.Balances {
		cp.Balances[k] = v
	}
	return &cp
}
