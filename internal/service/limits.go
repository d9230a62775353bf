package service

import (
	"time"

	"wallet-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
)

// Limits bounds what a sender may move. A zero Daily disables the daily cap.
type Limits struct {
	PerTransaction decimal.Decimal
	Daily          decimal.Decimal
	Location       *time.Location
}

// CheckAmount rejects non-positive amounts, amounts finer than a cent, and
// amounts over the per-transaction cap.
func (l Limits) CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(l.PerTransaction) || !amount.Equal(amount.Round(2)) {
		return apperror.ErrInvalidAmount(l.PerTransaction.StringFixed(2))
	}
	return nil
}

// DayStart returns local midnight of the day containing now.
func (l Limits) DayStart(now time.Time) time.Time {
	loc := l.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// CheckDaily fails when spent plus amount would pass the daily cap.
func (l Limits) CheckDaily(spent, amount decimal.Decimal) error {
	if !l.Daily.IsPositive() {
		return nil
	}
	if spent.Add(amount).GreaterThan(l.Daily) {
		remaining := decimal.Max(l.Daily.Sub(spent), decimal.Zero)
		return apperror.ErrLimitExceeded(l.Daily.StringFixed(2), remaining.StringFixed(2))
	}
	return nil
}
