package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferRecord_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status TransferStatus
		want   bool
	}{
		{"pending", TransferStatusPending, false},
		{"completed", TransferStatusCompleted, true},
		{"failed", TransferStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &TransferRecord{Status: tt.status}
			assert.Equal(t, tt.want, rec.IsTerminal())
		})
	}
}

func TestTransferRecord_MatchesRequest(t *testing.T) {
	rec := NewTransferRecord("alice", "bob", "USD", decimal.RequireFromString("100.00"), nil, nil, TransferStatusCompleted)

	tests := []struct {
		name      string
		sender    string
		recipient string
		currency  string
		amount    string
		want      bool
	}{
		{"identical", "alice", "bob", "USD", "100", true},
		{"different amount", "alice", "bob", "USD", "100.01", false},
		{"different recipient", "alice", "carol", "USD", "100", false},
		{"different sender", "dave", "bob", "USD", "100", false},
		{"different currency", "alice", "bob", "EUR", "100", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rec.MatchesRequest(tt.sender, tt.recipient, tt.currency, decimal.RequireFromString(tt.amount))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewTransferRecord_CompletedHasTimestamp(t *testing.T) {
	completed := NewTransferRecord("a", "b", "USD", decimal.NewFromInt(1), nil, nil, TransferStatusCompleted)
	pending := NewTransferRecord("a", "b", "USD", decimal.NewFromInt(1), nil, nil, TransferStatusPending)

	assert.NotNil(t, completed.CompletedAt)
	assert.Nil(t, pending.CompletedAt)
	assert.NotEqual(t, completed.ID, pending.ID)
}

func TestNewPostingPair_SumsToZero(t *testing.T) {
	rec := NewTransferRecord("alice", "bob", "USD", decimal.RequireFromString("42.17"), nil, nil, TransferStatusCompleted)
	debit, credit := NewPostingPair(rec)

	assert.Equal(t, EntryTypeDebit, debit.EntryType)
	assert.Equal(t, EntryTypeCredit, credit.EntryType)
	assert.Equal(t, "alice", debit.OwnerID)
	assert.Equal(t, "bob", credit.OwnerID)
	assert.Equal(t, "bob", debit.Counterparty)
	assert.Equal(t, rec.ID, debit.TransferID)
	assert.Equal(t, rec.ID, credit.TransferID)
	assert.True(t, SumEntries([]LedgerEntry{*debit, *credit}).IsZero())
}

func TestWallet_BalanceAndSnapshot(t *testing.T) {
	w := NewWallet("alice", []string{"USD", "EUR"}, decimal.NewFromInt(10))
	assert.True(t, w.Balance("USD").Equal(decimal.NewFromInt(10)))
	assert.True(t, w.Balance("GBP").IsZero())

	snap := w.Snapshot()
	w.Balances["USD"] = decimal.Zero
	assert.True(t, snap.Balance("USD").Equal(decimal.NewFromInt(10)), "snapshot must not share the balance map")

	var nilWallet *Wallet
	assert.True(t, nilWallet.Balance("USD").IsZero())
	assert.Nil(t, nilWallet.Snapshot())
}

func TestRole_Grant(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleUser, PermWalletRead, false},
		{RoleSupport, PermWalletRead, true},
		{RoleSupport, PermAuditRead, false},
		{RoleCompliance, PermAuditRead, true},
		{RoleCompliance, PermBalanceAdjust, false},
		{RoleFinance, PermLedgerVerify, true},
		{RoleSuperAdmin, PermBalanceAdjust, true},
		{RoleSuperAdmin, PermTransferReverse, true},
		{Role("intruder"), PermWalletRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Grant().Allows(tt.perm))
		})
	}
}

func TestRole_OnlyWildcardIsHighFriction(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleSupport, RoleCompliance, RoleFinance} {
		assert.False(t, r.Grant().HighFriction, string(r))
		assert.False(t, r.Grant().Wildcard, string(r))
	}
	assert.True(t, RoleSuperAdmin.Grant().HighFriction)
	assert.True(t, RoleSuperAdmin.Grant().Wildcard)
	assert.False(t, Role("root").Valid())
}

func TestAuditAction_IsHighRisk(t *testing.T) {
	assert.True(t, AuditActionBalanceAdjust.IsHighRisk())
	assert.True(t, AuditActionTransferReverse.IsHighRisk())
	assert.True(t, AuditActionComplianceOverride.IsHighRisk())
	assert.False(t, AuditActionAuditView.IsHighRisk())
	assert.False(t, AuditActionLedgerVerify.IsHighRisk())
}

func TestAuditEvent_DigestDetectsTampering(t *testing.T) {
	ev := &AuditEvent{
		ID:         uuid.New(),
		ActorID:    "admin-1",
		ActorRole:  RoleSuperAdmin,
		Action:     AuditActionBalanceAdjust,
		TargetType: "wallet",
		TargetID:   "alice",
		Reason:     "chargeback correction",
		Before:     json.RawMessage(`{"USD":"10"}`),
		After:      json.RawMessage(`{"USD":"60"}`),
		CreatedAt:  time.Now().UTC(),
	}
	ev.Seal()
	require.NotEmpty(t, ev.Digest)
	assert.True(t, ev.Intact())

	ev.After = json.RawMessage(`{"USD":"6000"}`)
	assert.False(t, ev.Intact())
}

func TestAuditFilter_Matches(t *testing.T) {
	now := time.Now().UTC()
	ev := &AuditEvent{ActorID: "fin-1", Action: AuditActionLedgerVerify, TargetType: "transfer", TargetID: "t1", CreatedAt: now}
	earlier := now.Add(-time.Hour)
	later := now.Add(time.Hour)

	assert.True(t, AuditFilter{}.Matches(ev))
	assert.True(t, AuditFilter{ActorID: "fin-1", From: &earlier, To: &later}.Matches(ev))
	assert.False(t, AuditFilter{ActorID: "other"}.Matches(ev))
	assert.False(t, AuditFilter{Action: AuditActionBalanceAdjust}.Matches(ev))
	assert.False(t, AuditFilter{TargetID: "t2"}.Matches(ev))
	assert.False(t, AuditFilter{From: &later}.Matches(ev))
	assert.False(t, AuditFilter{To: &earlier}.Matches(ev))
}
