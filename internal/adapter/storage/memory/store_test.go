package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore([]string{"USD", "EUR"}, decimal.Zero)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestWalletRepo_GetOrCreateAndGet(t *testing.T) {
	s := NewStore([]string{"USD", "EUR"}, dec("10"))
	repos := s.Repositories()
	ctx := context.Background()

	missing, err := repos.Wallets.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, missing)

	w, err := repos.Wallets.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, w.Balance("USD").Equal(dec("10")))
	assert.True(t, w.Balance("EUR").Equal(dec("10")))

	// returned wallets are copies
	w.Balances["USD"] = dec("9999")
	again, err := repos.Wallets.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, again.Balance("USD").Equal(dec("10")))
}

func TestWalletRepo_DebitIfSufficient(t *testing.T) {
	s := newTestStore()
	repos := s.Repositories()
	ctx := context.Background()

	require.NoError(t, repos.Wallets.Credit(ctx, "alice", "USD", dec("100")))

	ok, err := repos.Wallets.DebitIfSufficient(ctx, "alice", "USD", dec("100.01"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repos.Wallets.DebitIfSufficient(ctx, "alice", "USD", dec("100"))
	require.NoError(t, err)
	assert.True(t, ok)

	w, _ := repos.Wallets.Get(ctx, "alice")
	assert.True(t, w.Balance("USD").IsZero())

	ok, err = repos.Wallets.DebitIfSufficient(ctx, "nobody", "USD", dec("1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWalletRepo_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	s := newTestStore()
	repos := s.Repositories()
	ctx := context.Background()
	require.NoError(t, repos.Wallets.Credit(ctx, "alice", "USD", dec("1000")))

	var wg sync.WaitGroup
	var applied atomic.Int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repos.Wallets.DebitIfSufficient(ctx, "alice", "USD", dec("30"))
			if err == nil && ok {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(33), applied.Load())
	w, _ := repos.Wallets.Get(ctx, "alice")
	assert.True(t, w.Balance("USD").Equal(dec("10")))
}

func TestLedgerRepo_IdempotencyKeyUnique(t *testing.T) {
	s := newTestStore()
	ledger := s.Repositories().Ledger
	ctx := context.Background()
	key := "K1"

	first := domain.NewTransferRecord("alice", "bob", "USD", dec("5"), nil, &key, domain.TransferStatusCompleted)
	require.NoError(t, ledger.AppendHeader(ctx, first))

	second := domain.NewTransferRecord("alice", "bob", "USD", dec("5"), nil, &key, domain.TransferStatusCompleted)
	err := ledger.AppendHeader(ctx, second)
	assert.ErrorIs(t, err, domain.ErrDuplicateIdempotencyKey)

	got, err := ledger.HeaderByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}

func TestLedgerRepo_StatusTransitions(t *testing.T) {
	s := newTestStore()
	ledger := s.Repositories().Ledger
	ctx := context.Background()

	rec := domain.NewTransferRecord("alice", "bob", "USD", dec("5"), nil, nil, domain.TransferStatusPending)
	require.NoError(t, ledger.AppendHeader(ctx, rec))

	require.NoError(t, ledger.MarkFailed(ctx, rec.ID, domain.FailureReasonInsufficient))
	got, err := ledger.HeaderFor(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, domain.FailureReasonInsufficient, *got.FailureReason)

	err = ledger.MarkCompleted(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	err = ledger.MarkCompleted(ctx, domain.NewTransferRecord("a", "b", "USD", dec("1"), nil, nil, domain.TransferStatusPending).ID)
	assert.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func TestLedgerRepo_QueriesAndTotals(t *testing.T) {
	s := newTestStore()
	ledger := s.Repositories().Ledger
	ctx := context.Background()

	t1 := domain.NewTransferRecord("alice", "bob", "USD", dec("10"), nil, nil, domain.TransferStatusCompleted)
	t2 := domain.NewTransferRecord("alice", "carol", "USD", dec("15"), nil, nil, domain.TransferStatusCompleted)
	t3 := domain.NewTransferRecord("bob", "alice", "USD", dec("7"), nil, nil, domain.TransferStatusCompleted)
	t4 := domain.NewTransferRecord("alice", "bob", "EUR", dec("99"), nil, nil, domain.TransferStatusCompleted)
	t5 := domain.NewTransferRecord("alice", "bob", "USD", dec("1"), nil, nil, domain.TransferStatusPending)
	for _, rec := range []*domain.TransferRecord{t1, t2, t3, t4, t5} {
		require.NoError(t, ledger.AppendHeader(ctx, rec))
	}

	total, err := ledger.OutboundTotalSince(ctx, "alice", "USD", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("25")), "pending and other-currency transfers are excluded, got %s", total)

	total, err = ledger.OutboundTotalSince(ctx, "alice", "USD", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	hist, err := ledger.HistoryFor(ctx, "alice", 3)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, t5.ID, hist[0].ID, "newest first")

	completed, err := ledger.ListCompletedSince(ctx, time.Now().Add(-time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, completed, 4)

	pending, err := ledger.ListPendingBefore(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, t5.ID, pending[0].ID)
}

func TestStore_WithinTx_RollsBackOnError(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.Repositories().Wallets.Credit(ctx, "alice", "USD", dec("50")))

	rec := domain.NewTransferRecord("alice", "bob", "USD", dec("20"), nil, nil, domain.TransferStatusCompleted)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		require.NoError(t, repos.Ledger.AppendHeader(ctx, rec))
		debit, credit := domain.NewPostingPair(rec)
		require.NoError(t, repos.Ledger.AppendEntries(ctx, debit, credit))
		ok, err := repos.Wallets.DebitIfSufficient(ctx, "alice", "USD", rec.Amount)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	repos := s.Repositories()
	w, _ := repos.Wallets.Get(ctx, "alice")
	assert.True(t, w.Balance("USD").Equal(dec("50")))
	hdr, _ := repos.Ledger.HeaderFor(ctx, rec.ID)
	assert.Nil(t, hdr)
	entries, _ := repos.Ledger.EntriesFor(ctx, rec.ID)
	assert.Empty(t, entries)
}

func TestStore_WithinTx_Commits(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.Repositories().Wallets.Credit(ctx, "alice", "USD", dec("50")))

	rec := domain.NewTransferRecord("alice", "bob", "USD", dec("20"), nil, nil, domain.TransferStatusCompleted)
	err := s.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Ledger.AppendHeader(ctx, rec); err != nil {
			return err
		}
		debit, credit := domain.NewPostingPair(rec)
		if err := repos.Ledger.AppendEntries(ctx, debit, credit); err != nil {
			return err
		}
		if _, err := repos.Wallets.DebitIfSufficient(ctx, "alice", "USD", rec.Amount); err != nil {
			return err
		}
		return repos.Wallets.Credit(ctx, "bob", "USD", rec.Amount)
	})
	require.NoError(t, err)

	repos := s.Repositories()
	alice, _ := repos.Wallets.Get(ctx, "alice")
	bob, _ := repos.Wallets.Get(ctx, "bob")
	assert.True(t, alice.Balance("USD").Equal(dec("30")))
	assert.True(t, bob.Balance("USD").Equal(dec("20")))
	entries, _ := repos.Ledger.EntriesFor(ctx, rec.ID)
	assert.Len(t, entries, 2)
	assert.True(t, domain.SumEntries(entries).IsZero())
}

func TestAuditRepo_ListFiltersNewestFirst(t *testing.T) {
	s := newTestStore()
	audit := s.Repositories().Audit
	ctx := context.Background()
	base := time.Now().UTC()

	for i, action := range []domain.AuditAction{domain.AuditActionAuditView, domain.AuditActionBalanceAdjust, domain.AuditActionAuditView} {
		ev := &domain.AuditEvent{ActorID: "root", Action: action, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, audit.Append(ctx, ev))
	}

	views, err := audit.List(ctx, domain.AuditFilter{Action: domain.AuditActionAuditView})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.True(t, views[0].CreatedAt.After(views[1].CreatedAt))

	limited, err := audit.List(ctx, domain.AuditFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_Capabilities(t *testing.T) {
	caps := newTestStore().Capabilities()
	assert.True(t, caps.Transactions)
	assert.Equal(t, "memory", caps.Name)
}
