package service

import (
	"context"
	"sync"
	"testing"
	"time"

	redisstore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type redisFixture struct {
	mr    *miniredis.Miniredis
	store *redisstore.Store
	svc   *TransferServiceImpl
}

// newRedisFixture wires the engine the way the server does for the redis
// driver: sequential executor plus the redis idempotency cache.
func newRedisFixture(t *testing.T, seed string) *redisFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisstore.NewStore(client, "wlg:", testCurrencies, dec(seed))
	repos := store.Repositories()
	cache := redisstore.NewIdempotencyCache(client, "wlg:")
	guard := NewIdempotencyGuard(repos.Ledger, cache, time.Hour, zerolog.Nop())
	svc := NewTransferService(repos, NewExecutor(store, zerolog.Nop()), guard, testPolicy(), zerolog.Nop())
	return &redisFixture{mr: mr, store: store, svc: svc}
}

func TestTransferService_Redis_ConcurrentDoubleSpend(t *testing.T) {
	f := newRedisFixture(t, "1000")
	ctx := context.Background()
	assert.Equal(t, "sequential", f.svc.executor.Name())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Transfer(ctx, ports.TransferRequest{
				SenderID: "alice", RecipientID: "friend", Amount: dec("800"), Currency: "USD",
			})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, apperror.KindInsufficientBalance, apperror.KindOf(err))
	}
	assert.Equal(t, 1, ok)

	repos := f.store.Repositories()
	w, err := repos.Wallets.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "200.00", w.Balance("USD").StringFixed(2))

	friend, err := repos.Wallets.Get(ctx, "friend")
	require.NoError(t, err)
	assert.Equal(t, "1800.00", friend.Balance("USD").StringFixed(2))

	pending, err := repos.Ledger.ListPendingBefore(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "every header is resolved")
}

func TestTransferService_Redis_ReplayServedFromCache(t *testing.T) {
	f := newRedisFixture(t, "1000")
	ctx := context.Background()
	req := ports.TransferRequest{
		SenderID: "alice", RecipientID: "bob", Amount: dec("100"), Currency: "USD", IdempotencyKey: strPtr("K1"),
	}

	first, err := f.svc.Transfer(ctx, req)
	require.NoError(t, err)
	assert.True(t, f.mr.Exists("wlg:idemcache:K1"))

	second, err := f.svc.Transfer(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, domain.TransferStatusCompleted, second.Record.Status)
	assert.Equal(t, "900.00", second.SenderBalance.StringFixed(2))

	entries, err := f.store.Repositories().Ledger.EntriesFor(ctx, first.Record.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestTransferService_Redis_ReplayWithoutCache(t *testing.T) {
	f := newRedisFixture(t, "1000")
	ctx := context.Background()
	req := ports.TransferRequest{
		SenderID: "alice", RecipientID: "bob", Amount: dec("100"), Currency: "USD", IdempotencyKey: strPtr("K2"),
	}

	first, err := f.svc.Transfer(ctx, req)
	require.NoError(t, err)

	f.mr.Del("wlg:idemcache:K2")

	second, err := f.svc.Transfer(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.Record.ID, second.Record.ID)
}

func TestTransferService_Redis_FailedAttemptIsReplayed(t *testing.T) {
	f := newRedisFixture(t, "1000")
	ctx := context.Background()
	repos := f.store.Repositories()

	// A concurrent debit lands between the pre-check and the conditional debit.
	rec := domain.NewTransferRecord("alice", "bob", "USD", dec("800"), nil, strPtr("K3"), domain.TransferStatusPending)
	_, err := repos.Wallets.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	ok, err := repos.Wallets.DebitIfSufficient(ctx, "alice", "USD", dec("900"))
	require.NoError(t, err)
	require.True(t, ok)

	exec := NewSequentialExecutor(repos, zerolog.Nop())
	assert.ErrorIs(t, exec.Execute(ctx, rec), domain.ErrInsufficientBalance)

	res, err := f.svc.Transfer(ctx, ports.TransferRequest{
		SenderID: "alice", RecipientID: "bob", Amount: dec("800"), Currency: "USD", IdempotencyKey: strPtr("K3"),
	})
	require.NoError(t, err)
	assert.True(t, res.IsDuplicate)
	assert.Equal(t, domain.TransferStatusFailed, res.Record.Status)
	require.NotNil(t, res.Record.FailureReason)
	assert.Equal(t, domain.FailureReasonInsufficient, *res.Record.FailureReason)
}

func TestTransferService_Redis_DailyLimit(t *testing.T) {
	f := newRedisFixture(t, "100000")
	f.svc.policy.Limits.Daily = dec("1000")
	ctx := context.Background()

	_, err := f.svc.Transfer(ctx, ports.TransferRequest{SenderID: "alice", RecipientID: "bob", Amount: dec("600"), Currency: "USD"})
	require.NoError(t, err)

	_, err = f.svc.Transfer(ctx, ports.TransferRequest{SenderID: "alice", RecipientID: "bob", Amount: dec("400.01"), Currency: "USD"})
	assert.Equal(t, apperror.KindLimitExceeded, apperror.KindOf(err))

	_, err = f.svc.Transfer(ctx, ports.TransferRequest{SenderID: "alice", RecipientID: "bob", Amount: dec("400"), Currency: "USD"})
	assert.NoError(t, err)
}
