package postgres

import (
	"context"
	"errors"
	"testing"

	"wallet-ledger/internal/core/ports"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Capabilities(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewStore(mock, testCurrencies, decimal.Zero)
	caps := s.Capabilities()
	assert.Equal(t, "postgres", caps.Name)
	assert.True(t, caps.Transactions)
}

func TestStore_WithinTx_Commit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewStore(mock, testCurrencies, decimal.Zero)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET balance = balance -").
		WithArgs("10", "alice", "USD").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = s.WithinTx(context.Background(), func(ctx context.Context, repos ports.Repositories) error {
		ok, err := repos.Wallets.DebitIfSufficient(ctx, "alice", "USD", decimal.NewFromInt(10))
		if err != nil {
			return err
		}
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_RollbackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewStore(mock, testCurrencies, decimal.Zero)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = s.WithinTx(context.Background(), func(ctx context.Context, repos ports.Repositories) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewStore(mock, testCurrencies, decimal.Zero)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err = s.WithinTx(context.Background(), func(ctx context.Context, repos ports.Repositories) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.Contains(t, err.Error(), "begin tx")
}
