package postgres

import (
	"context"
	"errors"

	"wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the query surface shared by the pool and an open transaction,
// so repositories run unchanged inside or outside WithinTx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is satisfied by *pgxpool.Pool and pgxmock.PgxPoolIface.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	uniqueViolation = "23505"

	// idempotencyKeyConstraint is named in Schema.
	idempotencyKeyConstraint = "transfers_idempotency_key_key"
)

// mapUniqueViolation turns a clash on the idempotency key into the domain
// sentinel. Other unique violations pass through unchanged.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == idempotencyKeyConstraint {
		return domain.ErrDuplicateIdempotencyKey
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}
