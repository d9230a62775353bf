package postgres

import (
	"context"
	"errors"
	"fmt"
)

// errSchemaMissing is reported when the database answers but the ledger
// tables were never created.
var errSchemaMissing = errors.New("ledger schema not applied")

// HealthCheck implements ports.HealthChecker for PostgreSQL.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping checks connectivity and that the transfers table exists.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var ok bool
	if err := h.pool.QueryRow(ctx, `SELECT to_regclass('transfers') IS NOT NULL`).Scan(&ok); err != nil {
		return fmt.Errorf("query postgres: %w", err)
	}
	if !ok {
		return errSchemaMissing
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "postgresql"
}
