package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// IdempotencyGuard maps client keys to the transfer they first produced.
// The cache is a best-effort fast path; the ledger's unique key is the source of truth.
type IdempotencyGuard struct {
	ledger ports.LedgerStore
	cache  ports.IdempotencyCache
	ttl    time.Duration
	log    zerolog.Logger
}

// NewIdempotencyGuard creates a guard. cache may be nil.
func NewIdempotencyGuard(ledger ports.LedgerStore, cache ports.IdempotencyCache, ttl time.Duration, log zerolog.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{ledger: ledger, cache: cache, ttl: ttl, log: log}
}

// Check returns the header recorded for key, or nil when the key is unused.
func (g *IdempotencyGuard) Check(ctx context.Context, key string) (*domain.TransferRecord, error) {
	// Layer 1: Redis
	if g.cache != nil {
		cached, err := g.cache.Get(ctx, key)
		if err != nil {
			g.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to ledger")
		}
		if cached != nil {
			var rec domain.TransferRecord
			if err := json.Unmarshal(cached, &rec); err == nil {
				return &rec, nil
			}
			g.log.Warn().Str("key", key).Msg("discarding undecodable idempotency cache entry")
		}
	}

	// Layer 2: ledger
	rec, err := g.ledger.HeaderByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ledger idempotency check: %w", err))
	}
	return rec, nil
}

// DetectCollision reports whether req reuses rec's key with different parameters.
func DetectCollision(rec *domain.TransferRecord, req ports.TransferRequest) bool {
	return !rec.MatchesRequest(req.SenderID, req.RecipientID, req.Currency, req.Amount)
}

// Resolve returns nil when the transfer should proceed, the prior header when
// req is a replay, and an IdempotencyCollision error when the key was used
// for a different transfer.
func (g *IdempotencyGuard) Resolve(ctx context.Context, key string, req ports.TransferRequest) (*domain.TransferRecord, error) {
	rec, err := g.Check(ctx, key)
	if err != nil || rec == nil {
		return nil, err
	}
	if DetectCollision(rec, req) {
		g.log.Warn().
			Str("key", key).
			Str("original_tx_id", rec.ID.String()).
			Str("sender_id", req.SenderID).
			Msg("idempotency key reused with different parameters")
		return nil, apperror.ErrIdempotencyCollision(rec.ID.String())
	}
	return rec, nil
}

// Remember caches a resolved header under its key. Failures are only logged.
func (g *IdempotencyGuard) Remember(ctx context.Context, rec *domain.TransferRecord) {
	if g.cache == nil || rec.IdempotencyKey == nil || !rec.IsTerminal() {
		return
	}
	b, err := json.Marshal(rec)
	if err != nil {
		g.log.Warn().Err(err).Str("tx_id", rec.ID.String()).Msg("failed to encode transfer for idempotency cache")
		return
	}
	if err := g.cache.Set(ctx, *rec.IdempotencyKey, b, g.ttl); err != nil {
		g.log.Warn().Err(err).Str("key", *rec.IdempotencyKey).Msg("failed to cache idempotency in redis")
	}
}
