// Package bootstrap opens the configured storage backend for the binaries.
package bootstrap

import (
	"context"
	"fmt"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/storage/memory"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Backend is an opened store plus the optional Redis client used for the
// idempotency cache and rate limiting.
type Backend struct {
	Store          ports.Store
	Redis          *goredis.Client // nil when Redis is unavailable
	HealthCheckers []ports.HealthChecker

	closers []func()
}

// Close releases every connection opened by Open, in reverse order.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// IdempotencyCache returns the Redis cache, or nil without Redis.
func (b *Backend) IdempotencyCache(prefix string) ports.IdempotencyCache {
	if b.Redis == nil {
		return nil
	}
	return redisStorage.NewIdempotencyCache(b.Redis, prefix)
}

// RateLimiter returns the Redis limiter, or nil without Redis.
func (b *Backend) RateLimiter(prefix string) ports.RateLimiter {
	if b.Redis == nil {
		return nil
	}
	return redisStorage.NewRateLimitStore(b.Redis, prefix)
}

// Open connects the store selected by cfg.Store.Driver. Redis is required by
// the redis driver; for the others it is optional and only its absence is
// logged.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	seed, err := cfg.Wallet.SeedAmount()
	if err != nil {
		return nil, fmt.Errorf("wallet seed: %w", err)
	}
	currencies := cfg.Wallet.Currencies
	b := &Backend{}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	switch {
	case err == nil:
		b.Redis = rdb
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.HealthCheckers = append(b.HealthCheckers, redisStorage.NewHealthCheck(rdb))
	case cfg.Store.Driver == config.DriverRedis:
		return nil, fmt.Errorf("connecting to redis: %w", err)
	default:
		log.Warn().Err(err).Msg("Redis unavailable, running without idempotency cache and rate limiting")
	}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		if cfg.Database.ApplySchema {
			if err := pgStorage.ApplySchema(ctx, pool); err != nil {
				b.Close()
				return nil, err
			}
			log.Info().Msg("PostgreSQL schema applied")
		}
		b.Store = pgStorage.NewStore(pool, currencies, seed)
		b.HealthCheckers = append(b.HealthCheckers, pgStorage.NewHealthCheck(pool))

	case config.DriverRedis:
		b.Store = redisStorage.NewStore(b.Redis, cfg.Redis.KeyPrefix, currencies, seed)

	case config.DriverMemory:
		store := memory.NewStore(currencies, seed)
		b.Store = store
		b.HealthCheckers = append(b.HealthCheckers, store)

	default:
		b.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	log.Info().
		Str("driver", b.Store.Capabilities().Name).
		Bool("transactions", b.Store.Capabilities().Transactions).
		Bool("redis", b.Redis != nil).
		Msg("Store opened")
	return b, nil
}
