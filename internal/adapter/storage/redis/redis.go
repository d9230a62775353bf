package redis

import (
	"context"
	"fmt"

	"wallet-ledger/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Str("key_prefix", cfg.KeyPrefix).
		Msg("Redis connection established")

	return client, nil
}

// keyspace builds every key the adapters write, under one prefix.
type keyspace string

func (k keyspace) wallet(owner string) string       { return string(k) + "wallet:" + owner }
func (k keyspace) transfer(id string) string        { return string(k) + "transfer:" + id }
func (k keyspace) idem(key string) string           { return string(k) + "idem:" + key }
func (k keyspace) entries(transferID string) string { return string(k) + "entries:" + transferID }
func (k keyspace) history(owner string) string      { return string(k) + "history:" + owner }
func (k keyspace) byStatus(status string) string    { return string(k) + "transfers:" + status }
func (k keyspace) auditEvent(id string) string      { return string(k) + "audit:" + id }
func (k keyspace) auditIndex() string               { return string(k) + "audit" }
func (k keyspace) cache(key string) string          { return string(k) + "idemcache:" + key }
func (k keyspace) rateLimit(key string, window int64) string {
	return fmt.Sprintf("%sratelimit:%s:%d", string(k), key, window)
}

func (k keyspace) outbound(sender, currency string) string {
	return string(k) + "outbound:" + sender + ":" + currency
}
