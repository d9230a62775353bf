package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Wallets are hashes: one "bal:<currency>" field per currency holding the
// balance in minor units, plus created_at and updated_at.
const (
	balanceField = "bal:"
	createdField = "created_at"
	updatedField = "updated_at"
)

// debitIfSufficient decrements a balance field only if it covers the amount.
// KEYS[1] wallet hash. ARGV: field, amount, negated amount, updated_at.
var debitIfSufficient = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if not cur then
	return 0
end
if tonumber(cur) < tonumber(ARGV[2]) then
	return 0
end
redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[3])
redis.call('HSET', KEYS[1], 'updated_at', ARGV[4])
return 1
`)

// WalletRepo implements ports.WalletStore on Redis hashes.
type WalletRepo struct {
	client     *goredis.Client
	keys       keyspace
	currencies []string
	seed       decimal.Decimal
}

// NewWalletRepo creates a Redis-backed wallet store.
func NewWalletRepo(client *goredis.Client, prefix string, currencies []string, seed decimal.Decimal) *WalletRepo {
	return &WalletRepo{client: client, keys: keyspace(prefix), currencies: currencies, seed: seed}
}

// ensure creates any missing currency field with the seed balance.
func (r *WalletRepo) ensure(ctx context.Context, ownerID string) error {
	key := r.keys.wallet(ownerID)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	seed := toMinor(r.seed)

	_, err := r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		for _, c := range r.currencies {
			p.HSetNX(ctx, key, balanceField+c, seed)
		}
		p.HSetNX(ctx, key, createdField, now)
		p.HSetNX(ctx, key, updatedField, now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}
	return nil
}

// GetOrCreate returns the wallet, creating it with seeded balances if needed.
func (r *WalletRepo) GetOrCreate(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	if err := r.ensure(ctx, ownerID); err != nil {
		return nil, err
	}
	return r.Get(ctx, ownerID)
}

// Get returns the wallet or nil, nil when it does not exist.
func (r *WalletRepo) Get(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	fields, err := r.client.HGetAll(ctx, r.keys.wallet(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	w := &domain.Wallet{OwnerID: ownerID, Balances: make(map[string]decimal.Decimal)}
	for k, v := range fields {
		switch {
		case strings.HasPrefix(k, balanceField):
			minor, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse balance %s=%q: %w", k, v, err)
			}
			w.Balances[strings.TrimPrefix(k, balanceField)] = fromMinor(minor)
		case k == createdField:
			w.CreatedAt, _ = time.Parse(time.RFC3339Nano, v)
		case k == updatedField:
			w.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v)
		}
	}
	return w, nil
}

// Credit adds amount to the owner's balance, creating the wallet if needed.
func (r *WalletRepo) Credit(ctx context.Context, ownerID, currency string, amount decimal.Decimal) error {
	if err := r.ensure(ctx, ownerID); err != nil {
		return err
	}
	key := r.keys.wallet(ownerID)
	_, err := r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HIncrBy(ctx, key, balanceField+currency, toMinor(amount))
		p.HSet(ctx, key, updatedField, time.Now().UTC().Format(time.RFC3339Nano))
		return nil
	})
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}

// DebitIfSufficient runs the check and the decrement as one script.
// A missing wallet or currency field reports false.
func (r *WalletRepo) DebitIfSufficient(ctx context.Context, ownerID, currency string, amount decimal.Decimal) (bool, error) {
	minor := toMinor(amount)
	applied, err := debitIfSufficient.Run(ctx, r.client,
		[]string{r.keys.wallet(ownerID)},
		balanceField+currency, minor, -minor, time.Now().UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("debit wallet: %w", err)
	}
	return applied == 1, nil
}

// Balances are stored as integer minor units (cents).
func toMinor(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

func fromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
