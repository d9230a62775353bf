package redis

import (
	"wallet-ledger/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Store is a document-style backend. Each write is a single atomic script,
// but there are no multi-record transactions, so transfers on this backend
// run the sequential path.
type Store struct {
	client     *goredis.Client
	prefix     string
	currencies []string
	seed       decimal.Decimal
}

// NewStore creates a Redis store writing under prefix.
func NewStore(client *goredis.Client, prefix string, currencies []string, seed decimal.Decimal) *Store {
	return &Store{client: client, prefix: prefix, currencies: currencies, seed: seed}
}

// Capabilities implements ports.Store.
func (s *Store) Capabilities() ports.StoreCapabilities {
	return ports.StoreCapabilities{Name: "redis", Transactions: false}
}

// Repositories implements ports.Store.
func (s *Store) Repositories() ports.Repositories {
	return ports.Repositories{
		Wallets: NewWalletRepo(s.client, s.prefix, s.currencies, s.seed),
		Ledger:  NewLedgerRepo(s.client, s.prefix),
		Audit:   NewAuditRepo(s.client, s.prefix),
	}
}
