package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the storage backend. The transfer strategy follows
// from what the chosen backend can do.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // postgres, redis, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ApplySchema     bool          `mapstructure:"apply_schema"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// LimitsConfig holds per-sender transfer limits. Amounts are decimal strings
// in major units. A zero daily cap disables the daily check.
type LimitsConfig struct {
	PerTransaction string `mapstructure:"per_transaction"`
	Daily          string `mapstructure:"daily"`
	Timezone       string `mapstructure:"timezone"`
}

// PerTransactionAmount parses PerTransaction.
func (l LimitsConfig) PerTransactionAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(l.PerTransaction)
}

// DailyAmount parses Daily.
func (l LimitsConfig) DailyAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(l.Daily)
}

// Location loads the timezone that defines the daily window.
func (l LimitsConfig) Location() (*time.Location, error) {
	return time.LoadLocation(l.Timezone)
}

// WalletConfig lists supported currencies. The first one is primary.
type WalletConfig struct {
	Currencies  []string `mapstructure:"currencies"`
	SeedBalance string   `mapstructure:"seed_balance"`
}

// SeedAmount parses SeedBalance. A seed must be a non-negative amount with
// at most two decimal places, since Redis stores balances in minor units.
func (w WalletConfig) SeedAmount() (decimal.Decimal, error) {
	seed, err := decimal.NewFromString(w.SeedBalance)
	if err != nil {
		return decimal.Zero, err
	}
	if seed.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative, got %s", seed)
	}
	if !seed.Equal(seed.Round(2)) {
		return decimal.Zero, fmt.Errorf("at most two decimal places allowed, got %s", seed)
	}
	return seed, nil
}

type TransferConfig struct {
	RequireExistingRecipient bool          `mapstructure:"require_existing_recipient"`
	IdempotencyTTL           time.Duration `mapstructure:"idempotency_ttl"`
	OrphanAge                time.Duration `mapstructure:"orphan_age"`
}

type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	TransfersLimit int64         `mapstructure:"transfers_limit"`
	AdminLimit     int64         `mapstructure:"admin_limit"`
	ReadsLimit     int64         `mapstructure:"reads_limit"`
	Window         time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Validate checks values that viper cannot type-check on its own.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if len(c.Wallet.Currencies) == 0 {
		return fmt.Errorf("wallet.currencies must list at least one currency")
	}
	if _, err := c.Limits.PerTransactionAmount(); err != nil {
		return fmt.Errorf("limits.per_transaction: %w", err)
	}
	if _, err := c.Limits.DailyAmount(); err != nil {
		return fmt.Errorf("limits.daily: %w", err)
	}
	if _, err := c.Limits.Location(); err != nil {
		return fmt.Errorf("limits.timezone: %w", err)
	}
	if _, err := c.Wallet.SeedAmount(); err != nil {
		return fmt.Errorf("wallet.seed_balance: %w", err)
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WLG_ (Wallet LedGer).
// Nested keys use underscore: WLG_STORE_DRIVER, WLG_LIMITS_DAILY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.apply_schema", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "wlg:")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "wallet-ledger")
	v.SetDefault("limits.per_transaction", "5000")
	v.SetDefault("limits.daily", "25000")
	v.SetDefault("limits.timezone", "UTC")
	v.SetDefault("wallet.currencies", []string{"USD", "EUR"})
	v.SetDefault("wallet.seed_balance", "0")
	v.SetDefault("transfer.require_existing_recipient", false)
	v.SetDefault("transfer.idempotency_ttl", "24h")
	v.SetDefault("transfer.orphan_age", "5m")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.transfers_limit", 60)
	v.SetDefault("ratelimit.admin_limit", 30)
	v.SetDefault("ratelimit.reads_limit", 120)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: WLG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WLG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
