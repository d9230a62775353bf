package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/bootstrap"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT:      config.JWTConfig{Secret: "test-jwt-secret-key-32bytes!!", Expiry: time.Hour, Issuer: "test-issuer"},
		Transfer: config.TransferConfig{OrphanAge: 5 * time.Minute},
		Log:      config.LogConfig{Level: "error"},
	}
}

func newTestCLI(store *memory.Store) *cli {
	return &cli{
		loadConfig: func(string) (*config.Config, error) { return testConfig(), nil },
		openBackend: func(context.Context, *config.Config, zerolog.Logger) (*bootstrap.Backend, error) {
			return &bootstrap.Backend{Store: store}, nil
		},
	}
}

func run(t *testing.T, c *cli, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := c.rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func seededStore(t *testing.T) (*memory.Store, *domain.TransferRecord) {
	t.Helper()
	store := memory.NewStore([]string{"USD"}, decimal.NewFromInt(100))
	repos := store.Repositories()
	log := zerolog.Nop()
	svc := service.NewTransferService(repos, service.NewExecutor(store, log),
		service.NewIdempotencyGuard(repos.Ledger, nil, time.Hour, log),
		service.TransferPolicy{
			Limits:     service.Limits{PerTransaction: decimal.NewFromInt(5000), Location: time.UTC},
			Currencies: []string{"USD"},
		}, log)

	res, err := svc.Transfer(context.Background(), ports.TransferRequest{
		SenderID: "alice", RecipientID: "bob", Amount: decimal.NewFromInt(40),
	})
	require.NoError(t, err)
	return store, res.Record
}

func TestVerifyCommand(t *testing.T) {
	store, rec := seededStore(t)

	out, err := run(t, newTestCLI(store), "verify", rec.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "valid:    true")
	assert.Contains(t, out, "entries:  2")

	out, err = run(t, newTestCLI(store), "--json", "verify", rec.ID.String())
	require.NoError(t, err)
	var res ports.VerificationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Valid)
	assert.Equal(t, rec.ID, res.TransferID)
}

func TestVerifyCommand_BadID(t *testing.T) {
	store, _ := seededStore(t)
	_, err := run(t, newTestCLI(store), "verify", "nope")
	assert.ErrorContains(t, err, "invalid transfer id")
}

func TestReconcileCommand(t *testing.T) {
	store, _ := seededStore(t)

	out, err := run(t, newTestCLI(store), "reconcile", "--since", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "checked: 1")
	assert.Contains(t, out, "invalid: 0")
}

func TestOrphansCommand(t *testing.T) {
	store, _ := seededStore(t)
	pending := domain.NewTransferRecord("carol", "dave", "USD", decimal.NewFromInt(1), nil, nil, domain.TransferStatusPending)
	pending.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Repositories().Ledger.AppendHeader(context.Background(), pending))

	out, err := run(t, newTestCLI(store), "orphans")
	require.NoError(t, err)
	assert.Contains(t, out, pending.ID.String())
	assert.Contains(t, out, "carol -> dave")

	out, err = run(t, newTestCLI(store), "orphans", "--older-than", "2h")
	require.NoError(t, err)
	assert.Contains(t, out, "no orphaned transfers")
}

func TestTokenCommand(t *testing.T) {
	c := newTestCLI(nil)

	out, err := run(t, c, "token", "--sub", "fin-1", "--role", "finance", "--ttl", "10m")
	require.NoError(t, err)

	cfg := testConfig()
	claims, err := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer).Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "fin-1", claims.ActorID)
	assert.Equal(t, domain.RoleFinance, claims.Role)
}

func TestTokenCommand_Errors(t *testing.T) {
	c := newTestCLI(nil)

	_, err := run(t, c, "token", "--sub", "x", "--role", "intruder")
	assert.ErrorContains(t, err, "unknown role")

	_, err = run(t, c, "token", "--role", "user")
	assert.Error(t, err)
}

func TestSchemaCommand(t *testing.T) {
	out, err := run(t, newTestCLI(nil), "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS transfers")
}
