package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallet-ledger/config"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/adapter/storage/memory"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires the real HTTP layer, middleware, services and the memory
// store, with miniredis behind the idempotency cache and the rate limiter.
type testApp struct {
	server *httptest.Server
	store  *memory.Store
	tokens *service.JWTTokenService
}

func newTestApp(t *testing.T, rateLimits config.RateLimitConfig) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.Nop()
	currencies := []string{"USD", "EUR"}
	store := memory.NewStore(currencies, decimal.NewFromInt(1000))
	repos := store.Repositories()

	tokens := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", time.Hour, "test-issuer")
	access := service.NewAccessControl()
	auditSvc := service.NewAuditService(repos.Audit, log)
	guard := service.NewIdempotencyGuard(repos.Ledger, redisStorage.NewIdempotencyCache(rdb, "wlg:"), time.Hour, log)
	transferSvc := service.NewTransferService(repos, service.NewExecutor(store, log), guard, service.TransferPolicy{
		Limits: service.Limits{
			PerTransaction: decimal.NewFromInt(5000),
			Daily:          decimal.NewFromInt(25000),
			Location:       time.UTC,
		},
		Currencies: currencies,
	}, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TransferSvc:    transferSvc,
		WalletSvc:      service.NewWalletService(repos.Wallets, repos.Ledger),
		VerifierSvc:    service.NewVerifierService(repos.Ledger, log),
		AuditSvc:       auditSvc,
		AdjustmentSvc:  service.NewAdjustmentService(store, access, currencies, log),
		Access:         access,
		TokenSvc:       tokens,
		RateLimiter:    redisStorage.NewRateLimitStore(rdb, "wlg:"),
		RateLimits:     rateLimits,
		Store:          store.Capabilities(),
		HealthCheckers: []ports.HealthChecker{store, redisStorage.NewHealthCheck(rdb)},
		OrphanAge:      5 * time.Minute,
		Logger:         log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testApp{server: server, store: store, tokens: tokens}
}

func noRateLimits() config.RateLimitConfig { return config.RateLimitConfig{} }

type call struct {
	method        string
	path          string
	body          string
	subject       string
	role          domain.Role
	justification string
	idemKey       string
}

func (a *testApp) do(t *testing.T, cl call) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(cl.method, a.server.URL+cl.path, bytes.NewBufferString(cl.body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cl.subject != "" {
		token, _, err := a.tokens.Generate(cl.subject, cl.role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if cl.justification != "" {
		req.Header.Set(middleware.HeaderJustification, cl.justification)
	}
	if cl.idemKey != "" {
		req.Header.Set(middleware.HeaderIdempotency, cl.idemKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func transferCall(sender, recipient string, minor int64, key string) call {
	return call{
		method:  http.MethodPost,
		path:    "/api/v1/transfers",
		body:    fmt.Sprintf(`{"recipient_id":%q,"amount_minor":%d}`, recipient, minor),
		subject: sender,
		role:    domain.RoleUser,
		idemKey: key,
	}
}

func balanceOf(t *testing.T, app *testApp, owner string) string {
	t.Helper()
	status, body := app.do(t, call{method: http.MethodGet, path: "/api/v1/wallets/" + owner + "/balance", subject: owner, role: domain.RoleUser})
	require.Equal(t, http.StatusOK, status)
	return body["data"].(map[string]any)["balances"].(map[string]any)["USD"].(string)
}

func TestRouter_HealthCheck(t *testing.T) {
	app := newTestApp(t, noRateLimits())

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	store := body["store"].(map[string]any)
	assert.Equal(t, "memory", store["driver"])
	assert.Equal(t, "transactional", store["transfer_mode"])
}

func TestRouter_RequiresToken(t *testing.T) {
	app := newTestApp(t, noRateLimits())

	status, body := app.do(t, call{method: http.MethodGet, path: "/api/v1/wallets/alice/balance"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_001", body["error_code"])
	assert.NotEmpty(t, body["request_id"])
}

func TestRouter_TransferAndReplay(t *testing.T) {
	app := newTestApp(t, noRateLimits())

	status, body := app.do(t, transferCall("alice", "bob", 80000, "K1"))
	require.Equal(t, http.StatusCreated, status)
	first := body["data"].(map[string]any)
	assert.Equal(t, "completed", first["status"])
	assert.Equal(t, "200.00", first["sender_balance"])

	status, body = app.do(t, transferCall("alice", "bob", 80000, "K1"))
	require.Equal(t, http.StatusOK, status)
	replay := body["data"].(map[string]any)
	assert.Equal(t, first["transaction_id"], replay["transaction_id"])
	assert.Equal(t, true, replay["duplicate"])

	status, body = app.do(t, transferCall("alice", "carol", 80000, "K1"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PAY_003", body["error_code"])

	assert.Equal(t, "200.00", balanceOf(t, app, "alice"))
	assert.Equal(t, "1800.00", balanceOf(t, app, "bob"))

	status, body = app.do(t, call{method: http.MethodGet, path: "/api/v1/wallets/bob/history", subject: "bob", role: domain.RoleUser})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)
}

// TestRouter_ConcurrentTransfers fires more transfers than the balance can
// cover and checks that no wallet is ever overdrawn.
func TestRouter_ConcurrentTransfers(t *testing.T) {
	app := newTestApp(t, noRateLimits())

	const concurrency = 20
	var wg sync.WaitGroup
	var succeeded, rejected atomic.Int32

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cl := transferCall("alice", fmt.Sprintf("r%d", i), 10000, fmt.Sprintf("conc-%d", i))
			req, _ := http.NewRequest(cl.method, app.server.URL+cl.path, bytes.NewBufferString(cl.body))
			token, _, _ := app.tokens.Generate(cl.subject, cl.role)
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(middleware.HeaderIdempotency, cl.idemKey)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusCreated:
				succeeded.Add(1)
			case http.StatusPaymentRequired:
				rejected.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(10), succeeded.Load())
	assert.Equal(t, int32(10), rejected.Load())
	assert.Equal(t, "0.00", balanceOf(t, app, "alice"))
}

func TestRouter_WalletReadAccess(t *testing.T) {
	app := newTestApp(t, noRateLimits())

	// another user
	status, _ := app.do(t, call{method: http.MethodGet, path: "/api/v1/wallets/alice/balance", subject: "bob", role: domain.RoleUser})
	assert.Equal(t, http.StatusForbidden, status)

	// support staff: allowed and audited
	status, _ = app.do(t, call{method: http.MethodGet, path: "/api/v1/wallets/alice/balance", subject: "s1", role: domain.RoleSupport, justification: "ticket 88"})
	assert.Equal(t, http.StatusOK, status)

	status, body := app.do(t, call{method: http.MethodGet, path: "/api/v1/admin/audit?action=wallet.inspect", subject: "c1", role: domain.RoleCompliance})
	require.Equal(t, http.StatusOK, status)
	events := body["data"].([]any)
	require.Len(t, events, 1)
	ev := events[0].(map[string]any)
	assert.Equal(t, "s1", ev["actor_id"])
	assert.Equal(t, "alice", ev["target_id"])
	assert.Equal(t, "ticket 88", ev["reason"])
	assert.Equal(t, true, ev["intact"])
}

func TestRouter_AdminAccess(t *testing.T) {
	app := newTestApp(t, noRateLimits())

	tests := []struct {
		name       string
		cl         call
		wantStatus int
	}{
		{"user cannot read audit", call{method: http.MethodGet, path: "/api/v1/admin/audit", subject: "alice", role: domain.RoleUser}, http.StatusForbidden},
		{"support cannot reconcile", call{method: http.MethodGet, path: "/api/v1/admin/reconcile", subject: "s1", role: domain.RoleSupport}, http.StatusForbidden},
		{"finance reconciles", call{method: http.MethodGet, path: "/api/v1/admin/reconcile", subject: "f1", role: domain.RoleFinance}, http.StatusOK},
		{"finance lists orphans", call{method: http.MethodGet, path: "/api/v1/admin/orphans", subject: "f1", role: domain.RoleFinance}, http.StatusOK},
		{"finance cannot adjust", call{method: http.MethodPost, path: "/api/v1/admin/adjustments", body: `{"owner_id":"alice","currency":"USD","amount_minor":100,"reason":"x"}`, subject: "f1", role: domain.RoleFinance}, http.StatusForbidden},
		{"superadmin needs justification", call{method: http.MethodGet, path: "/api/v1/admin/audit", subject: "root", role: domain.RoleSuperAdmin}, http.StatusForbidden},
		{"superadmin with justification", call{method: http.MethodGet, path: "/api/v1/admin/audit", subject: "root", role: domain.RoleSuperAdmin, justification: "INC-1"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := app.do(t, tt.cl)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestRouter_AdjustAndVerify(t *testing.T) {
	app := newTestApp(t, noRateLimits())

	status, body := app.do(t, call{
		method:        http.MethodPost,
		path:          "/api/v1/admin/adjustments",
		body:          `{"owner_id":"alice","currency":"USD","amount_minor":5000,"reason":"goodwill credit INC-7"}`,
		subject:       "root",
		role:          domain.RoleSuperAdmin,
		justification: "INC-7",
	})
	require.Equal(t, http.StatusCreated, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "1000.00", data["balance_before"].(map[string]any)["USD"])
	assert.Equal(t, "1050.00", data["balance_after"].(map[string]any)["USD"])

	status, body = app.do(t, transferCall("alice", "bob", 1050, ""))
	require.Equal(t, http.StatusCreated, status)
	txID := body["data"].(map[string]any)["transaction_id"].(string)

	status, body = app.do(t, call{method: http.MethodGet, path: "/api/v1/admin/transfers/" + txID + "/verify", subject: "f1", role: domain.RoleFinance})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["data"].(map[string]any)["valid"])

	// verification itself is audited
	status, body = app.do(t, call{method: http.MethodGet, path: "/api/v1/admin/audit?action=ledger.verify", subject: "f1", role: domain.RoleFinance})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)
}

func TestRouter_RateLimitedTransfers(t *testing.T) {
	app := newTestApp(t, config.RateLimitConfig{Enabled: true, TransfersLimit: 2, Window: time.Minute})

	for i := 0; i < 2; i++ {
		status, _ := app.do(t, transferCall("alice", "bob", 100, ""))
		assert.Equal(t, http.StatusCreated, status)
	}
	status, body := app.do(t, transferCall("alice", "bob", 100, ""))
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_001", body["error_code"])

	// reads are a separate group with no limit configured
	assert.Equal(t, "998.00", balanceOf(t, app, "alice"))
}
