package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wallet-ledger/config"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/bootstrap"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("WLG_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Msg("Starting Wallet Ledger")

	ctx := context.Background()

	backend, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer backend.Close()

	// Validated by config.Load
	perTx, _ := cfg.Limits.PerTransactionAmount()
	daily, _ := cfg.Limits.DailyAmount()
	loc, _ := cfg.Limits.Location()

	store := backend.Store
	repos := store.Repositories()

	// Core services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	access := service.NewAccessControl()
	auditSvc := service.NewAuditService(repos.Audit, logger.Component(log, "audit"))

	executor := service.NewExecutor(store, log)
	guard := service.NewIdempotencyGuard(repos.Ledger, backend.IdempotencyCache(cfg.Redis.KeyPrefix), cfg.Transfer.IdempotencyTTL, log)
	transferSvc := service.NewTransferService(repos, executor, guard, service.TransferPolicy{
		Limits: service.Limits{
			PerTransaction: perTx,
			Daily:          daily,
			Location:       loc,
		},
		Currencies:               cfg.Wallet.Currencies,
		RequireExistingRecipient: cfg.Transfer.RequireExistingRecipient,
	}, logger.Component(log, "transfer"))

	walletSvc := service.NewWalletService(repos.Wallets, repos.Ledger)
	verifierSvc := service.NewVerifierService(repos.Ledger, logger.Component(log, "verifier"))
	adjustmentSvc := service.NewAdjustmentService(store, access, cfg.Wallet.Currencies, logger.Component(log, "adjustment"))

	log.Info().Str("executor", executor.Name()).Msg("Transfer engine ready")

	var rateLimiter ports.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = backend.RateLimiter(cfg.Redis.KeyPrefix)
	}

	if cfg.Server.Mode == gin.ReleaseMode || cfg.Server.Mode == gin.TestMode {
		gin.SetMode(cfg.Server.Mode)
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TransferSvc:    transferSvc,
		WalletSvc:      walletSvc,
		VerifierSvc:    verifierSvc,
		AuditSvc:       auditSvc,
		AdjustmentSvc:  adjustmentSvc,
		Access:         access,
		TokenSvc:       tokenSvc,
		RateLimiter:    rateLimiter,
		RateLimits:     cfg.RateLimit,
		Store:          store.Capabilities(),
		HealthCheckers: backend.HealthCheckers,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		OrphanAge:      cfg.Transfer.OrphanAge,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
