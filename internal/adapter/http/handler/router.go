package handler

import (
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	TransferSvc    ports.TransferService
	WalletSvc      ports.WalletService
	VerifierSvc    ports.VerifierService
	AuditSvc       ports.AuditService
	AdjustmentSvc  ports.AdjustmentService
	Access         ports.AccessControl
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	RateLimits     config.RateLimitConfig
	Store          ports.StoreCapabilities
	HealthCheckers []ports.HealthChecker
	MaxBodyBytes   int64
	OrphanAge      time.Duration
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	r.Use(middleware.MaxBodySize(maxBody))

	// Health check (deep: verifies the store and Redis)
	r.GET("/health", HealthCheck(deps.Store, deps.HealthCheckers...))

	rules := middleware.RateLimitRules(deps.RateLimits)

	// Helper: return rate limiter middleware if a limiter is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimiter == nil || !ok || rule.Limit <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	access := deps.Access
	audit := func(rule middleware.AuditRule) gin.HandlerFunc {
		return middleware.AuditAccess(deps.AuditSvc, rule)
	}
	perm := func(p domain.Permission) gin.HandlerFunc {
		return middleware.RequireAccess(access, ports.RequirePermission(p))
	}

	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	// --- Transfers ---
	transferHandler := NewTransferHandler(deps.TransferSvc)
	v1.POST("/transfers", rl(middleware.GroupTransfers), transferHandler.Transfer)

	// --- Wallet reads: owners freely, staff with permission and an audit trail ---
	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallets := v1.Group("/wallets/:owner_id", rl(middleware.GroupReads))
	{
		wallets.GET("/balance",
			middleware.RequireOwnerOr(access, "owner_id", domain.PermWalletRead),
			audit(middleware.AuditRule{Action: domain.AuditActionWalletInspect, TargetType: "wallet", TargetParam: "owner_id", SkipOwner: true}),
			walletHandler.GetBalance)
		wallets.GET("/history",
			middleware.RequireOwnerOr(access, "owner_id", domain.PermTransferRead),
			audit(middleware.AuditRule{Action: domain.AuditActionWalletInspect, TargetType: "wallet", TargetParam: "owner_id", SkipOwner: true}),
			walletHandler.GetHistory)
	}

	// --- Admin ---
	adminHandler := NewAdminHandler(deps.AuditSvc, deps.AdjustmentSvc, deps.VerifierSvc, deps.OrphanAge)
	admin := v1.Group("/admin", rl(middleware.GroupAdmin))
	{
		admin.GET("/audit",
			perm(domain.PermAuditRead),
			audit(middleware.AuditRule{Action: domain.AuditActionAuditView, TargetType: "audit_log"}),
			adminHandler.ListAudit)
		admin.GET("/transfers/:id/verify",
			perm(domain.PermLedgerVerify),
			audit(middleware.AuditRule{Action: domain.AuditActionLedgerVerify, TargetType: "transfer", TargetParam: "id"}),
			adminHandler.VerifyTransfer)
		admin.GET("/reconcile",
			perm(domain.PermLedgerVerify),
			audit(middleware.AuditRule{Action: domain.AuditActionLedgerReconcile, TargetType: "ledger"}),
			adminHandler.Reconcile)
		admin.GET("/orphans",
			perm(domain.PermLedgerVerify),
			audit(middleware.AuditRule{Action: domain.AuditActionLedgerReconcile, TargetType: "ledger"}),
			adminHandler.ListOrphans)
		// The adjustment service writes its own audit event with snapshots.
		admin.POST("/adjustments",
			middleware.RequireAccess(access, ports.RequireRole(domain.RoleSuperAdmin)),
			adminHandler.Adjust)
	}

	return r
}
