package ports

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(actorID string, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	ActorID string
	Role    domain.Role
}

// --- Service Ports (Business Logic) ---

// TransferService moves money between two wallets.
type TransferService interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// TransferRequest holds validated input for a transfer.
type TransferRequest struct {
	SenderID       string
	RecipientID    string
	Amount         decimal.Decimal
	Currency       string // empty = primary currency
	Note           *string
	IdempotencyKey *string // nil = no deduplication
}

// TransferResult is returned for both fresh and replayed transfers.
type TransferResult struct {
	Record        *domain.TransferRecord
	IsDuplicate   bool
	SenderBalance decimal.Decimal
	Fee           decimal.Decimal
}

// TransferExecutor performs the durable writes of an already validated transfer.
// Implementations differ by what the store can guarantee.
type TransferExecutor interface {
	Execute(ctx context.Context, rec *domain.TransferRecord) error
	Name() string
}

// WalletService exposes read-only wallet views.
type WalletService interface {
	Balance(ctx context.Context, ownerID string) (*domain.Wallet, error)
	History(ctx context.Context, ownerID string, limit int) ([]domain.TransferRecord, error)
}

// VerifierService checks double-entry integrity. It never writes.
type VerifierService interface {
	Verify(ctx context.Context, transferID uuid.UUID) (*VerificationResult, error)
	Reconcile(ctx context.Context, since time.Time, limit int) (*ReconcileReport, error)
	FindOrphans(ctx context.Context, olderThan time.Duration, limit int) ([]domain.TransferRecord, error)
}

// VerificationResult is the outcome of checking one transfer.
type VerificationResult struct {
	TransferID uuid.UUID       `json:"transfer_id"`
	Valid      bool            `json:"valid"`
	Detail     string          `json:"detail"`
	EntryCount int             `json:"entry_count"`
	Sum        decimal.Decimal `json:"sum"`
}

// ReconcileReport summarises a reconciliation sweep.
type ReconcileReport struct {
	Since   time.Time            `json:"since"`
	Checked int                  `json:"checked"`
	Valid   int                  `json:"valid"`
	Invalid []VerificationResult `json:"invalid"`
}

// AccessControl decides whether an actor may perform an operation.
type AccessControl interface {
	Authorize(actor *domain.Actor, req Requirement) error
}

// Requirement is either a permission or a set of roles. When both are set
// the actor must satisfy both.
type Requirement struct {
	Permission domain.Permission
	Roles      []domain.Role
}

// RequirePermission builds a permission requirement.
func RequirePermission(p domain.Permission) Requirement {
	return Requirement{Permission: p}
}

// RequireRole builds a role-set requirement.
func RequireRole(roles ...domain.Role) Requirement {
	return Requirement{Roles: roles}
}

// AuditService records and lists privileged actions.
type AuditService interface {
	Record(ctx context.Context, in RecordInput) (*domain.AuditEvent, error)
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error)
}

// RecordInput holds the fields of an audit event before it is sealed.
type RecordInput struct {
	Actor      domain.Actor
	Action     domain.AuditAction
	TargetType string
	TargetID   string
	Reason     string
	Before     any
	After      any
	Metadata   map[string]string
}

// AdjustmentService applies manual balance corrections.
type AdjustmentService interface {
	Adjust(ctx context.Context, actor *domain.Actor, req AdjustmentRequest) (*AdjustmentResult, error)
}

// AdjustmentRequest holds a signed correction. Negative amounts debit.
type AdjustmentRequest struct {
	OwnerID  string
	Currency string
	Amount   decimal.Decimal
	Reason   string
}

// AdjustmentResult carries the posting and the wallet before and after.
type AdjustmentResult struct {
	AdjustmentID uuid.UUID
	Entry        *domain.LedgerEntry
	Before       *domain.Wallet
	After        *domain.Wallet
	AuditEventID uuid.UUID
}
