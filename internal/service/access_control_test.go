package service

import (
	"testing"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/stretchr/testify/assert"
)

func TestRoleAccessControl_Authorize(t *testing.T) {
	ac := NewAccessControl()

	tests := []struct {
		name     string
		actor    *domain.Actor
		req      ports.Requirement
		wantCode string
	}{
		{
			name:     "no actor",
			actor:    nil,
			req:      ports.RequirePermission(domain.PermWalletRead),
			wantCode: "AUTH_001",
		},
		{
			name:     "unknown role",
			actor:    &domain.Actor{ID: "x", Role: "intern"},
			req:      ports.RequirePermission(domain.PermWalletRead),
			wantCode: "AUTH_005",
		},
		{
			name:  "support reads wallets",
			actor: &domain.Actor{ID: "s1", Role: domain.RoleSupport},
			req:   ports.RequirePermission(domain.PermWalletRead),
		},
		{
			name:     "support cannot read audit log",
			actor:    &domain.Actor{ID: "s1", Role: domain.RoleSupport},
			req:      ports.RequirePermission(domain.PermAuditRead),
			wantCode: "AUTH_005",
		},
		{
			name:  "finance verifies ledger",
			actor: &domain.Actor{ID: "f1", Role: domain.RoleFinance},
			req:   ports.RequirePermission(domain.PermLedgerVerify),
		},
		{
			name:     "finance cannot adjust",
			actor:    &domain.Actor{ID: "f1", Role: domain.RoleFinance},
			req:      ports.RequirePermission(domain.PermBalanceAdjust),
			wantCode: "AUTH_005",
		},
		{
			name:  "compliance overrides",
			actor: &domain.Actor{ID: "c1", Role: domain.RoleCompliance},
			req:   ports.RequirePermission(domain.PermComplianceOverride),
		},
		{
			name:     "user has no grants",
			actor:    &domain.Actor{ID: "u1", Role: domain.RoleUser},
			req:      ports.RequirePermission(domain.PermTransferRead),
			wantCode: "AUTH_005",
		},
		{
			name:     "role set excludes actor",
			actor:    &domain.Actor{ID: "c1", Role: domain.RoleCompliance},
			req:      ports.RequireRole(domain.RoleFinance, domain.RoleSuperAdmin),
			wantCode: "AUTH_005",
		},
		{
			name:  "role set includes actor",
			actor: &domain.Actor{ID: "f1", Role: domain.RoleFinance},
			req:   ports.RequireRole(domain.RoleFinance, domain.RoleSuperAdmin),
		},
		{
			name:     "superadmin without justification",
			actor:    &domain.Actor{ID: "root", Role: domain.RoleSuperAdmin},
			req:      ports.RequirePermission(domain.PermBalanceAdjust),
			wantCode: "AUTH_006",
		},
		{
			name:     "superadmin with blank justification",
			actor:    &domain.Actor{ID: "root", Role: domain.RoleSuperAdmin, Justification: "   "},
			req:      ports.RequirePermission(domain.PermWalletRead),
			wantCode: "AUTH_006",
		},
		{
			name:  "superadmin with justification",
			actor: &domain.Actor{ID: "root", Role: domain.RoleSuperAdmin, Justification: "INC-2291"},
			req: ports.Requirement{
				Permission: domain.PermBalanceAdjust,
				Roles:      []domain.Role{domain.RoleSuperAdmin},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ac.Authorize(tt.actor, tt.req)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			var appErr *apperror.AppError
			if assert.ErrorAs(t, err, &appErr) {
				assert.Equal(t, tt.wantCode, appErr.Code)
			}
		})
	}
}
