package domain

// Role is the fixed set of actor roles known to the ledger.
type Role string

const (
	RoleUser       Role = "user"
	RoleSupport    Role = "support"
	RoleCompliance Role = "compliance"
	RoleFinance    Role = "finance"
	RoleSuperAdmin Role = "superadmin"
)

// Permission is a capability tag checked by the access controller.
type Permission string

const (
	PermWalletRead         Permission = "wallet:read"
	PermTransferRead       Permission = "transfer:read"
	PermAuditRead          Permission = "audit:read"
	PermLedgerVerify       Permission = "ledger:verify"
	PermBalanceAdjust      Permission = "balance:adjust"
	PermTransferReverse    Permission = "transfer:reverse"
	PermComplianceOverride Permission = "compliance:override"
)

// Grant describes what a role may do. A wildcard grant allows every
// permission and is always high friction: the actor must state a
// justification for each privileged call.
type Grant struct {
	Permissions  []Permission
	Wildcard     bool
	HighFriction bool
}

// Allows reports whether the grant covers p.
func (g Grant) Allows(p Permission) bool {
	if g.Wildcard {
		return true
	}
	for _, have := range g.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// Grant returns the capability set of the role. Unknown roles get nothing.
func (r Role) Grant() Grant {
	switch r {
	case RoleUser:
		return Grant{}
	case RoleSupport:
		return Grant{Permissions: []Permission{PermWalletRead, PermTransferRead}}
	case RoleCompliance:
		return Grant{Permissions: []Permission{PermWalletRead, PermTransferRead, PermAuditRead, PermComplianceOverride}}
	case RoleFinance:
		return Grant{Permissions: []Permission{PermWalletRead, PermTransferRead, PermLedgerVerify, PermAuditRead}}
	case RoleSuperAdmin:
		return Grant{Wildcard: true, HighFriction: true}
	default:
		return Grant{}
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSupport, RoleCompliance, RoleFinance, RoleSuperAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller of a privileged operation.
type Actor struct {
	ID            string
	Role          Role
	Justification string
	IPAddress     string
	UserAgent     string
}
