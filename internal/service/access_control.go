package service

import (
	"fmt"
	"slices"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
)

// RoleAccessControl implements ports.AccessControl over the fixed role table.
type RoleAccessControl struct{}

// NewAccessControl creates the role-based access controller.
func NewAccessControl() *RoleAccessControl {
	return &RoleAccessControl{}
}

// Authorize checks actor against req. A wildcard grant is only honoured when
// the actor stated a justification for the call.
func (a *RoleAccessControl) Authorize(actor *domain.Actor, req ports.Requirement) error {
	if actor == nil || actor.ID == "" {
		return apperror.ErrUnauthorized()
	}
	if !actor.Role.Valid() {
		return apperror.ErrForbidden(fmt.Sprintf("unknown role %q", actor.Role))
	}

	if len(req.Roles) > 0 && !slices.Contains(req.Roles, actor.Role) {
		return apperror.ErrForbidden(fmt.Sprintf("role %s may not perform this operation", actor.Role))
	}

	grant := actor.Role.Grant()
	if req.Permission != "" && !grant.Allows(req.Permission) {
		return apperror.ErrForbidden(fmt.Sprintf("missing permission %s", req.Permission))
	}

	if grant.HighFriction && strings.TrimSpace(actor.Justification) == "" {
		return apperror.ErrJustificationRequired()
	}
	return nil
}
