package service

import (
	"strings"

	"github.com/armada-ops/be-proc-approvals/internal/repository"
)

// Canonical approver role names.
const (
	RoleManager       = "Manager"
	RolePICOperations = "PIC Operations"
	RoleDirector      = "Director"
	RoleVicePresident = "Vice President"
)

// roleSelector binds a role name to the procurement assignment field backing
// it. An explicit table instead of a string-keyed dispatch map: adding a role
// means adding a row here, and resolution stays case-insensitive.
type roleSelector struct {
	name   string
	assign func(p *repository.Procurement) *string
}

var roleSelectors = []roleSelector{
	{RoleManager, func(p *repository.Procurement) *string { return p.ManagerID }},
	{RolePICOperations, func(p *repository.Procurement) *string { return p.PICOperationsID }},
	{RoleDirector, func(p *repository.Procurement) *string { return p.DirectorID }},
	{RoleVicePresident, func(p *repository.Procurement) *string { return p.VicePresidentID }},
}

// resolveAssignedApprover returns the procurement's assigned user for a role
// name, matched case-insensitively. Nil when the role has no procurement-level
// assignment, which means any holder of the role may act on the step.
func resolveAssignedApprover(p *repository.Procurement, roleName string) *string {
	for _, sel := range roleSelectors {
		if strings.EqualFold(sel.name, roleName) {
			return sel.assign(p)
		}
	}
	return nil
}
