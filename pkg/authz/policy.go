// Package authz holds the authorization gate and the row-scoping
// policy. The policy is built at construction so tests can run with
// synthetic role sets.
package authz

import (
	"github.com/meridiancrm/meridian/pkg/auth"
)

// Policy decides which roles pass a gate and which roles are restricted
// to their own rows
type Policy struct {
	scopeExempt map[auth.Role]bool
}

// NewPolicy creates a policy with an explicit set of roles exempt from
// row scoping; every other role sees only records assigned to it
func NewPolicy(scopeExempt ...auth.Role) *Policy {
	exempt := make(map[auth.Role]bool, len(scopeExempt))
	for _, role := range scopeExempt {
		exempt[role] = true
	}
	return &Policy{scopeExempt: exempt}
}

// DefaultPolicy returns the production policy: only Sales Executives
// are row-scoped
func DefaultPolicy() *Policy {
	return NewPolicy(
		auth.RoleSystemAdmin,
		auth.RoleSalesManager,
		auth.RoleMarketingExecutive,
		auth.RoleSupportExecutive,
		auth.RoleCustomer,
	)
}

// Allowed reports whether the role is in the required set. An empty
// required set admits every authenticated role.
func (p *Policy) Allowed(role auth.Role, required ...auth.Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if role == r {
			return true
		}
	}
	return false
}

// RowScoped reports whether the role only sees its own records
func (p *Policy) RowScoped(role auth.Role) bool {
	return !p.scopeExempt[role]
}
