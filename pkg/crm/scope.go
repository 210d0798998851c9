package crm

import (
	"github.com/meridiancrm/meridian/pkg/apperr"
	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/authz"
)

// ScopeAssignee resolves the assignee filter for a listing. Row-scoped
// actors always see their own records; any caller-supplied assignee
// filter is silently overridden.
func ScopeAssignee(policy *authz.Policy, actor *auth.User, requested *int64) *int64 {
	if policy.RowScoped(actor.Role) {
		id := actor.ID
		return &id
	}
	return requested
}

// CheckOwnership rejects record access for row-scoped actors when the
// record is not assigned to them. Unassigned records are invisible to
// scoped roles too.
func CheckOwnership(policy *authz.Policy, actor *auth.User, assignedTo *int64) error {
	if !policy.RowScoped(actor.Role) {
		return nil
	}
	if assignedTo == nil || *assignedTo != actor.ID {
		return apperr.Forbidden("access denied: record is not assigned to you")
	}
	return nil
}

// DefaultAssignee applies create-time assignment: an absent assignee
// defaults to the acting user
func DefaultAssignee(actor *auth.User, requested *int64) *int64 {
	if requested == nil {
		id := actor.ID
		return &id
	}
	return requested
}
