// Package access decides whether a user may perform an action on a scope.
//
// Decisions come in two forms: Evaluator for explicit checks in the command
// layer, and Filter for row-level predicates composed into store queries.
// Both read the same membership tables and the same role table.
package access

import (
	"context"

	"github.com/google/uuid"

	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/response"
)

// Action is what a caller wants to do with a resource.
type Action string

const (
	ActionRead    Action = "read"
	ActionMutate  Action = "mutate"
	ActionAdmin   Action = "admin"
	ActionDestroy Action = "destroy"
	ActionApprove Action = "approve"
)

var requiredRoles = map[domain.Scope]map[Action]domain.Role{
	domain.ScopeOrganization: {
		ActionRead:    domain.RoleMember,
		ActionMutate:  domain.RoleMember,
		ActionAdmin:   domain.RoleAdmin,
		ActionDestroy: domain.RoleOwner,
	},
	domain.ScopeTeam: {
		ActionRead:    domain.RoleMember,
		ActionMutate:  domain.RoleAdmin,
		ActionAdmin:   domain.RoleAdmin,
		ActionDestroy: domain.RoleOwner,
	},
	domain.ScopeProject: {
		ActionRead:    domain.RoleViewer,
		ActionMutate:  domain.RoleMember,
		ActionAdmin:   domain.RoleAdmin,
		ActionDestroy: domain.RoleOwner,
		ActionApprove: domain.RoleAdmin,
	},
}

// RequiredRole returns the least role allowed to perform action at scope.
// The second result is false for combinations that are never allowed.
func RequiredRole(scope domain.Scope, action Action) (domain.Role, bool) {
	r, ok := requiredRoles[scope][action]
	return r, ok
}

// Allows reports whether role may perform action at scope.
func Allows(scope domain.Scope, role domain.Role, action Action) bool {
	min, ok := RequiredRole(scope, action)
	if !ok {
		return false
	}
	return role.AtLeast(min)
}

// CanGrant reports whether a member with actor role may give role to someone.
// Only owners create owners.
func CanGrant(actor, role domain.Role) bool {
	if role == domain.RoleOwner {
		return actor == domain.RoleOwner
	}
	return actor.AtLeast(domain.RoleAdmin)
}

// CanRemove reports whether actor may remove target from a scope. Leaving is
// always allowed; removing an owner takes an owner. The last-owner rule is
// checked separately because it needs a count.
func CanRemove(actorID, targetID uuid.UUID, actor, target domain.Role) bool {
	if actorID == targetID {
		return true
	}
	if target == domain.RoleOwner {
		return actor == domain.RoleOwner
	}
	return actor.AtLeast(domain.RoleAdmin)
}

// MembershipReader resolves a user's role at a scope, returning "" when there is none.
type MembershipReader interface {
	Role(ctx context.Context, scope domain.Scope, scopeID, userID uuid.UUID) (domain.Role, error)
}

// Evaluator performs explicit access checks with one membership lookup per decision.
type Evaluator struct {
	members MembershipReader
}

func NewEvaluator(members MembershipReader) *Evaluator {
	return &Evaluator{members: members}
}

// Authorize returns the caller's role when action is allowed.
// A caller with no membership gets NotFound, so existence is not leaked;
// a member whose role is too low gets Forbidden.
func (e *Evaluator) Authorize(ctx context.Context, userID uuid.UUID, scope domain.Scope, scopeID uuid.UUID, action Action) (domain.Role, error) {
	role, err := e.members.Role(ctx, scope, scopeID, userID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", response.NewNotFoundError(string(scope)+" not found", scopeID.String())
	}
	if !Allows(scope, role, action) {
		return role, response.NewForbiddenError("insufficient role", string(scope)+":"+string(action))
	}
	return role, nil
}
