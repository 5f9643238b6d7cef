package service

import (
	"context"

	"github.com/google/uuid"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/broadcast"
	"project-workspace-api/internal/database"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/repository"
	"project-workspace-api/internal/response"
)

// memberships implements the add/remove/change-role rules shared by every scope.
type memberships struct {
	rt      *Runtime
	members repository.MembershipRepository
}

func memberTable(scope domain.Scope) string {
	switch scope {
	case domain.ScopeOrganization:
		return "organization_members"
	case domain.ScopeTeam:
		return "team_members"
	}
	return "project_members"
}

func scopeProjectID(scope domain.Scope, scopeID uuid.UUID) uuid.UUID {
	if scope == domain.ScopeProject {
		return scopeID
	}
	return uuid.Nil
}

func (m memberships) add(ctx context.Context, tx *database.Tx, out *outbox, c caller, scope domain.Scope, scopeID, userID uuid.UUID, role domain.Role) error {
	if !role.ValidFor(scope) {
		return response.NewValidationError("role is not valid for "+string(scope), string(role))
	}
	actorRole, err := m.rt.authorize(ctx, tx.DB, m.members, c, scope, scopeID, access.ActionAdmin)
	if err != nil {
		return err
	}
	if !c.system && !access.CanGrant(actorRole, role) {
		return response.NewForbiddenError("only owners can grant the owner role", string(scope))
	}
	if err := m.members.WithTx(tx.DB).Add(ctx, scope, scopeID, userID, role, c.id); err != nil {
		return conflictOnDuplicate(err, response.ReasonAlreadyMember, "user is already a member")
	}
	out.change(memberTable(scope), broadcast.OpInsert, userID, scopeProjectID(scope, scopeID),
		map[string]interface{}{"user_id": userID, "role": role, string(scope) + "_id": scopeID}, nil)
	return nil
}

// remove deletes userID's membership. Leaving is always allowed; the last owner can never go.
func (m memberships) remove(ctx context.Context, tx *database.Tx, out *outbox, c caller, scope domain.Scope, scopeID, userID uuid.UUID) (domain.Role, error) {
	members := m.members.WithTx(tx.DB)
	actorRole, err := members.Role(ctx, scope, scopeID, c.id)
	if err != nil {
		return "", database.ClassifyError(err)
	}
	if actorRole == "" && !c.system {
		return "", response.NewNotFoundError(string(scope)+" not found", scopeID.String())
	}
	targetRole, err := members.Role(ctx, scope, scopeID, userID)
	if err != nil {
		return "", database.ClassifyError(err)
	}
	if targetRole == "" {
		return "", response.NewNotFoundError("member not found", userID.String())
	}
	if !c.system && !access.CanRemove(c.id, userID, actorRole, targetRole) {
		return "", response.NewForbiddenError("insufficient role to remove member", string(scope))
	}
	if targetRole == domain.RoleOwner {
		if err := m.requireAnotherOwner(ctx, members, scope, scopeID); err != nil {
			return "", err
		}
	}
	if err := members.Remove(ctx, scope, scopeID, userID); err != nil {
		return "", notFound(err, "member", userID)
	}
	out.change(memberTable(scope), broadcast.OpDelete, userID, scopeProjectID(scope, scopeID), nil,
		map[string]interface{}{"user_id": userID, "role": targetRole, string(scope) + "_id": scopeID})
	return targetRole, nil
}

func (m memberships) changeRole(ctx context.Context, tx *database.Tx, out *outbox, c caller, scope domain.Scope, scopeID, userID uuid.UUID, role domain.Role) error {
	if !role.ValidFor(scope) {
		return response.NewValidationError("role is not valid for "+string(scope), string(role))
	}
	actorRole, err := m.rt.authorize(ctx, tx.DB, m.members, c, scope, scopeID, access.ActionAdmin)
	if err != nil {
		return err
	}
	members := m.members.WithTx(tx.DB)
	current, err := members.Role(ctx, scope, scopeID, userID)
	if err != nil {
		return database.ClassifyError(err)
	}
	if current == "" {
		return response.NewNotFoundError("member not found", userID.String())
	}
	if current == role {
		return nil
	}
	if !c.system && (!access.CanGrant(actorRole, role) || (current == domain.RoleOwner && actorRole != domain.RoleOwner)) {
		return response.NewForbiddenError("only owners can change owner roles", string(scope))
	}
	if current == domain.RoleOwner {
		if err := m.requireAnotherOwner(ctx, members, scope, scopeID); err != nil {
			return err
		}
	}
	if err := members.UpdateRole(ctx, scope, scopeID, userID, role); err != nil {
		return notFound(err, "member", userID)
	}
	out.change(memberTable(scope), broadcast.OpUpdate, userID, scopeProjectID(scope, scopeID),
		map[string]interface{}{"user_id": userID, "role": role}, map[string]interface{}{"user_id": userID, "role": current})
	return nil
}

func (m memberships) requireAnotherOwner(ctx context.Context, members repository.MembershipRepository, scope domain.Scope, scopeID uuid.UUID) error {
	owners, err := members.CountOwners(ctx, scope, scopeID)
	if err != nil {
		return database.ClassifyError(err)
	}
	if owners <= 1 {
		return response.NewLastOwnerError(string(scope))
	}
	return nil
}
