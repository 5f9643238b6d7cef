package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"project-workspace-api/internal/domain"
)

// MembershipRepository reads and writes organization, team and project memberships.
type MembershipRepository interface {
	WithTx(tx *gorm.DB) MembershipRepository
	Role(ctx context.Context, scope domain.Scope, scopeID, userID uuid.UUID) (domain.Role, error)
	Add(ctx context.Context, scope domain.Scope, scopeID, userID uuid.UUID, role domain.Role, addedBy uuid.UUID) error
	Remove(ctx context.Context, scope domain.Scope, scopeID, userID uuid.UUID) error
	UpdateRole(ctx context.Context, scope domain.Scope, scopeID, userID uuid.UUID, role domain.Role) error
	CountOwners(ctx context.Context, scope domain.Scope, scopeID uuid.UUID) (int64, error)
	UserIDs(ctx context.Context, scope domain.Scope, scopeID uuid.UUID, minRole domain.Role) ([]uuid.UUID, error)
	ProjectMembers(ctx context.Context, projectID uuid.UUID) ([]*domain.ProjectMember, error)
	ScopesInOrganization(ctx context.Context, orgID, userID uuid.UUID) (teamIDs, projectIDs []uuid.UUID, err error)
}

type membershipRepositoryImpl struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepositoryImpl{db: db}
}

func (r *membershipRepositoryImpl) WithTx(tx *gorm.DB) MembershipRepository {
	return &membershipRepositoryImpl{db: tx}
}

func membershipTable(scope domain.Scope) (table, key string) {
	switch scope {
	case domain.ScopeOrganization:
		return "organization_members", "org_id"
	case domain.ScopeTeam:
		return "team_members", "team_id"
	case domain.ScopeProject:
		return "project_members", "project_id"
	}
	panic(fmt.Sprintf("unknown membership scope %q", scope))
}

func (r *membershipRepositoryImpl) Role(ctx context.Context, scope domain.Scope, scopeID, userID uuid.UUID) (domain.Role, error) {
	table, key := membershipTable(scope)
	var roles []string
	if err := r.db.WithContext(ctx).
		Table(table).
		Where(key+" = ? AND user_id = ?", scopeID, userID).
		Limit(1).
		Pluck("role", &roles).Error; err != nil {
		return "", err
	}
	if len(roles) == 0 {
		return "", nil
	}
	return domain.Role(roles[0]), nil
}

func (r *membershipRepositoryImpl) Add(ctx context.Context, scope domain.Scope, scopeID, userID uuid.UUID, role domain.Role, addedBy uuid.UUID) error {
	db := r.db.WithContext(ctx)
	switch scope {
	case domain.ScopeOrganization:
		return db.Create(&domain.OrganizationMember{OrgID: scopeID, UserID: userID, Role: role}).Error
	case domain.ScopeTeam:
		return db.Create(&domain.TeamMember{TeamID: scopeID, UserID: userID, Role: role}).Error
	default:
		return db.Create(&domain.ProjectMember{ProjectID: scopeID, UserID: userID, Role: role, AddedBy: addedBy}).Error
	}
}

func (r *membershipRepositoryImpl) Remove(ctx context.Context, scope domain.Scope, scopeID, userID uuid.UUID) error {
	table, key := membershipTable(scope)
	res := r.db.WithContext(ctx).Exec("DELETE FROM "+table+" WHERE "+key+" = ? AND user_id = ?", scopeID, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *membershipRepositoryImpl) UpdateRole(ctx context.Context, scope domain.Scope, scopeID, userID uuid.UUID, role domain.Role) error {
	table, key := membershipTable(scope)
	res := r.db.WithContext(ctx).
		Table(table).
		Where(key+" = ? AND user_id = ?", scopeID, userID).
		Updates(map[string]interface{}{"role": string(role), "updated_at": r.db.NowFunc()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *membershipRepositoryImpl) CountOwners(ctx context.Context, scope domain.Scope, scopeID uuid.UUID) (int64, error) {
	table, key := membershipTable(scope)
	var n int64
	err := r.db.WithContext(ctx).
		Table(table).
		Where(key+" = ? AND role = ?", scopeID, string(domain.RoleOwner)).
		Count(&n).Error
	return n, err
}

func (r *membershipRepositoryImpl) UserIDs(ctx context.Context, scope domain.Scope, scopeID uuid.UUID, minRole domain.Role) ([]uuid.UUID, error) {
	table, key := membershipTable(scope)
	var roles []string
	for _, role := range []domain.Role{domain.RoleOwner, domain.RoleAdmin, domain.RoleMember, domain.RoleViewer} {
		if role.AtLeast(minRole) {
			roles = append(roles, string(role))
		}
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table(table).
		Where(key+" = ? AND role IN ?", scopeID, roles).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *membershipRepositoryImpl) ProjectMembers(ctx context.Context, projectID uuid.UUID) ([]*domain.ProjectMember, error) {
	var members []*domain.ProjectMember
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

// ScopesInOrganization lists the teams and projects of orgID that userID belongs to.
func (r *membershipRepositoryImpl) ScopesInOrganization(ctx context.Context, orgID, userID uuid.UUID) ([]uuid.UUID, []uuid.UUID, error) {
	var teamIDs, projectIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Table("team_members").
		Joins("JOIN teams ON teams.id = team_members.team_id").
		Where("teams.org_id = ? AND team_members.user_id = ?", orgID, userID).
		Order("team_members.team_id").
		Pluck("team_members.team_id", &teamIDs).Error; err != nil {
		return nil, nil, err
	}
	if err := r.db.WithContext(ctx).
		Table("project_members").
		Joins("JOIN projects ON projects.id = project_members.project_id").
		Where("projects.org_id = ? AND project_members.user_id = ?", orgID, userID).
		Order("project_members.project_id").
		Pluck("project_members.project_id", &projectIDs).Error; err != nil {
		return nil, nil, err
	}
	return teamIDs, projectIDs, nil
}
