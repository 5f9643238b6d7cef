package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/domain"
)

// OrganizationRepository stores organizations and their teams.
type OrganizationRepository interface {
	WithTx(tx *gorm.DB) OrganizationRepository
	Create(ctx context.Context, org *domain.Organization) error
	FindByID(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Organization, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Organization, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	CreateTeam(ctx context.Context, team *domain.Team) error
	FindTeam(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Team, error)
	ListTeams(ctx context.Context, filter access.Filter, orgID uuid.UUID) ([]*domain.Team, error)
}

type organizationRepositoryImpl struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepositoryImpl{db: db}
}

func (r *organizationRepositoryImpl) WithTx(tx *gorm.DB) OrganizationRepository {
	return &organizationRepositoryImpl{db: tx}
}

func (r *organizationRepositoryImpl) Create(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *organizationRepositoryImpl) FindByID(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Organization, error) {
	var org domain.Organization
	if err := r.db.WithContext(ctx).
		Scopes(filter.Organizations("organizations.id", domain.RoleViewer)).
		Where("id = ?", id).
		First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepositoryImpl) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Organization, error) {
	var orgs []*domain.Organization
	err := r.db.WithContext(ctx).
		Scopes(access.ForUser(userID).Organizations("organizations.id", domain.RoleViewer)).
		Order("created_at ASC").
		Find(&orgs).Error
	return orgs, err
}

func (r *organizationRepositoryImpl) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Organization{}).Where("slug = ?", slug).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *organizationRepositoryImpl) CreateTeam(ctx context.Context, team *domain.Team) error {
	return r.db.WithContext(ctx).Create(team).Error
}

func (r *organizationRepositoryImpl) FindTeam(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Team, error) {
	var team domain.Team
	if err := r.db.WithContext(ctx).
		Scopes(filter.Organizations("teams.org_id", domain.RoleViewer)).
		Where("id = ?", id).
		First(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *organizationRepositoryImpl) ListTeams(ctx context.Context, filter access.Filter, orgID uuid.UUID) ([]*domain.Team, error) {
	var teams []*domain.Team
	err := r.db.WithContext(ctx).
		Scopes(filter.Organizations("teams.org_id", domain.RoleViewer)).
		Where("org_id = ?", orgID).
		Order("name ASC").
		Find(&teams).Error
	return teams, err
}
