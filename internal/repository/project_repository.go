package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/domain"
)

// ProjectRepository stores projects and milestones.
type ProjectRepository interface {
	WithTx(tx *gorm.DB) ProjectRepository
	Create(ctx context.Context, project *domain.Project) error
	FindByID(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Project, error)
	List(ctx context.Context, filter access.Filter, orgID *uuid.UUID, includeArchived bool) ([]*domain.Project, error)
	Save(ctx context.Context, project *domain.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountActive(ctx context.Context) (int64, error)

	CreateMilestone(ctx context.Context, m *domain.Milestone) error
	FindMilestone(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Milestone, error)
	ListMilestones(ctx context.Context, filter access.Filter, projectID uuid.UUID) ([]*domain.Milestone, error)
	SaveMilestone(ctx context.Context, m *domain.Milestone) error
	DeleteMilestone(ctx context.Context, id uuid.UUID) error
}

type projectRepositoryImpl struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepositoryImpl{db: db}
}

func (r *projectRepositoryImpl) WithTx(tx *gorm.DB) ProjectRepository {
	return &projectRepositoryImpl{db: tx}
}

func (r *projectRepositoryImpl) Create(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(project).Error
}

func (r *projectRepositoryImpl) FindByID(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Project, error) {
	var project domain.Project
	if err := r.db.WithContext(ctx).
		Scopes(filter.Readable("projects.id")).
		Where("id = ?", id).
		First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepositoryImpl) List(ctx context.Context, filter access.Filter, orgID *uuid.UUID, includeArchived bool) ([]*domain.Project, error) {
	q := r.db.WithContext(ctx).Scopes(filter.Readable("projects.id"))
	if orgID != nil {
		q = q.Where("org_id = ?", *orgID)
	}
	if !includeArchived {
		q = q.Where("status = ?", domain.ProjectStatusActive)
	}
	var projects []*domain.Project
	err := q.Order("created_at DESC").Find(&projects).Error
	return projects, err
}

func (r *projectRepositoryImpl) Save(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(project).Error
}

// Delete removes a project and everything it owns. Children are deleted
// explicitly so the result does not depend on the dialect enforcing cascades.
func (r *projectRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	taskIDs := db.Session(&gorm.Session{NewDB: true}).Model(&domain.Task{}).Select("id").Where("project_id = ?", id)

	steps := []func() error{
		func() error { return deleteTaskChildren(db, taskIDs) },
		func() error { return db.Where("project_id = ?", id).Delete(&domain.Task{}).Error },
		func() error {
			ruleIDs := db.Session(&gorm.Session{NewDB: true}).Model(&domain.WorkflowRule{}).Select("id").Where("project_id = ?", id)
			return db.Where("rule_id IN (?)", ruleIDs).Delete(&domain.WorkflowExecution{}).Error
		},
		func() error { return db.Where("project_id = ?", id).Delete(&domain.WorkflowRule{}).Error },
		func() error {
			integrationIDs := db.Session(&gorm.Session{NewDB: true}).Model(&domain.SlackIntegration{}).Select("id").Where("project_id = ?", id)
			return db.Where("integration_id IN (?)", integrationIDs).Delete(&domain.SlackThread{}).Error
		},
		func() error { return db.Where("project_id = ?", id).Delete(&domain.SlackIntegration{}).Error },
		func() error { return db.Where("project_id = ?", id).Delete(&domain.Milestone{}).Error },
		func() error { return db.Where("project_id = ?", id).Delete(&domain.ActivityLog{}).Error },
		func() error { return db.Where("project_id = ?", id).Delete(&domain.ProjectMember{}).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	res := db.Where("id = ?", id).Delete(&domain.Project{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *projectRepositoryImpl) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Project{}).Where("status = ?", domain.ProjectStatusActive).Count(&n).Error
	return n, err
}

func (r *projectRepositoryImpl) CreateMilestone(ctx context.Context, m *domain.Milestone) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error
}

func (r *projectRepositoryImpl) FindMilestone(ctx context.Context, filter access.Filter, id uuid.UUID) (*domain.Milestone, error) {
	var m domain.Milestone
	if err := r.db.WithContext(ctx).
		Scopes(filter.Readable("milestones.project_id")).
		Where("id = ?", id).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *projectRepositoryImpl) ListMilestones(ctx context.Context, filter access.Filter, projectID uuid.UUID) ([]*domain.Milestone, error) {
	var ms []*domain.Milestone
	err := r.db.WithContext(ctx).
		Scopes(filter.Readable("milestones.project_id")).
		Where("project_id = ?", projectID).
		Order("target_date ASC").
		Find(&ms).Error
	return ms, err
}

func (r *projectRepositoryImpl) SaveMilestone(ctx context.Context, m *domain.Milestone) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(m).Error
}

func (r *projectRepositoryImpl) DeleteMilestone(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Milestone{}).Error
}
