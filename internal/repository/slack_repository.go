package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"project-workspace-api/internal/access"
	"project-workspace-api/internal/domain"
)

// SlackRepository stores per-project Slack integrations and the thread
// timestamps used to group a task's daily messages.
type SlackRepository interface {
	WithTx(tx *gorm.DB) SlackRepository
	Create(ctx context.Context, integration *domain.SlackIntegration) error
	Save(ctx context.Context, integration *domain.SlackIntegration) error
	FindByProject(ctx context.Context, filter access.Filter, projectID uuid.UUID) (*domain.SlackIntegration, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindThread(ctx context.Context, integrationID, taskID uuid.UUID, day string) (*domain.SlackThread, error)
	SaveThread(ctx context.Context, thread *domain.SlackThread) error
}

type slackRepositoryImpl struct {
	db *gorm.DB
}

func NewSlackRepository(db *gorm.DB) SlackRepository {
	return &slackRepositoryImpl{db: db}
}

func (r *slackRepositoryImpl) WithTx(tx *gorm.DB) SlackRepository {
	return &slackRepositoryImpl{db: tx}
}

func (r *slackRepositoryImpl) Create(ctx context.Context, integration *domain.SlackIntegration) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(integration).Error
}

func (r *slackRepositoryImpl) Save(ctx context.Context, integration *domain.SlackIntegration) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(integration).Error
}

func (r *slackRepositoryImpl) FindByProject(ctx context.Context, filter access.Filter, projectID uuid.UUID) (*domain.SlackIntegration, error) {
	var integration domain.SlackIntegration
	if err := r.db.WithContext(ctx).
		Scopes(filter.Readable("slack_integrations.project_id")).
		Where("project_id = ?", projectID).
		First(&integration).Error; err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *slackRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("integration_id = ?", id).Delete(&domain.SlackThread{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&domain.SlackIntegration{}).Error
}

// FindThread returns nil when no message was posted for the task that day.
func (r *slackRepositoryImpl) FindThread(ctx context.Context, integrationID, taskID uuid.UUID, day string) (*domain.SlackThread, error) {
	var thread domain.SlackThread
	err := r.db.WithContext(ctx).
		Where("integration_id = ? AND task_id = ? AND day = ?", integrationID, taskID, day).
		First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// SaveThread keeps the first thread recorded for a day.
func (r *slackRepositoryImpl) SaveThread(ctx context.Context, thread *domain.SlackThread) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "integration_id"}, {Name: "task_id"}, {Name: "day"}},
			DoNothing: true,
		}).
		Create(thread).Error
}
