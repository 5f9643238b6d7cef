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

// TimeEntryRepository stores time tracking entries.
type TimeEntryRepository interface {
	WithTx(tx *gorm.DB) TimeEntryRepository
	Create(ctx context.Context, entry *domain.TimeEntry) error
	Save(ctx context.Context, entry *domain.TimeEntry) error
	FindRunning(ctx context.Context, userID uuid.UUID) (*domain.TimeEntry, error)
	ListByTask(ctx context.Context, filter access.Filter, taskID uuid.UUID) ([]*domain.TimeEntry, error)
	CountRunning(ctx context.Context) (int64, error)
}

type timeEntryRepositoryImpl struct {
	db *gorm.DB
}

func NewTimeEntryRepository(db *gorm.DB) TimeEntryRepository {
	return &timeEntryRepositoryImpl{db: db}
}

func (r *timeEntryRepositoryImpl) WithTx(tx *gorm.DB) TimeEntryRepository {
	return &timeEntryRepositoryImpl{db: tx}
}

func (r *timeEntryRepositoryImpl) Create(ctx context.Context, entry *domain.TimeEntry) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(entry).Error
}

func (r *timeEntryRepositoryImpl) Save(ctx context.Context, entry *domain.TimeEntry) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(entry).Error
}

// FindRunning returns the caller's running entry, or nil when none runs.
func (r *timeEntryRepositoryImpl) FindRunning(ctx context.Context, userID uuid.UUID) (*domain.TimeEntry, error) {
	var entry domain.TimeEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ended_at IS NULL", userID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *timeEntryRepositoryImpl) ListByTask(ctx context.Context, filter access.Filter, taskID uuid.UUID) ([]*domain.TimeEntry, error) {
	var entries []*domain.TimeEntry
	err := r.db.WithContext(ctx).
		Scopes(filter.Readable("time_entries.project_id")).
		Where("task_id = ?", taskID).
		Order("started_at DESC").
		Find(&entries).Error
	return entries, err
}

func (r *timeEntryRepositoryImpl) CountRunning(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.TimeEntry{}).Where("ended_at IS NULL").Count(&n).Error
	return n, err
}
