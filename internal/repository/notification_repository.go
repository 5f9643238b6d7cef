package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"project-workspace-api/internal/domain"
)

// NotificationRepository stores in-app notifications and the project
// activity feed.
type NotificationRepository interface {
	WithTx(tx *gorm.DB) NotificationRepository
	CreateBatch(ctx context.Context, notifications []*domain.Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)

	AppendActivity(ctx context.Context, entry *domain.ActivityLog) error
	ListActivity(ctx context.Context, projectID uuid.UUID, taskID *uuid.UUID, limit int) ([]*domain.ActivityLog, error)
}

type notificationRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepositoryImpl{db: db}
}

func (r *notificationRepositoryImpl) WithTx(tx *gorm.DB) NotificationRepository {
	return &notificationRepositoryImpl{db: tx}
}

func (r *notificationRepositoryImpl) CreateBatch(ctx context.Context, notifications []*domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&notifications).Error
}

func (r *notificationRepositoryImpl) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	var out []*domain.Notification
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	err := q.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *notificationRepositoryImpl) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&n).Error
	return n, err
}

// MarkRead only touches the caller's own notifications.
func (r *notificationRepositoryImpl) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", gorm.Expr("COALESCE(read_at, ?)", at))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *notificationRepositoryImpl) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", at)
	return res.RowsAffected, res.Error
}

func (r *notificationRepositoryImpl) AppendActivity(ctx context.Context, entry *domain.ActivityLog) error {
	if entry.Payload == nil {
		entry.Payload = datatypes.JSON("{}")
	}
	return r.db.WithContext(ctx).Omit("Project").Create(entry).Error
}

func (r *notificationRepositoryImpl) ListActivity(ctx context.Context, projectID uuid.UUID, taskID *uuid.UUID, limit int) ([]*domain.ActivityLog, error) {
	var out []*domain.ActivityLog
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if taskID != nil {
		q = q.Where("task_id = ?", *taskID)
	}
	err := q.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}
