package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"project-workspace-api/internal/database"
	"project-workspace-api/internal/domain"
	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/repository"
)

// NotificationService reads and acknowledges the caller's in-app notifications.
type NotificationService interface {
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) (*dto.NotificationListResponse, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (*dto.MarkAllReadResponse, error)
}

type notificationServiceImpl struct {
	notifications repository.NotificationRepository
	now           func() time.Time
}

func NewNotificationService(rt *Runtime, notifications repository.NotificationRepository) NotificationService {
	return &notificationServiceImpl{notifications: notifications, now: rt.now}
}

func (s *notificationServiceImpl) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) (*dto.NotificationListResponse, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	items, err := s.notifications.ListForUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	if items == nil {
		items = []*domain.Notification{}
	}
	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	return &dto.NotificationListResponse{Items: items, Unread: unread}, nil
}

// MarkRead acknowledges one notification; other users' notifications are NotFound.
func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := s.notifications.MarkRead(ctx, userID, notificationID, s.now()); err != nil {
		return notFound(err, "notification", notificationID)
	}
	return nil
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, userID uuid.UUID) (*dto.MarkAllReadResponse, error) {
	n, err := s.notifications.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return nil, database.ClassifyError(err)
	}
	return &dto.MarkAllReadResponse{Updated: n}, nil
}
