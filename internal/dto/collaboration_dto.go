package dto

import (
	"time"

	"github.com/google/uuid"

	"project-workspace-api/internal/domain"
)

// CreateCommentRequest represents the request to add a comment
// @Description mentioned users are notified; attachments reference files stored elsewhere
type CreateCommentRequest struct {
	Content     string                     `json:"content" binding:"required,min=1,max=10000"`
	Mentions    []uuid.UUID                `json:"mentions,omitempty"`
	Attachments []domain.CommentAttachment `json:"attachments,omitempty" binding:"omitempty,max=20"`
}

type StartTimerRequest struct {
	Description string `json:"description" binding:"max=2000"`
}

// LogTimeRequest records finished work. Either ended_at or duration_minutes is required.
type LogTimeRequest struct {
	StartedAt       time.Time  `json:"started_at" binding:"required"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty" binding:"omitempty,min=1,max=1440"`
	Description     string     `json:"description" binding:"max=2000"`
}

type NotificationListResponse struct {
	Items  []*domain.Notification `json:"items"`
	Unread int64                  `json:"unread"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

type IssuePinRequest struct {
	Email string `json:"email" binding:"required,email,max=320"`
}

type IssuePinResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyPinRequest struct {
	Email string `json:"email" binding:"required,email,max=320"`
	Pin   string `json:"pin" binding:"required,len=6,numeric"`
}
