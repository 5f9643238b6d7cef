package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTaskAssigned    NotificationType = "task_assigned"
	NotificationMentioned       NotificationType = "mentioned"
	NotificationCommentAdded    NotificationType = "comment_added"
	NotificationApprovalRequest NotificationType = "approval_requested"
	NotificationTaskApproved    NotificationType = "task_approved"
	NotificationTaskRejected    NotificationType = "task_rejected"
	NotificationDueSoon         NotificationType = "due_soon"
	NotificationAutomation      NotificationType = "automation"
)

// Notification is an in-app message for one recipient.
type Notification struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_notifications_user_read,priority:1" json:"user_id"`
	ProjectID *uuid.UUID       `gorm:"type:uuid;index:idx_notifications_project_id" json:"project_id,omitempty"`
	TaskID    *uuid.UUID       `gorm:"type:uuid" json:"task_id,omitempty"`
	ActorID   *uuid.UUID       `gorm:"type:uuid" json:"actor_id,omitempty"`
	Type      NotificationType `gorm:"type:varchar(40);not null" json:"type"`
	Title     string           `gorm:"type:varchar(500);not null" json:"title"`
	Body      string           `gorm:"type:text" json:"body"`
	ReadAt    *time.Time       `gorm:"index:idx_notifications_user_read,priority:2" json:"read_at,omitempty"`
	CreatedAt time.Time        `gorm:"not null" json:"created_at"`
}

// ActivityLog is appended in the same transaction as every task mutation.
type ActivityLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID      `gorm:"type:uuid;not null;index:idx_activity_logs_project_created,priority:1" json:"project_id"`
	TaskID    *uuid.UUID     `gorm:"type:uuid;index:idx_activity_logs_task_id" json:"task_id,omitempty"`
	ActorID   uuid.UUID      `gorm:"type:uuid;not null" json:"actor_id"`
	Action    string         `gorm:"type:varchar(60);not null" json:"action"`
	Payload   datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index:idx_activity_logs_project_created,priority:2" json:"created_at"`
	Project   Project        `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
