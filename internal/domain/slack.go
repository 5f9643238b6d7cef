package domain

import (
	"github.com/google/uuid"
)

// SlackIntegration delivers project events to Slack, either through an
// incoming webhook or through chat.postMessage with a bot token.
type SlackIntegration struct {
	BaseModel
	ProjectID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_slack_integrations_project" json:"project_id"`
	WebhookURL          *string   `gorm:"type:text" json:"webhook_url,omitempty"`
	ChannelID           *string   `gorm:"type:varchar(64)" json:"channel_id,omitempty"`
	AccessToken         *string   `gorm:"type:text" json:"-"`
	IsActive            bool      `gorm:"not null" json:"is_active"`
	NotifyTaskCreated   bool      `gorm:"not null" json:"notify_task_created"`
	NotifyStatusChanged bool      `gorm:"not null" json:"notify_status_changed"`
	NotifyTaskAssigned  bool      `gorm:"not null" json:"notify_task_assigned"`
	NotifyApprovals     bool      `gorm:"not null" json:"notify_approvals"`
	NotifyComments      bool      `gorm:"not null" json:"notify_comments"`
	NotifyDueSoon       bool      `gorm:"not null" json:"notify_due_soon"`
	CreatedBy           uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	Project             Project   `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}

// UsesBotToken reports whether delivery goes through chat.postMessage.
func (s *SlackIntegration) UsesBotToken() bool {
	return s.AccessToken != nil && *s.AccessToken != "" && s.ChannelID != nil && *s.ChannelID != ""
}

// Enabled reports whether events of trigger t should be delivered.
func (s *SlackIntegration) Enabled(t Trigger) bool {
	if !s.IsActive {
		return false
	}
	switch t {
	case TriggerTaskCreated:
		return s.NotifyTaskCreated
	case TriggerStatusChanged:
		return s.NotifyStatusChanged
	case TriggerTaskAssigned:
		return s.NotifyTaskAssigned
	case TriggerTaskApproved, TriggerTaskRejected:
		return s.NotifyApprovals
	case TriggerCommentAdded:
		return s.NotifyComments
	case TriggerDueSoon:
		return s.NotifyDueSoon
	default:
		return false
	}
}

// SlackThread remembers the thread a task's messages went to on a given day.
type SlackThread struct {
	BaseModel
	IntegrationID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uq_slack_threads_integration_task_day" json:"integration_id"`
	TaskID        uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uq_slack_threads_integration_task_day" json:"task_id"`
	Day           string           `gorm:"type:varchar(10);not null;uniqueIndex:uq_slack_threads_integration_task_day" json:"day"`
	ThreadTS      string           `gorm:"type:varchar(64);not null" json:"thread_ts"`
	Integration   SlackIntegration `gorm:"foreignKey:IntegrationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (SlackIntegration) TableName() string {
	return "slack_integrations"
}

func (SlackThread) TableName() string {
	return "slack_threads"
}
