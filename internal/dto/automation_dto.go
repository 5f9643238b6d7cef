package dto

import (
	"project-workspace-api/internal/domain"
)

// CreateWorkflowRuleRequest represents an automation rule definition
// @Description conditions are ANDed; actions run in order
type CreateWorkflowRuleRequest struct {
	Name       string             `json:"name" binding:"required,min=1,max=255" example:"Auto review"`
	Trigger    domain.Trigger     `json:"trigger" binding:"required" example:"status_changed"`
	Conditions []domain.Condition `json:"conditions"`
	Actions    []domain.Action    `json:"actions" binding:"required,min=1"`
	Enabled    *bool              `json:"enabled,omitempty"`
}

type EnableWorkflowRuleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// CreateSlackIntegrationRequest configures Slack delivery for a project
// @Description exactly one of webhook_url or channel_id with access_token must be given
// @Description event flags default to true
type CreateSlackIntegrationRequest struct {
	WebhookURL          *string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	ChannelID           *string `json:"channel_id,omitempty" binding:"omitempty,max=64"`
	AccessToken         *string `json:"access_token,omitempty"`
	NotifyTaskCreated   *bool   `json:"notify_task_created,omitempty"`
	NotifyStatusChanged *bool   `json:"notify_status_changed,omitempty"`
	NotifyTaskAssigned  *bool   `json:"notify_task_assigned,omitempty"`
	NotifyApprovals     *bool   `json:"notify_approvals,omitempty"`
	NotifyComments      *bool   `json:"notify_comments,omitempty"`
	NotifyDueSoon       *bool   `json:"notify_due_soon,omitempty"`
}

// SlackIntegrationResponse never carries the access token
type SlackIntegrationResponse struct {
	*domain.SlackIntegration
	HasAccessToken bool `json:"has_access_token"`
}
