package dto

import (
	"github.com/google/uuid"

	"project-workspace-api/internal/domain"
)

// CreateProjectRequest represents the request to create a new project
// @Description workflow_stages defaults to todo, in_progress, review, done
// @Description require_approval defaults to true
type CreateProjectRequest struct {
	OrgID           uuid.UUID              `json:"org_id" binding:"required" example:"539167fb-b599-41ba-9ead-344a6d0b3a2f"`
	TeamID          *uuid.UUID             `json:"team_id,omitempty"`
	Name            string                 `json:"name" binding:"required,min=1,max=255" example:"Q1 Launch"`
	Description     string                 `json:"description" binding:"max=5000"`
	Color           string                 `json:"color" binding:"max=20" example:"#6366f1"`
	Image           string                 `json:"image" binding:"max=2000"`
	WorkflowStages  []domain.WorkflowStage `json:"workflow_stages,omitempty"`
	RequireApproval *bool                  `json:"require_approval,omitempty"`
}

// UpdateProjectRequest represents the request to update a project. All fields are optional.
type UpdateProjectRequest struct {
	Name            *string                `json:"name,omitempty" binding:"omitempty,min=1,max=255"`
	Description     *string                `json:"description,omitempty" binding:"omitempty,max=5000"`
	Color           *string                `json:"color,omitempty" binding:"omitempty,max=20"`
	Image           *string                `json:"image,omitempty" binding:"omitempty,max=2000"`
	WorkflowStages  []domain.WorkflowStage `json:"workflow_stages,omitempty"`
	RequireApproval *bool                  `json:"require_approval,omitempty"`
}

// ProjectResponse is a project with the caller's role in it
type ProjectResponse struct {
	*domain.Project
	Role domain.Role `json:"role"`
}

type CreateMilestoneRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255" example:"Beta"`
	TargetDate  string `json:"target_date" binding:"required,datetime=2006-01-02" example:"2026-03-31"`
	Color       string `json:"color" binding:"max=20"`
	Description string `json:"description" binding:"max=5000"`
}

type UpdateMilestoneRequest struct {
	Name        *string `json:"name,omitempty" binding:"omitempty,min=1,max=255"`
	TargetDate  *string `json:"target_date,omitempty" binding:"omitempty,datetime=2006-01-02"`
	Color       *string `json:"color,omitempty" binding:"omitempty,max=20"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=5000"`
}
