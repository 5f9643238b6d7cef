package dto

import (
	"time"

	"github.com/google/uuid"

	"project-workspace-api/internal/domain"
)

// CreateTaskRequest represents the request to create a task
// @Description stage_id defaults to the first stage; position defaults to the end of the stage
type CreateTaskRequest struct {
	Title        string                 `json:"title" binding:"required,min=1,max=500" example:"Write release notes"`
	Description  string                 `json:"description" binding:"max=20000"`
	StageID      string                 `json:"stage_id" binding:"max=64" example:"todo"`
	Position     *int                   `json:"position,omitempty" binding:"omitempty,min=0"`
	Priority     domain.Priority        `json:"priority" binding:"omitempty,oneof=none low medium high urgent" example:"medium"`
	Tags         []string               `json:"tags,omitempty" binding:"omitempty,dive,min=1,max=50"`
	Color        *string                `json:"color,omitempty"`
	CustomFields map[string]interface{} `json:"custom_fields,omitempty"`
	StartDate    *time.Time             `json:"start_date,omitempty"`
	DueDate      *time.Time             `json:"due_date,omitempty"`
	ParentTaskID *uuid.UUID             `json:"parent_task_id,omitempty"`
	AssigneeIDs  []uuid.UUID            `json:"assignee_ids,omitempty"`
}

// UpdateTaskRequest represents a partial task update
// @Description stage changes go through the move endpoint and approval fields through approve/reject;
// @Description sending any of them is rejected. expected_updated_at enables optimistic concurrency.
type UpdateTaskRequest struct {
	Title             *string                `json:"title,omitempty" binding:"omitempty,min=1,max=500"`
	Description       *string                `json:"description,omitempty" binding:"omitempty,max=20000"`
	Priority          *domain.Priority       `json:"priority,omitempty" binding:"omitempty,oneof=none low medium high urgent"`
	Tags              *[]string              `json:"tags,omitempty"`
	Color             *string                `json:"color,omitempty"`
	CustomFields      map[string]interface{} `json:"custom_fields,omitempty"`
	StartDate         *time.Time             `json:"start_date,omitempty"`
	DueDate           *time.Time             `json:"due_date,omitempty"`
	ClearDueDate      bool                   `json:"clear_due_date,omitempty"`
	ParentTaskID      *uuid.UUID             `json:"parent_task_id,omitempty"`
	ClearParent       bool                   `json:"clear_parent,omitempty"`
	ExpectedUpdatedAt *time.Time             `json:"expected_updated_at,omitempty"`

	StageID         *string    `json:"stage_id,omitempty"`
	ApprovalStatus  *string    `json:"approval_status,omitempty"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
}

// ForbiddenField names the first field that may not be written through update_task.
func (r *UpdateTaskRequest) ForbiddenField() string {
	switch {
	case r.StageID != nil:
		return "stage_id"
	case r.ApprovalStatus != nil:
		return "approval_status"
	case r.ApprovedBy != nil:
		return "approved_by"
	case r.ApprovedAt != nil:
		return "approved_at"
	case r.CompletedAt != nil:
		return "completed_at"
	case r.RejectionReason != nil:
		return "rejection_reason"
	}
	return ""
}

type MoveTaskRequest struct {
	StageID  string `json:"stage_id" binding:"required,max=64" example:"done"`
	Position *int   `json:"position,omitempty" binding:"omitempty,min=0"`
}

type ReorderStageRequest struct {
	TaskIDs []uuid.UUID `json:"task_ids" binding:"required"`
}

type RejectTaskRequest struct {
	Reason        string `json:"reason" binding:"max=2000" example:"incomplete"`
	ReturnStageID string `json:"return_stage_id" binding:"required,max=64" example:"todo"`
}

type AssignTaskRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// AddDependencyRequest marks the path task as blocked by blocking_task_id
type AddDependencyRequest struct {
	BlockingTaskID uuid.UUID `json:"blocking_task_id" binding:"required"`
}

type CreateSubtaskRequest struct {
	Title      string     `json:"title" binding:"required,min=1,max=500"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
}

// TaskResponse is a task with its assignees
type TaskResponse struct {
	*domain.Task
	Assignees []uuid.UUID `json:"assignees"`
}

// TaskDetailResponse adds the rows a task owns and its dependency edges.
// Dependencies are advisory: has_incomplete_blockers warns but never blocks.
type TaskDetailResponse struct {
	TaskResponse
	Subtasks              []*domain.Subtask `json:"subtasks"`
	Blocking              []uuid.UUID       `json:"blocking"`
	Blocked               []uuid.UUID       `json:"blocked"`
	HasIncompleteBlockers bool              `json:"has_incomplete_blockers"`
}

// NewTaskResponse pairs a task with its assignees, never returning a nil list.
func NewTaskResponse(t *domain.Task, assignees []uuid.UUID) *TaskResponse {
	if assignees == nil {
		assignees = []uuid.UUID{}
	}
	return &TaskResponse{Task: t, Assignees: assignees}
}
