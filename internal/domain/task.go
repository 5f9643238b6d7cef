package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank orders priorities for gt/lt comparisons.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

type ApprovalStatus string

const (
	ApprovalNotRequired ApprovalStatus = "not_required"
	ApprovalPending     ApprovalStatus = "pending"
	ApprovalApproved    ApprovalStatus = "approved"
	ApprovalRejected    ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalNotRequired, ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// TaskColors is the fixed palette a task color must come from.
var TaskColors = []string{"red", "orange", "yellow", "green", "teal", "blue", "purple", "pink", "gray"}

func ValidTaskColor(c string) bool {
	for _, v := range TaskColors {
		if v == c {
			return true
		}
	}
	return false
}

// TaskLink is an entry of the free-form custom_fields.links list.
type TaskLink struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
}

// Task is the atom of work inside a project.
type Task struct {
	BaseModel
	ProjectID       uuid.UUID                   `gorm:"type:uuid;not null;index:idx_tasks_project_id;index:idx_tasks_project_stage_position,priority:1" json:"project_id"`
	Title           string                      `gorm:"type:varchar(500);not null" json:"title"`
	Description     string                      `gorm:"type:text" json:"description"`
	Tags            datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"tags"`
	Color           *string                     `gorm:"type:varchar(20)" json:"color,omitempty"`
	CustomFields    datatypes.JSONMap           `gorm:"type:jsonb" json:"custom_fields,omitempty"`
	StageID         string                      `gorm:"type:varchar(64);not null;index:idx_tasks_project_stage_position,priority:2" json:"stage_id"`
	Position        int                         `gorm:"not null;default:0;index:idx_tasks_project_stage_position,priority:3" json:"position"`
	StartDate       *time.Time                  `json:"start_date,omitempty"`
	DueDate         *time.Time                  `gorm:"index:idx_tasks_due_date" json:"due_date,omitempty"`
	CompletedAt     *time.Time                  `json:"completed_at,omitempty"`
	Priority        Priority                    `gorm:"type:varchar(20);not null;default:'none'" json:"priority"`
	ApprovalStatus  ApprovalStatus              `gorm:"type:varchar(20);not null;default:'not_required';index:idx_tasks_approval_status" json:"approval_status"`
	ApprovedBy      *uuid.UUID                  `gorm:"type:uuid" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time                  `json:"approved_at,omitempty"`
	RejectionReason *string                     `gorm:"type:text" json:"rejection_reason,omitempty"`
	ParentTaskID    *uuid.UUID                  `gorm:"type:uuid;index:idx_tasks_parent_task_id" json:"parent_task_id,omitempty"`
	CreatedBy       uuid.UUID                   `gorm:"type:uuid;not null" json:"created_by"`
	UpdatedBy       uuid.UUID                   `gorm:"type:uuid" json:"updated_by"`
	MovedToDoneAt   *time.Time                  `json:"moved_to_done_at,omitempty"`
	MovedToDoneBy   *uuid.UUID                  `gorm:"type:uuid" json:"moved_to_done_by,omitempty"`
	Project         Project                     `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Parent          *Task                       `gorm:"foreignKey:ParentTaskID;constraint:OnDelete:SET NULL" json:"-"`
}

// Clone returns a deep copy of the mutable parts of t, used for before/after snapshots.
func (t *Task) Clone() *Task {
	cp := *t
	cp.Tags = append(datatypes.JSONSlice[string](nil), t.Tags...)
	if t.CustomFields != nil {
		cp.CustomFields = make(datatypes.JSONMap, len(t.CustomFields))
		for k, v := range t.CustomFields {
			cp.CustomFields[k] = v
		}
	}
	cp.Project = Project{}
	cp.Parent = nil
	return &cp
}

// HasTag reports whether tag is set on t.
func (t *Task) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}

// Subtask is a checklist item owned by a task.
type Subtask struct {
	BaseModel
	TaskID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_subtasks_task_id" json:"task_id"`
	Title       string     `gorm:"type:varchar(500);not null" json:"title"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	AssignedTo  *uuid.UUID `gorm:"type:uuid" json:"assigned_to,omitempty"`
	Position    int        `gorm:"not null;default:0" json:"position"`
	CreatedBy   uuid.UUID  `gorm:"type:uuid" json:"created_by"`
	Task        Task       `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"-"`
}

type TaskAssignment struct {
	BaseModel
	TaskID     uuid.UUID `gorm:"type:uuid;not null;index:idx_task_assignments_task_id;uniqueIndex:uq_task_assignments_task_user" json:"task_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_task_assignments_user_id;uniqueIndex:uq_task_assignments_task_user" json:"user_id"`
	AssignedBy uuid.UUID `gorm:"type:uuid;not null" json:"assigned_by"`
	AssignedAt time.Time `gorm:"not null" json:"assigned_at"`
	Task       Task      `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"-"`
}

// TaskDependency records that BlockingTaskID must finish before BlockedTaskID.
type TaskDependency struct {
	BaseModel
	ProjectID      uuid.UUID `gorm:"type:uuid;not null;index:idx_task_dependencies_project_id" json:"project_id"`
	BlockingTaskID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_task_dependencies_pair" json:"blocking_task_id"`
	BlockedTaskID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_task_dependencies_pair;index:idx_task_dependencies_blocked" json:"blocked_task_id"`
	CreatedBy      uuid.UUID `gorm:"type:uuid" json:"created_by"`
	BlockingTask   Task      `gorm:"foreignKey:BlockingTaskID;constraint:OnDelete:CASCADE" json:"-"`
	BlockedTask    Task      `gorm:"foreignKey:BlockedTaskID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Task) TableName() string {
	return "tasks"
}

func (Subtask) TableName() string {
	return "subtasks"
}

func (TaskAssignment) TableName() string {
	return "task_assignments"
}

func (TaskDependency) TableName() string {
	return "task_dependencies"
}
