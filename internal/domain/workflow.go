package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Trigger names the task event a rule listens to.
type Trigger string

const (
	TriggerTaskCreated   Trigger = "task_created"
	TriggerTaskUpdated   Trigger = "task_updated"
	TriggerStatusChanged Trigger = "status_changed"
	TriggerTaskAssigned  Trigger = "task_assigned"
	TriggerTaskApproved  Trigger = "task_approved"
	TriggerTaskRejected  Trigger = "task_rejected"
	TriggerCommentAdded  Trigger = "comment_added"
	TriggerDueSoon       Trigger = "due_soon"
)

var Triggers = []Trigger{
	TriggerTaskCreated, TriggerTaskUpdated, TriggerStatusChanged, TriggerTaskAssigned,
	TriggerTaskApproved, TriggerTaskRejected, TriggerCommentAdded, TriggerDueSoon,
}

func (t Trigger) Valid() bool {
	for _, v := range Triggers {
		if v == t {
			return true
		}
	}
	return false
}

// ConditionOp is the closed set of predicate operators.
type ConditionOp string

const (
	OpEq        ConditionOp = "eq"
	OpNeq       ConditionOp = "neq"
	OpIn        ConditionOp = "in"
	OpContains  ConditionOp = "contains"
	OpGt        ConditionOp = "gt"
	OpLt        ConditionOp = "lt"
	OpIsNull    ConditionOp = "is_null"
	OpNotNull   ConditionOp = "not_null"
	OpChanged   ConditionOp = "changed"
	OpChangedTo ConditionOp = "changed_to"
)

// Condition is one predicate of a rule; all conditions must hold.
type Condition struct {
	Field string      `json:"field" validate:"required,condition_field"`
	Op    ConditionOp `json:"op" validate:"required,oneof=eq neq in contains gt lt is_null not_null changed changed_to"`
	Value interface{} `json:"value,omitempty"`
}

// ActionType is the closed set of rule effects.
type ActionType string

const (
	ActionSetField         ActionType = "set_field"
	ActionAssign           ActionType = "assign"
	ActionUnassign         ActionType = "unassign"
	ActionCreateSubtask    ActionType = "create_subtask"
	ActionPostComment      ActionType = "post_comment"
	ActionEmitNotification ActionType = "emit_notification"
	ActionSlackNotify      ActionType = "slack_notify"
)

// Action is one effect of a rule. Which fields apply depends on Type.
type Action struct {
	Type       ActionType  `json:"type" validate:"required,oneof=set_field assign unassign create_subtask post_comment emit_notification slack_notify"`
	Field      string      `json:"field,omitempty" validate:"omitempty,oneof=stage_id priority assignee tag_add tag_remove color"`
	Value      interface{} `json:"value,omitempty"`
	UserID     *uuid.UUID  `json:"user_id,omitempty"`
	Title      string      `json:"title,omitempty" validate:"max=500"`
	Template   string      `json:"template,omitempty" validate:"max=10000"`
	Recipients []string    `json:"recipients,omitempty" validate:"dive,required"`
	Text       string      `json:"text,omitempty" validate:"max=2000"`
	Event      string      `json:"event,omitempty"`
}

// WorkflowRule is an automation definition scoped to a project.
type WorkflowRule struct {
	BaseModel
	ProjectID  uuid.UUID                      `gorm:"type:uuid;not null;index:idx_workflow_rules_project_trigger,priority:1" json:"project_id"`
	Name       string                         `gorm:"type:varchar(255);not null" json:"name"`
	Enabled    bool                           `gorm:"not null" json:"enabled"`
	Trigger    Trigger                        `gorm:"type:varchar(40);not null;index:idx_workflow_rules_project_trigger,priority:2" json:"trigger"`
	Conditions datatypes.JSONSlice[Condition] `gorm:"type:jsonb" json:"conditions"`
	Actions    datatypes.JSONSlice[Action]    `gorm:"type:jsonb;not null" json:"actions"`
	CreatedBy  uuid.UUID                      `gorm:"type:uuid;not null" json:"created_by"`
	Project    Project                        `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}

// WorkflowExecution is the append-only log of rule runs. (RuleID, EventKey)
// is unique so a rule fires at most once per triggering event.
type WorkflowExecution struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	RuleID          uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:uq_workflow_executions_rule_event" json:"rule_id"`
	EventKey        string       `gorm:"type:varchar(200);not null;uniqueIndex:uq_workflow_executions_rule_event" json:"event_key"`
	ProjectID       uuid.UUID    `gorm:"type:uuid;not null;index:idx_workflow_executions_project_id" json:"project_id"`
	TaskID          *uuid.UUID   `gorm:"type:uuid;index:idx_workflow_executions_task_id" json:"task_id,omitempty"`
	Trigger         Trigger      `gorm:"type:varchar(40);not null" json:"trigger"`
	Depth           int          `gorm:"not null" json:"depth"`
	ExecutedAt      time.Time    `gorm:"not null" json:"executed_at"`
	Success         bool         `gorm:"not null" json:"success"`
	ErrorMessage    string       `gorm:"type:text" json:"error_message,omitempty"`
	ActionsExecuted int          `gorm:"not null" json:"actions_executed"`
	Rule            WorkflowRule `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"-"`
}

func (WorkflowRule) TableName() string {
	return "workflow_rules"
}

func (WorkflowExecution) TableName() string {
	return "workflow_executions"
}

func (e *WorkflowExecution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
