package domain

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProjectStatus is the lifecycle of a project.
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusArchived ProjectStatus = "archived"
)

func (s ProjectStatus) Valid() bool {
	return s == ProjectStatusActive || s == ProjectStatusArchived
}

// WorkflowStage is one column of a project's workflow.
type WorkflowStage struct {
	ID     string `json:"stage_id" validate:"required,max=64"`
	Name   string `json:"name" validate:"required,max=100"`
	Color  string `json:"color,omitempty" validate:"max=20"`
	IsDone bool   `json:"is_done_stage,omitempty"`
}

// Stages is an ordered workflow.
type Stages []WorkflowStage

// Find returns the stage with the given id.
func (s Stages) Find(id string) (WorkflowStage, bool) {
	for _, st := range s {
		if st.ID == id {
			return st, true
		}
	}
	return WorkflowStage{}, false
}

// Has reports whether id names a stage.
func (s Stages) Has(id string) bool {
	_, ok := s.Find(id)
	return ok
}

// IsDone reports whether id names a done stage. Unknown ids are not done.
func (s Stages) IsDone(id string) bool {
	st, ok := s.Find(id)
	return ok && st.IsDone
}

// First returns the id of the first stage, or "" for an empty workflow.
func (s Stages) First() string {
	if len(s) == 0 {
		return ""
	}
	return s[0].ID
}

// DefaultStages is the workflow a project gets when none is supplied.
func DefaultStages() Stages {
	return Stages{
		{ID: "todo", Name: "To Do", Color: "#94a3b8"},
		{ID: "in_progress", Name: "In Progress", Color: "#3b82f6"},
		{ID: "review", Name: "Review", Color: "#f59e0b"},
		{ID: "done", Name: "Done", Color: "#22c55e", IsDone: true},
	}
}

// Project is the primary unit of work.
type Project struct {
	BaseModel
	OrgID           uuid.UUID                          `gorm:"type:uuid;not null;index:idx_projects_org_id" json:"org_id"`
	TeamID          *uuid.UUID                         `gorm:"type:uuid;index:idx_projects_team_id" json:"team_id,omitempty"`
	Name            string                             `gorm:"type:varchar(255);not null" json:"name"`
	Description     string                             `gorm:"type:text" json:"description"`
	Color           string                             `gorm:"type:varchar(20)" json:"color"`
	Image           string                             `gorm:"type:text" json:"image"`
	Status          ProjectStatus                      `gorm:"type:varchar(20);not null;default:'active';index:idx_projects_status" json:"status"`
	WorkflowStages  datatypes.JSONSlice[WorkflowStage] `gorm:"type:jsonb;not null" json:"workflow_stages"`
	RequireApproval bool                               `gorm:"not null" json:"require_approval"`
	CreatedBy       uuid.UUID                          `gorm:"type:uuid;not null" json:"created_by"`
	Organization    Organization                       `gorm:"foreignKey:OrgID;constraint:OnDelete:CASCADE" json:"-"`
	Team            *Team                              `gorm:"foreignKey:TeamID;constraint:OnDelete:SET NULL" json:"-"`
}

// Stages returns the project's workflow.
func (p *Project) Stages() Stages {
	return Stages(p.WorkflowStages)
}

func (p *Project) IsArchived() bool {
	return p.Status == ProjectStatusArchived
}

// ProjectMember grants a user a role in a project.
type ProjectMember struct {
	BaseModel
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index:idx_project_members_project_id;uniqueIndex:uq_project_members_project_user" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_project_members_user_id;uniqueIndex:uq_project_members_project_user" json:"user_id"`
	Role      Role      `gorm:"type:varchar(20);not null;index:idx_project_members_role" json:"role"`
	AddedBy   uuid.UUID `gorm:"type:uuid" json:"added_by"`
	Project   Project   `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}

// Milestone marks a target date inside a project.
type Milestone struct {
	BaseModel
	ProjectID   uuid.UUID `gorm:"type:uuid;not null;index:idx_milestones_project_id" json:"project_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	TargetDate  string    `gorm:"type:varchar(10);not null" json:"target_date"`
	Color       string    `gorm:"type:varchar(20)" json:"color"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedBy   uuid.UUID `gorm:"type:uuid" json:"created_by"`
	Project     Project   `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Project) TableName() string {
	return "projects"
}

func (ProjectMember) TableName() string {
	return "project_members"
}

func (Milestone) TableName() string {
	return "milestones"
}
