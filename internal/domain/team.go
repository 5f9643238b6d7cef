package domain

import (
	"github.com/google/uuid"
)

// Team is an optional grouping of people and projects inside an organization.
type Team struct {
	BaseModel
	OrgID        uuid.UUID    `gorm:"type:uuid;not null;index:idx_teams_org_id" json:"org_id"`
	Name         string       `gorm:"type:varchar(255);not null" json:"name"`
	Description  string       `gorm:"type:text" json:"description"`
	Color        string       `gorm:"type:varchar(20)" json:"color"`
	Image        string       `gorm:"type:text" json:"image"`
	Organization Organization `gorm:"foreignKey:OrgID;constraint:OnDelete:CASCADE" json:"-"`
}

type TeamMember struct {
	BaseModel
	TeamID uuid.UUID `gorm:"type:uuid;not null;index:idx_team_members_team_id;uniqueIndex:uq_team_members_team_user" json:"team_id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_team_members_user_id;uniqueIndex:uq_team_members_team_user" json:"user_id"`
	Role   Role      `gorm:"type:varchar(20);not null" json:"role"`
	Team   Team      `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Team) TableName() string {
	return "teams"
}

func (TeamMember) TableName() string {
	return "team_members"
}
