package domain

import (
	"github.com/google/uuid"
)

// Organization is the tenancy root.
type Organization struct {
	BaseModel
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug      string    `gorm:"type:varchar(255);not null;uniqueIndex:uq_organizations_slug" json:"slug"`
	CreatedBy uuid.UUID `gorm:"type:uuid;not null;index:idx_organizations_created_by" json:"created_by"`
}

// OrganizationMember grants a user a role inside an organization.
type OrganizationMember struct {
	BaseModel
	OrgID        uuid.UUID    `gorm:"type:uuid;not null;index:idx_org_members_org_id;uniqueIndex:uq_org_members_org_user" json:"org_id"`
	UserID       uuid.UUID    `gorm:"type:uuid;not null;index:idx_org_members_user_id;uniqueIndex:uq_org_members_org_user" json:"user_id"`
	Role         Role         `gorm:"type:varchar(20);not null" json:"role"`
	Organization Organization `gorm:"foreignKey:OrgID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Organization) TableName() string {
	return "organizations"
}

func (OrganizationMember) TableName() string {
	return "organization_members"
}
