package dto

import (
	"github.com/google/uuid"

	"project-workspace-api/internal/domain"
)

// CreateOrganizationRequest represents the request to create an organization
// @Description slug is derived from name when omitted
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255" example:"Acme"`
	Slug string `json:"slug" binding:"omitempty,max=255" example:"acme"`
}

// AddMemberRequest adds a user to an organization, team or project
type AddMemberRequest struct {
	UserID uuid.UUID   `json:"user_id" binding:"required" example:"b2c3d4e5-f6a7-8901-bcde-f12345678901"`
	Role   domain.Role `json:"role" binding:"required,oneof=owner admin member viewer" example:"member"`
}

// UpdateMemberRoleRequest changes an existing member's role
type UpdateMemberRoleRequest struct {
	Role domain.Role `json:"role" binding:"required,oneof=owner admin member viewer" example:"admin"`
}

type CreateTeamRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255" example:"Platform"`
	Description string `json:"description" binding:"max=2000"`
	Color       string `json:"color" binding:"max=20" example:"#3b82f6"`
	Image       string `json:"image" binding:"max=2000"`
}

// OrganizationResponse is an organization with the caller's role in it
type OrganizationResponse struct {
	*domain.Organization
	Role domain.Role `json:"role"`
}
