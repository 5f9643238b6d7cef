package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/identity"
	"project-workspace-api/internal/response"
	"project-workspace-api/internal/service"
	"project-workspace-api/internal/util"
)

type OrganizationHandler struct {
	orgService service.OrganizationService
}

func NewOrganizationHandler(orgService service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{orgService: orgService}
}

// CreateOrganization godoc
// @Summary      Create an organization
// @Description  The caller becomes its owner. The slug is derived from the name when omitted.
// @Tags         organizations
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateOrganizationRequest true "Organization"
// @Success      201 {object} response.SuccessResponse{data=dto.OrganizationResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse "Slug taken"
// @Security     BearerAuth
// @Router       /organizations [post]
func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	var req dto.CreateOrganizationRequest
	if !bindJSON(c, &req) {
		return
	}
	org, err := h.orgService.CreateOrganization(c.Request.Context(), userID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, org)
}

// EnsurePersonalWorkspace godoc
// @Summary      Bootstrap a personal workspace
// @Description  Creates "<name>'s Workspace" when the caller belongs to no organization, otherwise returns their first one.
// @Tags         organizations
// @Produce      json
// @Success      200 {object} response.SuccessResponse{data=dto.OrganizationResponse}
// @Security     BearerAuth
// @Router       /organizations/bootstrap [post]
func (h *OrganizationHandler) EnsurePersonalWorkspace(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	name := ""
	if id, found := identity.FromContext(c.Request.Context()); found {
		name = id.DisplayName()
	}
	org, err := h.orgService.EnsurePersonalWorkspace(c.Request.Context(), userID, name)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, org)
}

// ListOrganizations godoc
// @Summary      List the caller's organizations
// @Tags         organizations
// @Produce      json
// @Success      200 {object} response.SuccessResponse{data=[]dto.OrganizationResponse}
// @Security     BearerAuth
// @Router       /organizations [get]
func (h *OrganizationHandler) ListOrganizations(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	orgs, err := h.orgService.ListOrganizations(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, orgs)
}

// AddOrganizationMember godoc
// @Summary      Add an organization member
// @Tags         organizations
// @Accept       json
// @Produce      json
// @Param        orgId path string true "Organization ID"
// @Param        request body dto.AddMemberRequest true "Member"
// @Success      201 {object} response.SuccessResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse "Already a member"
// @Security     BearerAuth
// @Router       /organizations/{orgId}/members [post]
func (h *OrganizationHandler) AddOrganizationMember(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	orgID, ok := util.UUIDParam(c, "orgId")
	if !ok {
		return
	}
	var req dto.AddMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.orgService.AddOrganizationMember(c.Request.Context(), userID, orgID, &req); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, nil)
}

// RemoveOrganizationMember godoc
// @Summary      Remove an organization member
// @Description  Admins remove members; anyone may leave. The last owner cannot be removed.
// @Tags         organizations
// @Produce      json
// @Param        orgId path string true "Organization ID"
// @Param        userId path string true "User ID"
// @Success      200 {object} response.SuccessResponse
// @Failure      403 {object} response.ErrorResponse "Insufficient role or last owner"
// @Security     BearerAuth
// @Router       /organizations/{orgId}/members/{userId} [delete]
func (h *OrganizationHandler) RemoveOrganizationMember(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	orgID, ok := util.UUIDParam(c, "orgId")
	if !ok {
		return
	}
	memberID, ok := util.UUIDParam(c, "userId")
	if !ok {
		return
	}
	if err := h.orgService.RemoveOrganizationMember(c.Request.Context(), userID, orgID, memberID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}

// CreateTeam godoc
// @Summary      Create a team
// @Tags         teams
// @Accept       json
// @Produce      json
// @Param        orgId path string true "Organization ID"
// @Param        request body dto.CreateTeamRequest true "Team"
// @Success      201 {object} response.SuccessResponse{data=domain.Team}
// @Security     BearerAuth
// @Router       /organizations/{orgId}/teams [post]
func (h *OrganizationHandler) CreateTeam(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	orgID, ok := util.UUIDParam(c, "orgId")
	if !ok {
		return
	}
	var req dto.CreateTeamRequest
	if !bindJSON(c, &req) {
		return
	}
	team, err := h.orgService.CreateTeam(c.Request.Context(), userID, orgID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, team)
}

// ListTeams godoc
// @Summary      List an organization's teams
// @Tags         teams
// @Produce      json
// @Param        orgId path string true "Organization ID"
// @Success      200 {object} response.SuccessResponse{data=[]domain.Team}
// @Security     BearerAuth
// @Router       /organizations/{orgId}/teams [get]
func (h *OrganizationHandler) ListTeams(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	orgID, ok := util.UUIDParam(c, "orgId")
	if !ok {
		return
	}
	teams, err := h.orgService.ListTeams(c.Request.Context(), userID, orgID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, teams)
}

// AddTeamMember godoc
// @Summary      Add a team member
// @Tags         teams
// @Accept       json
// @Produce      json
// @Param        teamId path string true "Team ID"
// @Param        request body dto.AddMemberRequest true "Member"
// @Success      201 {object} response.SuccessResponse
// @Security     BearerAuth
// @Router       /teams/{teamId}/members [post]
func (h *OrganizationHandler) AddTeamMember(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	teamID, ok := util.UUIDParam(c, "teamId")
	if !ok {
		return
	}
	var req dto.AddMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.orgService.AddTeamMember(c.Request.Context(), userID, teamID, &req); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, nil)
}

// RemoveTeamMember godoc
// @Summary      Remove a team member
// @Tags         teams
// @Produce      json
// @Param        teamId path string true "Team ID"
// @Param        userId path string true "User ID"
// @Success      200 {object} response.SuccessResponse
// @Security     BearerAuth
// @Router       /teams/{teamId}/members/{userId} [delete]
func (h *OrganizationHandler) RemoveTeamMember(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	teamID, ok := util.UUIDParam(c, "teamId")
	if !ok {
		return
	}
	memberID, ok := util.UUIDParam(c, "userId")
	if !ok {
		return
	}
	if err := h.orgService.RemoveTeamMember(c.Request.Context(), userID, teamID, memberID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}
