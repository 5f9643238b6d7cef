package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/response"
	"project-workspace-api/internal/service"
	"project-workspace-api/internal/util"
)

type ProjectHandler struct {
	projectService service.ProjectService
}

func NewProjectHandler(projectService service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// CreateProject godoc
// @Summary      Create a project
// @Description  Requires organization membership (and team membership when team_id is set). The caller becomes owner.
// @Tags         projects
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateProjectRequest true "Project"
// @Success      201 {object} response.SuccessResponse{data=dto.ProjectResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse "Organization not found"
// @Security     BearerAuth
// @Router       /projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	var req dto.CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.projectService.CreateProject(c.Request.Context(), userID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, project)
}

// ListProjects godoc
// @Summary      List visible projects
// @Tags         projects
// @Produce      json
// @Param        org_id query string false "Organization ID"
// @Param        include_archived query bool false "Include archived projects"
// @Success      200 {object} response.SuccessResponse{data=[]dto.ProjectResponse}
// @Security     BearerAuth
// @Router       /projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	orgID, ok := util.OptionalUUIDQuery(c, "org_id")
	if !ok {
		return
	}
	projects, err := h.projectService.ListProjects(c.Request.Context(), userID, orgID, c.Query("include_archived") == "true")
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, projects)
}

// GetProject godoc
// @Summary      Get a project
// @Tags         projects
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} response.SuccessResponse{data=dto.ProjectResponse}
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /projects/{projectId} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	project, err := h.projectService.GetProject(c.Request.Context(), userID, projectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, project)
}

// UpdateProject godoc
// @Summary      Update project settings
// @Description  Admins only. A stage that still holds tasks cannot be removed.
// @Tags         projects
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body dto.UpdateProjectRequest true "Changes"
// @Success      200 {object} response.SuccessResponse{data=dto.ProjectResponse}
// @Failure      403 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse "Stage not empty"
// @Security     BearerAuth
// @Router       /projects/{projectId} [patch]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	var req dto.UpdateProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.projectService.UpdateProject(c.Request.Context(), userID, projectID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, project)
}

// ArchiveProject godoc
// @Summary      Archive a project
// @Tags         projects
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} response.SuccessResponse{data=dto.ProjectResponse}
// @Security     BearerAuth
// @Router       /projects/{projectId}/archive [post]
func (h *ProjectHandler) ArchiveProject(c *gin.Context) {
	h.setArchived(c, true)
}

// UnarchiveProject godoc
// @Summary      Unarchive a project
// @Tags         projects
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} response.SuccessResponse{data=dto.ProjectResponse}
// @Security     BearerAuth
// @Router       /projects/{projectId}/unarchive [post]
func (h *ProjectHandler) UnarchiveProject(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *ProjectHandler) setArchived(c *gin.Context, archived bool) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	var (
		project *dto.ProjectResponse
		err     error
	)
	if archived {
		project, err = h.projectService.ArchiveProject(c.Request.Context(), userID, projectID)
	} else {
		project, err = h.projectService.UnarchiveProject(c.Request.Context(), userID, projectID)
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, project)
}

// DeleteProject godoc
// @Summary      Delete a project and everything it owns
// @Tags         projects
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} response.SuccessResponse
// @Failure      403 {object} response.ErrorResponse "Owners only"
// @Security     BearerAuth
// @Router       /projects/{projectId} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	if err := h.projectService.DeleteProject(c.Request.Context(), userID, projectID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}

// AddProjectMember godoc
// @Summary      Add a project member
// @Description  The user must belong to the project's organization. Only owners grant owner.
// @Tags         project-members
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body dto.AddMemberRequest true "Member"
// @Success      201 {object} response.SuccessResponse
// @Failure      409 {object} response.ErrorResponse "Already a member"
// @Security     BearerAuth
// @Router       /projects/{projectId}/members [post]
func (h *ProjectHandler) AddProjectMember(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	var req dto.AddMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.projectService.AddProjectMember(c.Request.Context(), userID, projectID, &req); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, nil)
}

// UpdateProjectMemberRole godoc
// @Summary      Change a project member's role
// @Tags         project-members
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        userId path string true "User ID"
// @Param        request body dto.UpdateMemberRoleRequest true "Role"
// @Success      200 {object} response.SuccessResponse
// @Security     BearerAuth
// @Router       /projects/{projectId}/members/{userId} [patch]
func (h *ProjectHandler) UpdateProjectMemberRole(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	memberID, ok := util.UUIDParam(c, "userId")
	if !ok {
		return
	}
	var req dto.UpdateMemberRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.projectService.UpdateProjectMemberRole(c.Request.Context(), userID, projectID, memberID, &req); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}

// RemoveProjectMember godoc
// @Summary      Remove a project member
// @Description  Also drops the member's task assignments in the project.
// @Tags         project-members
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        userId path string true "User ID"
// @Success      200 {object} response.SuccessResponse
// @Failure      403 {object} response.ErrorResponse "Insufficient role or last owner"
// @Security     BearerAuth
// @Router       /projects/{projectId}/members/{userId} [delete]
func (h *ProjectHandler) RemoveProjectMember(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	memberID, ok := util.UUIDParam(c, "userId")
	if !ok {
		return
	}
	if err := h.projectService.RemoveProjectMember(c.Request.Context(), userID, projectID, memberID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}

// ListProjectMembers godoc
// @Summary      List project members
// @Tags         project-members
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} response.SuccessResponse{data=[]domain.ProjectMember}
// @Security     BearerAuth
// @Router       /projects/{projectId}/members [get]
func (h *ProjectHandler) ListProjectMembers(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	members, err := h.projectService.ListProjectMembers(c.Request.Context(), userID, projectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, members)
}

// CreateMilestone godoc
// @Summary      Create a milestone
// @Tags         milestones
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body dto.CreateMilestoneRequest true "Milestone"
// @Success      201 {object} response.SuccessResponse{data=domain.Milestone}
// @Security     BearerAuth
// @Router       /projects/{projectId}/milestones [post]
func (h *ProjectHandler) CreateMilestone(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	var req dto.CreateMilestoneRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.projectService.CreateMilestone(c.Request.Context(), userID, projectID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, m)
}

// ListMilestones godoc
// @Summary      List milestones
// @Tags         milestones
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} response.SuccessResponse{data=[]domain.Milestone}
// @Security     BearerAuth
// @Router       /projects/{projectId}/milestones [get]
func (h *ProjectHandler) ListMilestones(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	ms, err := h.projectService.ListMilestones(c.Request.Context(), userID, projectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, ms)
}

// UpdateMilestone godoc
// @Summary      Update a milestone
// @Tags         milestones
// @Accept       json
// @Produce      json
// @Param        milestoneId path string true "Milestone ID"
// @Param        request body dto.UpdateMilestoneRequest true "Changes"
// @Success      200 {object} response.SuccessResponse{data=domain.Milestone}
// @Security     BearerAuth
// @Router       /milestones/{milestoneId} [patch]
func (h *ProjectHandler) UpdateMilestone(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	milestoneID, ok := util.UUIDParam(c, "milestoneId")
	if !ok {
		return
	}
	var req dto.UpdateMilestoneRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.projectService.UpdateMilestone(c.Request.Context(), userID, milestoneID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, m)
}

// DeleteMilestone godoc
// @Summary      Delete a milestone
// @Tags         milestones
// @Produce      json
// @Param        milestoneId path string true "Milestone ID"
// @Success      200 {object} response.SuccessResponse
// @Security     BearerAuth
// @Router       /milestones/{milestoneId} [delete]
func (h *ProjectHandler) DeleteMilestone(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	milestoneID, ok := util.UUIDParam(c, "milestoneId")
	if !ok {
		return
	}
	if err := h.projectService.DeleteMilestone(c.Request.Context(), userID, milestoneID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}

// ListActivity godoc
// @Summary      Project activity log, newest first
// @Tags         projects
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        task_id query string false "Only entries for this task"
// @Param        limit query int false "Page size (default 50, max 200)"
// @Success      200 {object} response.SuccessResponse{data=[]domain.ActivityLog}
// @Security     BearerAuth
// @Router       /projects/{projectId}/activity [get]
func (h *ProjectHandler) ListActivity(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	taskID, ok := util.OptionalUUIDQuery(c, "task_id")
	if !ok {
		return
	}
	entries, err := h.projectService.ListActivity(c.Request.Context(), userID, projectID, taskID, util.IntQuery(c, "limit", 0))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, entries)
}
