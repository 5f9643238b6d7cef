package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/response"
	"project-workspace-api/internal/service"
	"project-workspace-api/internal/util"
)

// AutomationHandler serves workflow rules and the Slack integration.
type AutomationHandler struct {
	workflowService    service.WorkflowService
	integrationService service.IntegrationService
}

func NewAutomationHandler(workflowService service.WorkflowService, integrationService service.IntegrationService) *AutomationHandler {
	return &AutomationHandler{workflowService: workflowService, integrationService: integrationService}
}

// CreateRule godoc
// @Summary      Create a workflow rule
// @Description  Admins only. Actions run as the rule's creator.
// @Tags         automation
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body dto.CreateWorkflowRuleRequest true "Rule"
// @Success      201 {object} response.SuccessResponse{data=domain.WorkflowRule}
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /projects/{projectId}/workflow-rules [post]
func (h *AutomationHandler) CreateRule(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	var req dto.CreateWorkflowRuleRequest
	if !bindJSON(c, &req) {
		return
	}
	rule, err := h.workflowService.CreateRule(c.Request.Context(), userID, projectID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, rule)
}

// ListRules godoc
// @Summary      List a project's workflow rules
// @Tags         automation
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} response.SuccessResponse{data=[]domain.WorkflowRule}
// @Security     BearerAuth
// @Router       /projects/{projectId}/workflow-rules [get]
func (h *AutomationHandler) ListRules(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	rules, err := h.workflowService.ListRules(c.Request.Context(), userID, projectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, rules)
}

// SetRuleEnabled godoc
// @Summary      Enable or disable a workflow rule
// @Tags         automation
// @Accept       json
// @Produce      json
// @Param        ruleId path string true "Rule ID"
// @Param        request body dto.EnableWorkflowRuleRequest true "State"
// @Success      200 {object} response.SuccessResponse{data=domain.WorkflowRule}
// @Security     BearerAuth
// @Router       /workflow-rules/{ruleId} [patch]
func (h *AutomationHandler) SetRuleEnabled(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	ruleID, ok := util.UUIDParam(c, "ruleId")
	if !ok {
		return
	}
	var req dto.EnableWorkflowRuleRequest
	if !bindJSON(c, &req) {
		return
	}
	rule, err := h.workflowService.EnableRule(c.Request.Context(), userID, ruleID, *req.Enabled)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, rule)
}

// ListExecutions godoc
// @Summary      A rule's execution log, newest first
// @Tags         automation
// @Produce      json
// @Param        ruleId path string true "Rule ID"
// @Param        limit query int false "Page size"
// @Success      200 {object} response.SuccessResponse{data=[]domain.WorkflowExecution}
// @Security     BearerAuth
// @Router       /workflow-rules/{ruleId}/executions [get]
func (h *AutomationHandler) ListExecutions(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	ruleID, ok := util.UUIDParam(c, "ruleId")
	if !ok {
		return
	}
	execs, err := h.workflowService.ListExecutions(c.Request.Context(), userID, ruleID, util.IntQuery(c, "limit", 0))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, execs)
}

// DeleteRule godoc
// @Summary      Delete a workflow rule
// @Tags         automation
// @Produce      json
// @Param        ruleId path string true "Rule ID"
// @Success      200 {object} response.SuccessResponse
// @Security     BearerAuth
// @Router       /workflow-rules/{ruleId} [delete]
func (h *AutomationHandler) DeleteRule(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	ruleID, ok := util.UUIDParam(c, "ruleId")
	if !ok {
		return
	}
	if err := h.workflowService.DeleteRule(c.Request.Context(), userID, ruleID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}

// CreateSlackIntegration godoc
// @Summary      Connect a project to Slack
// @Description  Admins only. One integration per project.
// @Tags         integrations
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body dto.CreateSlackIntegrationRequest true "Integration"
// @Success      201 {object} response.SuccessResponse{data=dto.SlackIntegrationResponse}
// @Failure      409 {object} response.ErrorResponse "Integration exists"
// @Security     BearerAuth
// @Router       /projects/{projectId}/slack-integration [post]
func (h *AutomationHandler) CreateSlackIntegration(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	var req dto.CreateSlackIntegrationRequest
	if !bindJSON(c, &req) {
		return
	}
	integ, err := h.integrationService.CreateSlackIntegration(c.Request.Context(), userID, projectID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, integ)
}

// GetSlackIntegration godoc
// @Summary      A project's Slack integration
// @Tags         integrations
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} response.SuccessResponse{data=dto.SlackIntegrationResponse}
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /projects/{projectId}/slack-integration [get]
func (h *AutomationHandler) GetSlackIntegration(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	integ, err := h.integrationService.GetSlackIntegration(c.Request.Context(), userID, projectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, integ)
}

// DeleteSlackIntegration godoc
// @Summary      Disconnect a project from Slack
// @Tags         integrations
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} response.SuccessResponse
// @Security     BearerAuth
// @Router       /projects/{projectId}/slack-integration [delete]
func (h *AutomationHandler) DeleteSlackIntegration(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	if err := h.integrationService.DeleteSlackIntegration(c.Request.Context(), userID, projectID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}
