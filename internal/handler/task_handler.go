package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/repository"
	"project-workspace-api/internal/response"
	"project-workspace-api/internal/service"
	"project-workspace-api/internal/util"
)

type TaskHandler struct {
	taskService service.TaskService
}

func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// CreateTask godoc
// @Summary      Create a task
// @Description  Inserts the task at position in its stage, or at the end when position is omitted. The stage defaults to the project's first one.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body dto.CreateTaskRequest true "Task"
// @Success      201 {object} response.SuccessResponse{data=dto.TaskResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse "Unknown stage or archived project"
// @Security     BearerAuth
// @Router       /projects/{projectId}/tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	var req dto.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.taskService.CreateTask(c.Request.Context(), userID, projectID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, task)
}

// ListTasks godoc
// @Summary      List a project's tasks
// @Description  Ordered by stage and position.
// @Tags         tasks
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        stage_id query string false "Stage"
// @Param        assignee_id query string false "Assignee"
// @Param        parent_id query string false "Parent task"
// @Success      200 {object} response.SuccessResponse{data=[]dto.TaskResponse}
// @Security     BearerAuth
// @Router       /projects/{projectId}/tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	opts := repository.TaskListOptions{StageID: c.Query("stage_id")}
	if opts.AssigneeID, ok = util.OptionalUUIDQuery(c, "assignee_id"); !ok {
		return
	}
	if opts.ParentID, ok = util.OptionalUUIDQuery(c, "parent_id"); !ok {
		return
	}
	tasks, err := h.taskService.ListTasks(c.Request.Context(), userID, projectID, opts)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, tasks)
}

// GetTask godoc
// @Summary      Get a task with subtasks and dependencies
// @Tags         tasks
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Success      200 {object} response.SuccessResponse{data=dto.TaskDetailResponse}
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{taskId} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	task, err := h.taskService.GetTask(c.Request.Context(), userID, taskID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, task)
}

// UpdateTask godoc
// @Summary      Update task fields
// @Description  Stage and approval status change only through move, approve and reject.
// @Description  Send version to guard against concurrent edits.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Param        request body dto.UpdateTaskRequest true "Changes"
// @Success      200 {object} response.SuccessResponse{data=dto.TaskResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse "Stale version"
// @Security     BearerAuth
// @Router       /tasks/{taskId} [patch]
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	var req dto.UpdateTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.taskService.UpdateTask(c.Request.Context(), userID, taskID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, task)
}

// DeleteTask godoc
// @Summary      Delete a task
// @Description  Creator or project admin. Removes the task's subtasks, comments, assignments and dependencies.
// @Tags         tasks
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Success      200 {object} response.SuccessResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{taskId} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	if err := h.taskService.DeleteTask(c.Request.Context(), userID, taskID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}

// MoveTask godoc
// @Summary      Move a task to a stage and position
// @Description  Moving into the done stage of a project that requires approval puts the task in pending.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Param        request body dto.MoveTaskRequest true "Target"
// @Success      200 {object} response.SuccessResponse{data=dto.TaskResponse}
// @Failure      409 {object} response.ErrorResponse "Unknown stage"
// @Security     BearerAuth
// @Router       /tasks/{taskId}/move [post]
func (h *TaskHandler) MoveTask(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	var req dto.MoveTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.taskService.MoveTask(c.Request.Context(), userID, taskID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, task)
}

// ReorderStage godoc
// @Summary      Reorder a stage
// @Description  task_ids must be a permutation of the stage's current tasks.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        stageId path string true "Stage ID"
// @Param        request body dto.ReorderStageRequest true "Order"
// @Success      200 {object} response.SuccessResponse
// @Failure      400 {object} response.ErrorResponse "Not a permutation"
// @Security     BearerAuth
// @Router       /projects/{projectId}/stages/{stageId}/reorder [post]
func (h *TaskHandler) ReorderStage(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	projectID, ok := util.UUIDParam(c, "projectId")
	if !ok {
		return
	}
	var req dto.ReorderStageRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.taskService.ReorderStage(c.Request.Context(), userID, projectID, c.Param("stageId"), &req); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}

// ApproveTask godoc
// @Summary      Approve a pending task
// @Tags         approvals
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Success      200 {object} response.SuccessResponse{data=dto.TaskResponse}
// @Failure      403 {object} response.ErrorResponse "Admins only"
// @Failure      409 {object} response.ErrorResponse "Not pending"
// @Security     BearerAuth
// @Router       /tasks/{taskId}/approve [post]
func (h *TaskHandler) ApproveTask(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	task, err := h.taskService.ApproveTask(c.Request.Context(), userID, taskID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, task)
}

// RejectTask godoc
// @Summary      Reject a pending task
// @Description  The task returns to the end of return_stage_id.
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Param        request body dto.RejectTaskRequest true "Rejection"
// @Success      200 {object} response.SuccessResponse{data=dto.TaskResponse}
// @Failure      403 {object} response.ErrorResponse "Admins only"
// @Failure      409 {object} response.ErrorResponse "Not pending"
// @Security     BearerAuth
// @Router       /tasks/{taskId}/reject [post]
func (h *TaskHandler) RejectTask(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	var req dto.RejectTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.taskService.RejectTask(c.Request.Context(), userID, taskID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, task)
}

// AssignTask godoc
// @Summary      Assign a project member
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Param        request body dto.AssignTaskRequest true "Assignee"
// @Success      201 {object} response.SuccessResponse
// @Failure      409 {object} response.ErrorResponse "Already assigned"
// @Security     BearerAuth
// @Router       /tasks/{taskId}/assignees [post]
func (h *TaskHandler) AssignTask(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	var req dto.AssignTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.taskService.AssignTask(c.Request.Context(), userID, taskID, &req); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, nil)
}

// UnassignTask godoc
// @Summary      Remove an assignee
// @Tags         tasks
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Param        userId path string true "User ID"
// @Success      200 {object} response.SuccessResponse
// @Security     BearerAuth
// @Router       /tasks/{taskId}/assignees/{userId} [delete]
func (h *TaskHandler) UnassignTask(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	assigneeID, ok := util.UUIDParam(c, "userId")
	if !ok {
		return
	}
	if err := h.taskService.UnassignTask(c.Request.Context(), userID, taskID, assigneeID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}

// AddDependency godoc
// @Summary      Mark the task as blocked by another
// @Tags         dependencies
// @Accept       json
// @Produce      json
// @Param        taskId path string true "Blocked task ID"
// @Param        request body dto.AddDependencyRequest true "Blocking task"
// @Success      201 {object} response.SuccessResponse{data=domain.TaskDependency}
// @Failure      409 {object} response.ErrorResponse "Cycle or duplicate"
// @Security     BearerAuth
// @Router       /tasks/{taskId}/dependencies [post]
func (h *TaskHandler) AddDependency(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	var req dto.AddDependencyRequest
	if !bindJSON(c, &req) {
		return
	}
	dep, err := h.taskService.AddDependency(c.Request.Context(), userID, taskID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, dep)
}

// RemoveDependency godoc
// @Summary      Remove a dependency
// @Tags         dependencies
// @Produce      json
// @Param        taskId path string true "Blocked task ID"
// @Param        blockingTaskId path string true "Blocking task ID"
// @Success      200 {object} response.SuccessResponse
// @Security     BearerAuth
// @Router       /tasks/{taskId}/dependencies/{blockingTaskId} [delete]
func (h *TaskHandler) RemoveDependency(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	blockingID, ok := util.UUIDParam(c, "blockingTaskId")
	if !ok {
		return
	}
	if err := h.taskService.RemoveDependency(c.Request.Context(), userID, taskID, blockingID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}

// CreateSubtask godoc
// @Summary      Add a checklist item
// @Tags         subtasks
// @Accept       json
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Param        request body dto.CreateSubtaskRequest true "Subtask"
// @Success      201 {object} response.SuccessResponse{data=domain.Subtask}
// @Security     BearerAuth
// @Router       /tasks/{taskId}/subtasks [post]
func (h *TaskHandler) CreateSubtask(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	var req dto.CreateSubtaskRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, err := h.taskService.CreateSubtask(c.Request.Context(), userID, taskID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, sub)
}

// ToggleSubtask godoc
// @Summary      Toggle a checklist item
// @Tags         subtasks
// @Produce      json
// @Param        subtaskId path string true "Subtask ID"
// @Success      200 {object} response.SuccessResponse{data=domain.Subtask}
// @Security     BearerAuth
// @Router       /subtasks/{subtaskId}/toggle [post]
func (h *TaskHandler) ToggleSubtask(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	subtaskID, ok := util.UUIDParam(c, "subtaskId")
	if !ok {
		return
	}
	sub, err := h.taskService.ToggleSubtask(c.Request.Context(), userID, subtaskID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, sub)
}

// DeleteSubtask godoc
// @Summary      Delete a checklist item
// @Tags         subtasks
// @Produce      json
// @Param        subtaskId path string true "Subtask ID"
// @Success      200 {object} response.SuccessResponse
// @Security     BearerAuth
// @Router       /subtasks/{subtaskId} [delete]
func (h *TaskHandler) DeleteSubtask(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	subtaskID, ok := util.UUIDParam(c, "subtaskId")
	if !ok {
		return
	}
	if err := h.taskService.DeleteSubtask(c.Request.Context(), userID, subtaskID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}
