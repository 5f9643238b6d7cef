package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/response"
	"project-workspace-api/internal/service"
	"project-workspace-api/internal/util"
)

// CollaborationHandler serves comments, time tracking and the caller's inbox.
type CollaborationHandler struct {
	commentService      service.CommentService
	timeService         service.TimeService
	notificationService service.NotificationService
}

func NewCollaborationHandler(
	commentService service.CommentService,
	timeService service.TimeService,
	notificationService service.NotificationService,
) *CollaborationHandler {
	return &CollaborationHandler{
		commentService:      commentService,
		timeService:         timeService,
		notificationService: notificationService,
	}
}

// AddComment godoc
// @Summary      Comment on a task
// @Description  Mentioned users must be project members.
// @Tags         comments
// @Accept       json
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Param        request body dto.CreateCommentRequest true "Comment"
// @Success      201 {object} response.SuccessResponse{data=domain.Comment}
// @Failure      400 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{taskId}/comments [post]
func (h *CollaborationHandler) AddComment(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	var req dto.CreateCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.commentService.AddComment(c.Request.Context(), userID, taskID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, comment)
}

// ListComments godoc
// @Summary      List a task's comments, oldest first
// @Tags         comments
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Success      200 {object} response.SuccessResponse{data=[]domain.Comment}
// @Security     BearerAuth
// @Router       /tasks/{taskId}/comments [get]
func (h *CollaborationHandler) ListComments(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	comments, err := h.commentService.ListComments(c.Request.Context(), userID, taskID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, comments)
}

// DeleteComment godoc
// @Summary      Delete a comment
// @Description  The author or a project admin.
// @Tags         comments
// @Produce      json
// @Param        commentId path string true "Comment ID"
// @Success      200 {object} response.SuccessResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /comments/{commentId} [delete]
func (h *CollaborationHandler) DeleteComment(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	commentID, ok := util.UUIDParam(c, "commentId")
	if !ok {
		return
	}
	if err := h.commentService.DeleteComment(c.Request.Context(), userID, commentID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}

// StartTimer godoc
// @Summary      Start a timer on a task
// @Description  A running timer on another task is stopped first.
// @Tags         time
// @Accept       json
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Param        request body dto.StartTimerRequest false "Description"
// @Success      201 {object} response.SuccessResponse{data=domain.TimeEntry}
// @Security     BearerAuth
// @Router       /tasks/{taskId}/timer/start [post]
func (h *CollaborationHandler) StartTimer(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	var req dto.StartTimerRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	entry, err := h.timeService.StartTimer(c.Request.Context(), userID, taskID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, entry)
}

// StopTimer godoc
// @Summary      Stop the caller's running timer
// @Tags         time
// @Produce      json
// @Success      200 {object} response.SuccessResponse{data=domain.TimeEntry}
// @Failure      404 {object} response.ErrorResponse "No running timer"
// @Security     BearerAuth
// @Router       /timer/stop [post]
func (h *CollaborationHandler) StopTimer(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	entry, err := h.timeService.StopTimer(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, entry)
}

// RunningTimer godoc
// @Summary      The caller's running timer
// @Tags         time
// @Produce      json
// @Success      200 {object} response.SuccessResponse{data=domain.TimeEntry}
// @Failure      404 {object} response.ErrorResponse "No running timer"
// @Security     BearerAuth
// @Router       /timer [get]
func (h *CollaborationHandler) RunningTimer(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	entry, err := h.timeService.RunningTimer(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, entry)
}

// LogTime godoc
// @Summary      Log finished work
// @Description  ended_at wins over duration_minutes when both are sent.
// @Tags         time
// @Accept       json
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Param        request body dto.LogTimeRequest true "Entry"
// @Success      201 {object} response.SuccessResponse{data=domain.TimeEntry}
// @Failure      400 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{taskId}/time-entries [post]
func (h *CollaborationHandler) LogTime(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	var req dto.LogTimeRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.timeService.LogTime(c.Request.Context(), userID, taskID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, entry)
}

// ListTimeEntries godoc
// @Summary      List a task's time entries
// @Tags         time
// @Produce      json
// @Param        taskId path string true "Task ID"
// @Success      200 {object} response.SuccessResponse{data=[]domain.TimeEntry}
// @Security     BearerAuth
// @Router       /tasks/{taskId}/time-entries [get]
func (h *CollaborationHandler) ListTimeEntries(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	taskID, ok := util.UUIDParam(c, "taskId")
	if !ok {
		return
	}
	entries, err := h.timeService.ListTimeEntries(c.Request.Context(), userID, taskID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, entries)
}

// ListNotifications godoc
// @Summary      The caller's notifications, newest first
// @Tags         notifications
// @Produce      json
// @Param        unread query bool false "Unread only"
// @Param        limit query int false "Page size (default 50, max 200)"
// @Success      200 {object} response.SuccessResponse{data=dto.NotificationListResponse}
// @Security     BearerAuth
// @Router       /notifications [get]
func (h *CollaborationHandler) ListNotifications(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	list, err := h.notificationService.ListNotifications(c.Request.Context(), userID, c.Query("unread") == "true", util.IntQuery(c, "limit", 0))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, list)
}

// MarkNotificationRead godoc
// @Summary      Mark one notification read
// @Tags         notifications
// @Produce      json
// @Param        notificationId path string true "Notification ID"
// @Success      200 {object} response.SuccessResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /notifications/{notificationId}/read [post]
func (h *CollaborationHandler) MarkNotificationRead(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	notificationID, ok := util.UUIDParam(c, "notificationId")
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), userID, notificationID); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}

// MarkAllNotificationsRead godoc
// @Summary      Mark every notification read
// @Tags         notifications
// @Produce      json
// @Success      200 {object} response.SuccessResponse{data=dto.MarkAllReadResponse}
// @Security     BearerAuth
// @Router       /notifications/read-all [post]
func (h *CollaborationHandler) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := util.UserID(c)
	if !ok {
		return
	}
	res, err := h.notificationService.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, res)
}
