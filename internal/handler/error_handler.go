package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-workspace-api/internal/middleware"
	"project-workspace-api/internal/response"
)

// handleServiceError maps service layer errors to appropriate HTTP responses
func handleServiceError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.SendError(c, http.StatusNotFound, response.ErrCodeNotFound, "resource not found")
		return
	}

	appErr := response.AsAppError(err)
	logger := middleware.LoggerFrom(c)
	if appErr.Code == response.ErrCodeInternal {
		logger.Error("Unhandled service error", zap.Error(err), zap.String("path", c.FullPath()))
		// Internal details stay in the log.
		appErr = response.NewInternalError("internal server error", nil)
	} else {
		logger.Debug("Service error",
			zap.String("kind", appErr.Code),
			zap.String("reason", appErr.Reason),
			zap.String("message", appErr.Message),
		)
	}
	response.SendAppError(c, appErr)
}

// bindJSON decodes and validates the request body into req.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.SendAppError(c, response.NewValidationError("invalid request body", err.Error()))
		return false
	}
	return true
}
