package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"project-workspace-api/internal/dto"
	"project-workspace-api/internal/response"
	"project-workspace-api/internal/service"
)

type PinHandler struct {
	pinService service.PinService
}

func NewPinHandler(pinService service.PinService) *PinHandler {
	return &PinHandler{pinService: pinService}
}

// IssuePin godoc
// @Summary      Issue a password reset PIN
// @Description  Sends a six digit PIN to the address. Any earlier PIN for it is replaced.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body dto.IssuePinRequest true "Email"
// @Success      201 {object} response.SuccessResponse{data=dto.IssuePinResponse}
// @Failure      400 {object} response.ErrorResponse
// @Router       /auth/pins [post]
func (h *PinHandler) IssuePin(c *gin.Context) {
	var req dto.IssuePinRequest
	if !bindJSON(c, &req) {
		return
	}
	pin, err := h.pinService.Issue(c.Request.Context(), req.Email)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusCreated, dto.IssuePinResponse{ExpiresAt: pin.ExpiresAt})
}

// VerifyPin godoc
// @Summary      Verify a password reset PIN
// @Description  A PIN verifies once. Too many wrong attempts invalidate it.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body dto.VerifyPinRequest true "PIN"
// @Success      200 {object} response.SuccessResponse
// @Failure      400 {object} response.ErrorResponse "Wrong, expired or exhausted PIN"
// @Failure      404 {object} response.ErrorResponse
// @Router       /auth/pins/verify [post]
func (h *PinHandler) VerifyPin(c *gin.Context) {
	var req dto.VerifyPinRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.pinService.Verify(c.Request.Context(), req.Email, req.Pin); err != nil {
		handleServiceError(c, err)
		return
	}
	response.SendSuccess(c, http.StatusOK, nil)
}
