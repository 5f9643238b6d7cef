package response

import (
	"github.com/gin-gonic/gin"
)

// SuccessResponse is the envelope for successful commands.
type SuccessResponse struct {
	OK        bool        `json:"ok"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorBody describes a failed command.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorResponse is the envelope for failed commands.
type ErrorResponse struct {
	OK        bool      `json:"ok"`
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

func SendSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{
		OK:        true,
		Data:      data,
		RequestID: c.GetString("request_id"),
	})
}

func SendError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		OK:        false,
		Error:     ErrorBody{Kind: code, Message: message},
		RequestID: c.GetString("request_id"),
	})
}

// SendAppError writes err with the status derived from its kind.
func SendAppError(c *gin.Context, err *AppError) {
	c.JSON(HTTPStatus(err.Code), ErrorResponse{
		OK: false,
		Error: ErrorBody{
			Kind:    err.Code,
			Reason:  err.Reason,
			Message: err.Message,
			Detail:  err.Details,
		},
		RequestID: c.GetString("request_id"),
	})
}
