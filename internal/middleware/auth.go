package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"project-workspace-api/internal/identity"
	"project-workspace-api/internal/response"
)

// Context keys set by Auth.
const (
	UserIDKey   = "user_id"
	IdentityKey = "identity"
)

// Auth resolves the bearer token with validator and stores the caller's user id
// and identity on both the gin context and the request context.
func Auth(validator identity.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			// Browsers cannot set headers on websocket upgrades.
			token = c.Query("access_token")
		}
		if token == "" {
			abort(c, response.NewUnauthorizedError("authorization header is required"))
			return
		}

		id, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			LoggerFrom(c).Debug("Rejected bearer token")
			abort(c, response.AsAppError(err))
			return
		}

		c.Set(UserIDKey, id.UserID)
		c.Set(IdentityKey, id)
		c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, err *response.AppError) {
	response.SendAppError(c, err)
	c.Abort()
}
