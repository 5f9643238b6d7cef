// Package util holds gin helpers shared by the HTTP handlers.
package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"project-workspace-api/internal/response"
)

// UserID returns the caller set by the auth middleware. When it is missing
// the request is answered with Unauthenticated and ok is false.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.SendAppError(c, response.NewUnauthorizedError("user id not found in context"))
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	if !ok || id == uuid.Nil {
		response.SendAppError(c, response.NewUnauthorizedError("invalid user id in context"))
		return uuid.Nil, false
	}
	return id, true
}

// UUIDParam parses the named path parameter, answering Invalid on failure.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.SendAppError(c, response.NewValidationError("invalid "+name, c.Param(name)))
		return uuid.Nil, false
	}
	return id, true
}

// OptionalUUIDQuery parses the named query parameter when present.
func OptionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.SendAppError(c, response.NewValidationError("invalid "+name, raw))
		return nil, false
	}
	return &id, true
}

// IntQuery returns the named integer query parameter or def.
func IntQuery(c *gin.Context, name string, def int) int {
	if n, err := strconv.Atoi(c.Query(name)); err == nil {
		return n
	}
	return def
}
