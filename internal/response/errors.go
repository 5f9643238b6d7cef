package response

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. The kind is what clients branch on; Reason narrows it further.
const (
	ErrCodeUnauthorized    = "Unauthenticated"
	ErrCodeForbidden       = "Forbidden"
	ErrCodeNotFound        = "NotFound"
	ErrCodeValidation      = "Invalid"
	ErrCodeConflict        = "Conflict"
	ErrCodeDependencyCycle = "DependencyCycle"
	ErrCodeStageUnknown    = "StageUnknown"
	ErrCodeStaleVersion    = "StaleVersion"
	ErrCodeTimeout         = "Timeout"
	ErrCodeInternal        = "Internal"
)

// Reasons attached to a kind.
const (
	ReasonLastOwner           = "LastOwner"
	ReasonAlreadyMember       = "AlreadyMember"
	ReasonAlreadyAssigned     = "AlreadyAssigned"
	ReasonTimerAlreadyRunning = "TimerAlreadyRunning"
	ReasonNotPending          = "NotPending"
	ReasonProjectArchived     = "ProjectArchived"
	ReasonStageNotEmpty       = "StageNotEmpty"
	ReasonParentCycle         = "ParentCycle"
	ReasonIntegrationExists   = "IntegrationExists"
	ReasonPinExpired          = "PinExpired"
	ReasonPinAttempts         = "PinAttemptsExceeded"
	ReasonSlugTaken           = "SlugTaken"
	ReasonDependencyExists    = "DependencyExists"
)

// AppError is the error type every layer above the store returns.
type AppError struct {
	Code    string
	Reason  string
	Message string
	Details string
}

func (e *AppError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s{%s}: %s", e.Code, e.Reason, e.Message)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on kind and reason so callers can compare against sentinel values.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// WithReason returns a copy of e carrying reason.
func (e *AppError) WithReason(reason string) *AppError {
	cp := *e
	cp.Reason = reason
	return &cp
}

func NewAppError(code, message, details string) *AppError {
	return &AppError{Code: code, Message: message, Details: details}
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, "")
}

func NewForbiddenError(message, details string) *AppError {
	return NewAppError(ErrCodeForbidden, message, details)
}

func NewLastOwnerError(scope string) *AppError {
	return NewAppError(ErrCodeForbidden, "cannot remove the last owner", scope).WithReason(ReasonLastOwner)
}

func NewNotFoundError(message, details string) *AppError {
	return NewAppError(ErrCodeNotFound, message, details)
}

func NewValidationError(message, details string) *AppError {
	return NewAppError(ErrCodeValidation, message, details)
}

func NewConflictError(reason, message string) *AppError {
	return NewAppError(ErrCodeConflict, message, "").WithReason(reason)
}

func NewDependencyCycleError(details string) *AppError {
	return NewAppError(ErrCodeDependencyCycle, "dependency would introduce a cycle", details)
}

func NewStageUnknownError(stageID string) *AppError {
	return NewAppError(ErrCodeStageUnknown, "stage is not part of the project workflow", stageID)
}

func NewStaleVersionError(details string) *AppError {
	return NewAppError(ErrCodeStaleVersion, "resource was modified by another request", details)
}

func NewTimeoutError() *AppError {
	return NewAppError(ErrCodeTimeout, "request deadline exceeded", "")
}

func NewInternalError(message string, err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return NewAppError(ErrCodeInternal, message, details)
}

// Sentinels for errors.Is comparisons in tests and callers.
var (
	ErrLastOwner       = &AppError{Code: ErrCodeForbidden, Reason: ReasonLastOwner}
	ErrForbidden       = &AppError{Code: ErrCodeForbidden}
	ErrNotFound        = &AppError{Code: ErrCodeNotFound}
	ErrInvalid         = &AppError{Code: ErrCodeValidation}
	ErrConflict        = &AppError{Code: ErrCodeConflict}
	ErrDependencyCycle = &AppError{Code: ErrCodeDependencyCycle}
	ErrStageUnknown    = &AppError{Code: ErrCodeStageUnknown}
	ErrStaleVersion    = &AppError{Code: ErrCodeStaleVersion}
	ErrTimeout         = &AppError{Code: ErrCodeTimeout}
)

// AsAppError converts any error into an AppError, treating deadline errors as Timeout.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError()
	}
	return NewInternalError("internal error", err)
}

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(code string) int {
	switch code {
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeDependencyCycle, ErrCodeStageUnknown, ErrCodeStaleVersion:
		return http.StatusConflict
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
