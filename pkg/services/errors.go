// Package services implements the dispatcher operations on top of the workflow engine, the
// session tracker and the response cache.
package services

import (
	"errors"
	"fmt"

	"github.com/SaiNageswarS/NurixLearn/pkg/catalog"
	"github.com/SaiNageswarS/NurixLearn/pkg/engine"
	"github.com/SaiNageswarS/NurixLearn/pkg/fingerprint"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/SaiNageswarS/NurixLearn/pkg/session"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnknownKind        = errors.New("unknown workflow kind")
	ErrSocketIDRequired   = errors.New("socket_id is required")
	ErrWorkflowIDRequired = errors.New("workflow id is required")
)

// Error codes carried by ServiceError.
const (
	CodeValidation      = "validation_error"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeWorkflowFailure = "workflow_failure"
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    CodeValidation,
		Message: message,
		Err:     err,
	}
}

func codeOf(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}

	return ""
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return codeOf(err) == CodeValidation ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrSocketIDRequired) ||
		errors.Is(err, ErrWorkflowIDRequired) ||
		errors.Is(err, catalog.ErrInvalidInput) ||
		errors.Is(err, engine.ErrUnknownSignal) ||
		errors.Is(err, fingerprint.ErrMissingSocketID)
}

// IsNotFound checks if an error should return HTTP 404.
func IsNotFound(err error) bool {
	return engine.IsNotFound(err) ||
		errors.Is(err, session.ErrSessionNotFound) ||
		persistence.IsNotFound(err)
}

// IsConflictError checks if an error is a state conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, engine.ErrSignalOnTerminalExecution) ||
		errors.Is(err, engine.ErrResultPending)
}

// IsWorkflowFailure checks if an execution ended without a result (HTTP 502).
func IsWorkflowFailure(err error) bool {
	return errors.Is(err, engine.ErrExecutionFailed) ||
		errors.Is(err, engine.ErrExecutionCancelled)
}
