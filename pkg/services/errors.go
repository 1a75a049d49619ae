// Package services provides the business operations over the persistence layer.
package services

import (
	"errors"
	"fmt"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidSortOrder = errors.New("invalid sort order")
	ErrInvalidStatus    = errors.New("invalid model status")
	ErrEmptyOwnerID     = errors.New("owner ID cannot be empty")

	// Publishing validation errors (400 Bad Request).
	ErrModelNameRequired = errors.New("model name is required")
	ErrNodesRequired     = errors.New("model must have at least one node")
	ErrModelNil          = errors.New("model cannot be nil")

	// Connection validation errors.
	ErrInvalidConnectionData = errors.New("invalid connection data")

	// Business logic conflicts (409 Conflict).
	ErrModelNotEditable = errors.New("model is not editable in its current status")
	ErrVersionConflict  = persistence.ErrVersionConflict

	// Not-found errors (404).
	ErrModelNotFound        = persistence.ErrModelNotFound
	ErrNodeNotFound         = persistence.ErrNodeNotFound
	ErrRelationshipNotFound = persistence.ErrRelationshipNotFound
	ErrVersionNotFound      = persistence.ErrVersionNotFound
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

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrEmptyOwnerID) ||
		errors.Is(err, ErrModelNameRequired) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrModelNil) ||
		errors.Is(err, ErrInvalidConnectionData) ||
		errors.Is(err, models.ErrInvalidConnection) ||
		errors.Is(err, models.ErrNodeDataMismatch) ||
		errors.Is(err, models.ErrUnknownNodeType) ||
		errors.Is(err, models.ErrDanglingRelationship) ||
		errors.Is(err, models.ErrEmptyModelName) ||
		errors.Is(err, models.ErrModelNameTooLong) ||
		errors.Is(err, models.ErrInvalidVersion) ||
		errors.Is(err, models.ErrInvalidRetryPolicy) ||
		errors.Is(err, models.ErrInvalidRACI)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrModelNotEditable) ||
		errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, models.ErrInvalidStatusTransition) ||
		errors.Is(err, models.ErrModelDeleted) ||
		errors.Is(err, models.ErrNodeAlreadyExists)
}

// IsNotFoundError checks if an error indicates a missing entity (HTTP 404).
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrNodeNotFound) ||
		errors.Is(err, ErrRelationshipNotFound) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, models.ErrNodeNotFound) ||
		errors.Is(err, models.ErrRelationshipNotFound)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
