// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrModelNotFound indicates a function model was not found by the given identifier.
	ErrModelNotFound = errors.New("model not found")

	// ErrModelAlreadyExists indicates a model with the same identifier already exists.
	ErrModelAlreadyExists = errors.New("model already exists")

	// ErrNodeNotFound indicates a node was not found by the given identifier.
	ErrNodeNotFound = errors.New("node not found")

	// ErrRelationshipNotFound indicates a relationship was not found by the given identifier.
	ErrRelationshipNotFound = errors.New("relationship not found")

	// ErrVersionNotFound indicates a version record was not found.
	ErrVersionNotFound = errors.New("version not found")

	// ErrVersionConflict indicates the stored model advanced past the
	// caller's last-seen state; the write was rejected.
	ErrVersionConflict = errors.New("model was modified by another session")

	// ErrInvalidSortField indicates an unsupported sort column was requested.
	ErrInvalidSortField = errors.New("invalid sort field")
)

// ModelError wraps model-related errors with operation context.
type ModelError struct {
	Op      string // Operation being performed (e.g. "GetByID", "Save")
	ModelID string
	Err     error
	Message string
}

func (e *ModelError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for model %s: %s (%v)", e.Op, e.ModelID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for model %s: %v", e.Op, e.ModelID, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

func (e *ModelError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewModelError creates a new model error with context.
func NewModelError(op, modelID string, err error) *ModelError {
	return &ModelError{Op: op, ModelID: modelID, Err: err}
}

// NodeError wraps node-related errors with operation context.
type NodeError struct {
	Op      string
	ModelID string
	NodeID  string
	Err     error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s operation failed for node %s in model %s: %v", e.Op, e.NodeID, e.ModelID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

func (e *NodeError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewNodeError creates a new node error with context.
func NewNodeError(op, modelID, nodeID string, err error) *NodeError {
	return &NodeError{Op: op, ModelID: modelID, NodeID: nodeID, Err: err}
}

// RelationshipError wraps relationship-related errors with operation context.
type RelationshipError struct {
	Op             string
	ModelID        string
	RelationshipID string
	Err            error
}

func (e *RelationshipError) Error() string {
	return fmt.Sprintf("%s operation failed for relationship %s in model %s: %v",
		e.Op, e.RelationshipID, e.ModelID, e.Err)
}

func (e *RelationshipError) Unwrap() error {
	return e.Err
}

func (e *RelationshipError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// VersionError wraps version-record errors with operation context.
type VersionError struct {
	Op        string
	ModelID   string
	VersionID string
	Err       error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s operation failed for version %s of model %s: %v",
		e.Op, e.VersionID, e.ModelID, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

func (e *VersionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsModelNotFound checks if an error indicates a model was not found.
func IsModelNotFound(err error) bool {
	return errors.Is(err, ErrModelNotFound)
}

// IsNodeNotFound checks if an error indicates a node was not found.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsRelationshipNotFound checks if an error indicates a relationship was not found.
func IsRelationshipNotFound(err error) bool {
	return errors.Is(err, ErrRelationshipNotFound)
}

// IsVersionNotFound checks if an error indicates a version record was not found.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsVersionConflict checks if an error indicates an optimistic-concurrency rejection.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsInvalidSortField checks if an error indicates an unsupported sort column.
func IsInvalidSortField(err error) bool {
	return errors.Is(err, ErrInvalidSortField)
}
