// Package web provides HTTP request and response types for the model API.
package web

import (
	"time"

	"github.com/latticehq/lattice/pkg/models"
)

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CreateModelRequest represents the request body for creating a new function model.
type CreateModelRequest struct {
	Name        string         `json:"name"               validate:"required,min=3"`
	Description string         `json:"description"`
	Version     string         `json:"version,omitempty"`
	Owner       string         `json:"owner"              validate:"required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UpdateModelRequest represents the request body for updating an existing model.
// All fields are optional to support partial updates. LastSeenUpdatedAt, when
// set, makes the update conditional on the model being unchanged since then.
type UpdateModelRequest struct {
	Name              *string        `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description       *string        `json:"description,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	LastSeenUpdatedAt time.Time      `json:"last_seen_updated_at,omitempty"`
}

// CreateNodeRequest represents the request body for creating a new node.
// Exactly one payload field must be set, matching Type.
type CreateNodeRequest struct {
	ID            string               `json:"id,omitempty"`
	Type          models.NodeType      `json:"type"           validate:"required"`
	Name          string               `json:"name"           validate:"required,min=1"`
	Description   string               `json:"description,omitempty"`
	Position      models.Position      `json:"position"`
	ExecutionType models.ExecutionType `json:"execution_type,omitempty"`
	Dependencies  []string             `json:"dependencies,omitempty"`
	Metadata      map[string]any       `json:"metadata,omitempty"`

	IOData        *models.IOData        `json:"io_data,omitempty"`
	StageData     *models.StageData     `json:"stage_data,omitempty"`
	TetherData    *models.TetherData    `json:"tether_data,omitempty"`
	KBData        *models.KBData        `json:"kb_data,omitempty"`
	ContainerData *models.ContainerData `json:"container_data,omitempty"`
}

// UpdateNodeRequest represents the request body for updating an existing node.
// Type cannot be changed; the payload field, when set, must match the node's type.
type UpdateNodeRequest struct {
	Name          *string               `json:"name,omitempty"        validate:"omitempty,min=1"`
	Description   *string               `json:"description,omitempty"`
	Position      *models.Position      `json:"position,omitempty"`
	Status        *models.NodeStatus    `json:"status,omitempty"`
	ExecutionType *models.ExecutionType `json:"execution_type,omitempty"`
	Dependencies  []string              `json:"dependencies,omitempty"`
	Metadata      map[string]any        `json:"metadata,omitempty"`

	IOData        *models.IOData        `json:"io_data,omitempty"`
	StageData     *models.StageData     `json:"stage_data,omitempty"`
	TetherData    *models.TetherData    `json:"tether_data,omitempty"`
	KBData        *models.KBData        `json:"kb_data,omitempty"`
	ContainerData *models.ContainerData `json:"container_data,omitempty"`
}

// Patch converts the request into a node patch.
func (r UpdateNodeRequest) Patch() models.NodePatch {
	return models.NodePatch{
		Name:          r.Name,
		Description:   r.Description,
		Position:      r.Position,
		Status:        r.Status,
		ExecutionType: r.ExecutionType,
		Dependencies:  r.Dependencies,
		Metadata:      r.Metadata,
		IOData:        r.IOData,
		StageData:     r.StageData,
		TetherData:    r.TetherData,
		KBData:        r.KBData,
		ContainerData: r.ContainerData,
	}
}

// ConnectRequest represents the request body for connecting two nodes.
type ConnectRequest struct {
	SourceNodeID string        `json:"source_node_id" validate:"required"`
	TargetNodeID string        `json:"target_node_id" validate:"required"`
	SourceHandle models.Handle `json:"source_handle"  validate:"required"`
	TargetHandle models.Handle `json:"target_handle"  validate:"required"`
}

// CreateVersionRequest represents the request body for snapshotting a model version.
type CreateVersionRequest struct {
	ChangeSummary string `json:"change_summary"`
	AuthorID      string `json:"author_id"      validate:"required"`
}
