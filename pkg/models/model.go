package models

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ModelStatus represents the lifecycle state of a function model.
type ModelStatus string

const (
	ModelStatusDraft     ModelStatus = "draft"     // Editable
	ModelStatusPublished ModelStatus = "published" // Read-only, linkable from other features
	ModelStatusArchived  ModelStatus = "archived"  // Terminal
	ModelStatusError     ModelStatus = "error"     // Diagnostic, recoverable back to draft
)

var (
	// ErrNodeAlreadyExists indicates an AddNode call with a duplicate node id.
	ErrNodeAlreadyExists = errors.New("node already exists")

	// ErrNodeNotFound indicates an operation referencing a node absent from the model.
	ErrNodeNotFound = errors.New("node not found")

	// ErrRelationshipNotFound indicates an operation referencing an unknown relationship.
	ErrRelationshipNotFound = errors.New("relationship not found")

	// ErrInvalidStatusTransition indicates a lifecycle transition the state machine forbids.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrModelDeleted indicates a mutation on a soft-deleted model.
	ErrModelDeleted = errors.New("model has been deleted")

	// ErrDanglingRelationship indicates a relationship endpoint missing from the model.
	ErrDanglingRelationship = errors.New("relationship references a node not present in the model")
)

// NewID generates a time-ordered unique identifier. UUIDv7 keeps ids
// monotonically distinguishable without relying on wall-clock uniqueness.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}

	return id.String()
}

// Permissions lists who may see and edit a model.
type Permissions struct {
	Owner   string   `json:"owner"`
	Editors []string `json:"editors,omitempty"`
	Viewers []string `json:"viewers,omitempty"`
}

// FunctionModel is the aggregate root for one diagram: its metadata, node set
// and relationship set. It is the sole mutation surface for structural
// changes; every relationship endpoint must reference a node in the model.
type FunctionModel struct {
	ID             string           `json:"id"`
	Name           ModelName        `json:"name"            validate:"required"`
	Description    string           `json:"description"`
	Version        Version          `json:"version"`
	CurrentVersion Version          `json:"current_version"`
	VersionCount   int              `json:"version_count"`
	Status         ModelStatus      `json:"status"`
	Nodes          map[string]*Node `json:"nodes"`
	Relationships  []*Relationship  `json:"relationships"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	Permissions    Permissions      `json:"permissions"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	LastSavedAt    time.Time        `json:"last_saved_at"`
	DeletedAt      *time.Time       `json:"deleted_at,omitempty"`
	DeletedBy      string           `json:"deleted_by,omitempty"`
}

// NewFunctionModel validates the name and version and builds a draft model.
// A freshly created model always satisfies CurrentVersion == Version.
func NewFunctionModel(rawName, rawVersion, owner string) (*FunctionModel, error) {
	name, err := NewModelName(rawName)
	if err != nil {
		return nil, err
	}

	version, err := ParseVersion(rawVersion)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	return &FunctionModel{
		ID:             NewID(),
		Name:           name,
		Version:        version,
		CurrentVersion: version,
		VersionCount:   1,
		Status:         ModelStatusDraft,
		Nodes:          make(map[string]*Node),
		Relationships:  []*Relationship{},
		Permissions:    Permissions{Owner: owner},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Node returns the node with the given id, or nil.
func (m *FunctionModel) Node(nodeID string) *Node {
	return m.Nodes[nodeID]
}

// AddNode indexes a node by id. Adding a node whose id is already present
// fails and leaves the original node unmodified.
func (m *FunctionModel) AddNode(node *Node) error {
	if err := m.mutable(); err != nil {
		return err
	}

	if node == nil {
		return errors.New("node cannot be nil")
	}

	if _, exists := m.Nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrNodeAlreadyExists, node.ID)
	}

	if err := node.Validate(); err != nil {
		return err
	}

	node.ModelID = m.ID
	m.Nodes[node.ID] = node
	m.touch()

	return nil
}

// RemoveNode deletes a node and cascades: every relationship referencing it in
// either direction is removed, and the id is pruned from all dependency and
// container action lists.
func (m *FunctionModel) RemoveNode(nodeID string) error {
	if err := m.mutable(); err != nil {
		return err
	}

	if _, exists := m.Nodes[nodeID]; !exists {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	delete(m.Nodes, nodeID)

	m.Relationships = slices.DeleteFunc(m.Relationships, func(rel *Relationship) bool {
		return rel.References(nodeID)
	})

	for _, node := range m.Nodes {
		node.RemoveDependency(nodeID)
		node.RemoveActionID(nodeID)
	}

	m.touch()

	return nil
}

// NodePatch is a partial update applied to a node's mutable fields. Nil
// fields are left untouched; Type and payload kind cannot be changed.
type NodePatch struct {
	Name             *string
	Description      *string
	Position         *Position
	Status           *NodeStatus
	ExecutionType    *ExecutionType
	Dependencies     []string
	Metadata         map[string]any
	VisualProperties map[string]any
	IOData           *IOData
	StageData        *StageData
	TetherData       *TetherData
	KBData           *KBData
	ContainerData    *ContainerData
}

// UpdateNode merges a partial update into an existing node.
func (m *FunctionModel) UpdateNode(nodeID string, patch NodePatch) error {
	if err := m.mutable(); err != nil {
		return err
	}

	node, exists := m.Nodes[nodeID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	if patch.Name != nil {
		node.Name = *patch.Name
	}

	if patch.Description != nil {
		node.Description = *patch.Description
	}

	if patch.Position != nil {
		node.Position = *patch.Position
	}

	if patch.Status != nil {
		node.Status = *patch.Status
	}

	if patch.ExecutionType != nil {
		node.ExecutionType = *patch.ExecutionType
	}

	if patch.Dependencies != nil {
		node.Dependencies = patch.Dependencies
	}

	if patch.Metadata != nil {
		node.Metadata = patch.Metadata
	}

	if patch.VisualProperties != nil {
		node.VisualProperties = patch.VisualProperties
	}

	// Payload updates must keep the payload kind aligned with the node type.
	switch {
	case patch.IOData != nil:
		if node.Type != NodeTypeIO {
			return fmt.Errorf("%w: node %s is %s", ErrNodeDataMismatch, nodeID, node.Type)
		}

		node.IOData = patch.IOData
	case patch.StageData != nil:
		if node.Type != NodeTypeStage {
			return fmt.Errorf("%w: node %s is %s", ErrNodeDataMismatch, nodeID, node.Type)
		}

		node.StageData = patch.StageData
	case patch.TetherData != nil:
		if node.Type != NodeTypeTether {
			return fmt.Errorf("%w: node %s is %s", ErrNodeDataMismatch, nodeID, node.Type)
		}

		node.TetherData = patch.TetherData
	case patch.KBData != nil:
		if node.Type != NodeTypeKB {
			return fmt.Errorf("%w: node %s is %s", ErrNodeDataMismatch, nodeID, node.Type)
		}

		node.KBData = patch.KBData
	case patch.ContainerData != nil:
		if node.Type != NodeTypeContainer {
			return fmt.Errorf("%w: node %s is %s", ErrNodeDataMismatch, nodeID, node.Type)
		}

		node.ContainerData = patch.ContainerData
	}

	if err := node.Validate(); err != nil {
		return err
	}

	m.touch()

	return nil
}

// Connect validates and creates a connection between two nodes identified by
// their handles. A sibling connection yields one relationship record, a
// parent-child connection yields two inverse records and appends the action
// node's id to the container's action list (idempotent). Either every record
// is added or none is.
func (m *FunctionModel) Connect(sourceID, targetID string, sourceHandle, targetHandle Handle) ([]*Relationship, error) {
	if err := m.mutable(); err != nil {
		return nil, err
	}

	source, exists := m.Nodes[sourceID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, sourceID)
	}

	target, exists := m.Nodes[targetID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, targetID)
	}

	records, err := BuildConnection(source, target, sourceHandle, targetHandle)
	if err != nil {
		return nil, err
	}

	m.Relationships = append(m.Relationships, records...)

	if records[0].Type == RelationshipParentChild {
		container, action := source, target
		if source.IsActionClass() {
			container, action = target, source
		}

		container.AddActionID(action.ID)
	}

	m.touch()

	return records, nil
}

// AddRelationship appends a pre-built relationship after checking both
// endpoints are present in the model.
func (m *FunctionModel) AddRelationship(rel *Relationship) error {
	if err := m.mutable(); err != nil {
		return err
	}

	if rel == nil {
		return errors.New("relationship cannot be nil")
	}

	if _, exists := m.Nodes[rel.SourceNodeID]; !exists {
		return fmt.Errorf("%w: source %s", ErrDanglingRelationship, rel.SourceNodeID)
	}

	if _, exists := m.Nodes[rel.TargetNodeID]; !exists {
		return fmt.Errorf("%w: target %s", ErrDanglingRelationship, rel.TargetNodeID)
	}

	if rel.ID == "" {
		rel.ID = NewID()
	}

	m.Relationships = append(m.Relationships, rel)
	m.touch()

	return nil
}

// RemoveRelationship deletes one relationship by id.
func (m *FunctionModel) RemoveRelationship(relationshipID string) error {
	if err := m.mutable(); err != nil {
		return err
	}

	before := len(m.Relationships)

	m.Relationships = slices.DeleteFunc(m.Relationships, func(rel *Relationship) bool {
		return rel.ID == relationshipID
	})

	if len(m.Relationships) == before {
		return fmt.Errorf("%w: %s", ErrRelationshipNotFound, relationshipID)
	}

	m.touch()

	return nil
}

// Disconnect removes every relationship between two nodes, matching either
// direction: sibling edges are undirected in practice despite directional
// storage, and parent-child pairs must drop both inverse records together.
// The action-list entry created on connect is pruned as well.
func (m *FunctionModel) Disconnect(nodeA, nodeB string) error {
	if err := m.mutable(); err != nil {
		return err
	}

	removed := 0
	hadParentChild := false

	m.Relationships = slices.DeleteFunc(m.Relationships, func(rel *Relationship) bool {
		match := (rel.SourceNodeID == nodeA && rel.TargetNodeID == nodeB) ||
			(rel.SourceNodeID == nodeB && rel.TargetNodeID == nodeA)
		if match {
			removed++

			if rel.Type == RelationshipParentChild {
				hadParentChild = true
			}
		}

		return match
	})

	if removed == 0 {
		return fmt.Errorf("%w: between %s and %s", ErrRelationshipNotFound, nodeA, nodeB)
	}

	if hadParentChild {
		for _, id := range []string{nodeA, nodeB} {
			if node := m.Nodes[id]; node != nil && node.IsContainerClass() {
				other := nodeB
				if id == nodeB {
					other = nodeA
				}

				node.RemoveActionID(other)
			}
		}
	}

	m.touch()

	return nil
}

// RelationshipsBySource returns relationships whose source is the given node.
// The bidirectional view is derived from the single relationship store on
// read; no second index is persisted.
func (m *FunctionModel) RelationshipsBySource(nodeID string) []*Relationship {
	var out []*Relationship

	for _, rel := range m.Relationships {
		if rel.SourceNodeID == nodeID {
			out = append(out, rel)
		}
	}

	return out
}

// RelationshipsByTarget returns relationships whose target is the given node.
func (m *FunctionModel) RelationshipsByTarget(nodeID string) []*Relationship {
	var out []*Relationship

	for _, rel := range m.Relationships {
		if rel.TargetNodeID == nodeID {
			out = append(out, rel)
		}
	}

	return out
}

// Relationship returns the relationship with the given id, or nil.
func (m *FunctionModel) Relationship(relationshipID string) *Relationship {
	for _, rel := range m.Relationships {
		if rel.ID == relationshipID {
			return rel
		}
	}

	return nil
}

// Validate checks aggregate invariants: node payloads and relationship
// endpoint integrity.
func (m *FunctionModel) Validate() error {
	for _, node := range m.Nodes {
		if err := node.Validate(); err != nil {
			return err
		}
	}

	for _, rel := range m.Relationships {
		if _, exists := m.Nodes[rel.SourceNodeID]; !exists {
			return fmt.Errorf("%w: %s -> %s", ErrDanglingRelationship, rel.SourceNodeID, rel.TargetNodeID)
		}

		if _, exists := m.Nodes[rel.TargetNodeID]; !exists {
			return fmt.Errorf("%w: %s -> %s", ErrDanglingRelationship, rel.SourceNodeID, rel.TargetNodeID)
		}
	}

	return nil
}

// Publish transitions draft -> published.
func (m *FunctionModel) Publish() error {
	if m.Status != ModelStatusDraft {
		return fmt.Errorf("%w: cannot publish %s model", ErrInvalidStatusTransition, m.Status)
	}

	m.Status = ModelStatusPublished
	m.touch()

	return nil
}

// Archive transitions draft or published -> archived. There is no way out of
// archived.
func (m *FunctionModel) Archive() error {
	switch m.Status {
	case ModelStatusDraft, ModelStatusPublished:
		m.Status = ModelStatusArchived
		m.touch()

		return nil
	default:
		return fmt.Errorf("%w: cannot archive %s model", ErrInvalidStatusTransition, m.Status)
	}
}

// MarkError moves the model into the diagnostic error status. Archived models
// stay archived.
func (m *FunctionModel) MarkError() error {
	if m.Status == ModelStatusArchived {
		return fmt.Errorf("%w: cannot mark archived model as errored", ErrInvalidStatusTransition)
	}

	m.Status = ModelStatusError
	m.touch()

	return nil
}

// Recover returns an errored model to draft.
func (m *FunctionModel) Recover() error {
	if m.Status != ModelStatusError {
		return fmt.Errorf("%w: cannot recover %s model", ErrInvalidStatusTransition, m.Status)
	}

	m.Status = ModelStatusDraft
	m.touch()

	return nil
}

// SoftDelete marks the model deleted without removing the record.
func (m *FunctionModel) SoftDelete(by string) error {
	if m.DeletedAt != nil {
		return ErrModelDeleted
	}

	now := time.Now().UTC()
	m.DeletedAt = &now
	m.DeletedBy = by
	m.touch()

	return nil
}

// IsDeleted reports whether the model has been soft-deleted.
func (m *FunctionModel) IsDeleted() bool {
	return m.DeletedAt != nil
}

func (m *FunctionModel) mutable() error {
	if m.IsDeleted() {
		return ErrModelDeleted
	}

	return nil
}

func (m *FunctionModel) touch() {
	m.UpdatedAt = time.Now().UTC()
}
