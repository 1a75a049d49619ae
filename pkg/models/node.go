package models

import (
	"errors"
	"fmt"
	"slices"
)

// NodeType identifies the kind of diagram element.
type NodeType string

const (
	NodeTypeIO        NodeType = "ioNode"                 // Input/output boundary
	NodeTypeStage     NodeType = "stageNode"              // Processing stage
	NodeTypeTether    NodeType = "tetherNode"             // Spindle-backed action
	NodeTypeKB        NodeType = "kbNode"                 // Knowledge-base action
	NodeTypeContainer NodeType = "functionModelContainer" // Nested function-model action
)

// NodeStatus represents the lifecycle state of a node.
type NodeStatus string

const (
	NodeStatusDraft    NodeStatus = "draft"
	NodeStatusActive   NodeStatus = "active"
	NodeStatusInactive NodeStatus = "inactive"
	NodeStatusArchived NodeStatus = "archived"
	NodeStatusError    NodeStatus = "error"
)

// ExecutionType controls how an action node's work is dispatched.
type ExecutionType string

const (
	ExecutionSequential  ExecutionType = "sequential"
	ExecutionParallel    ExecutionType = "parallel"
	ExecutionConditional ExecutionType = "conditional"
)

// IOMode describes the direction of an I/O boundary node.
type IOMode string

const (
	IOModeInput         IOMode = "input"
	IOModeOutput        IOMode = "output"
	IOModeBidirectional IOMode = "bidirectional"
)

var (
	// ErrUnknownNodeType indicates a node type outside the supported set.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrNodeDataMismatch indicates the type-specific payload does not match the node type.
	ErrNodeDataMismatch = errors.New("node data does not match node type")
)

// IOData is the payload for I/O boundary nodes.
type IOData struct {
	Mode         IOMode         `json:"mode"`
	DataContract map[string]any `json:"data_contract,omitempty"`
	ActionIDs    []string       `json:"action_ids"`
}

// StageData is the payload for processing-stage nodes.
type StageData struct {
	Goals         []string       `json:"goals,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
	ActionIDs     []string       `json:"action_ids"`
}

// TetherData is the payload for spindle-backed action nodes.
type TetherData struct {
	SpindleReference string         `json:"spindle_reference"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	Retry            RetryPolicy    `json:"retry"`
	RACI             RACI           `json:"raci"`
}

// KBData is the payload for knowledge-base action nodes.
type KBData struct {
	KBReference string `json:"kb_reference"`
	ShortText   string `json:"short_text,omitempty"`
	RACI        RACI   `json:"raci"`
}

// ContainerData is the payload for nested function-model action nodes.
type ContainerData struct {
	NestedModelID    string         `json:"nested_model_id"`
	ContextMapping   map[string]any `json:"context_mapping,omitempty"`
	OutputExtraction map[string]any `json:"output_extraction,omitempty"`
}

// Node represents a single element in a function-model diagram.
// Exactly one type-specific payload must be set, matching Type.
type Node struct {
	ID               string         `json:"id"             validate:"required"`
	ModelID          string         `json:"model_id"`
	Type             NodeType       `json:"type"           validate:"required"`
	Name             string         `json:"name"           validate:"required,min=1"`
	Description      string         `json:"description,omitempty"`
	Position         Position       `json:"position"`
	Status           NodeStatus     `json:"status"`
	ExecutionType    ExecutionType  `json:"execution_type"`
	Dependencies     []string       `json:"dependencies"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	VisualProperties map[string]any `json:"visual_properties,omitempty"`

	IOData        *IOData        `json:"io_data,omitempty"`
	StageData     *StageData     `json:"stage_data,omitempty"`
	TetherData    *TetherData    `json:"tether_data,omitempty"`
	KBData        *KBData        `json:"kb_data,omitempty"`
	ContainerData *ContainerData `json:"container_data,omitempty"`
}

// IsContainerClass reports whether the node can own actions and join sibling links.
func (n *Node) IsContainerClass() bool {
	return n.Type == NodeTypeIO || n.Type == NodeTypeStage
}

// IsActionClass reports whether the node attaches beneath a container node.
func (n *Node) IsActionClass() bool {
	return n.Type == NodeTypeTether || n.Type == NodeTypeKB || n.Type == NodeTypeContainer
}

// Validate enforces the exactly-one-payload invariant and checks the payload
// matches the node type.
func (n *Node) Validate() error {
	payloads := 0

	for _, set := range []bool{
		n.IOData != nil,
		n.StageData != nil,
		n.TetherData != nil,
		n.KBData != nil,
		n.ContainerData != nil,
	} {
		if set {
			payloads++
		}
	}

	if payloads != 1 {
		return fmt.Errorf("%w: node %s has %d payloads, want exactly 1", ErrNodeDataMismatch, n.ID, payloads)
	}

	var match bool

	switch n.Type {
	case NodeTypeIO:
		match = n.IOData != nil
	case NodeTypeStage:
		match = n.StageData != nil
	case NodeTypeTether:
		match = n.TetherData != nil
	case NodeTypeKB:
		match = n.KBData != nil
	case NodeTypeContainer:
		match = n.ContainerData != nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNodeType, n.Type)
	}

	if !match {
		return fmt.Errorf("%w: node %s is %s but carries a different payload", ErrNodeDataMismatch, n.ID, n.Type)
	}

	if n.TetherData != nil {
		if err := n.TetherData.Retry.Validate(); err != nil {
			return err
		}

		if err := n.TetherData.RACI.Validate(); err != nil {
			return err
		}
	}

	if n.KBData != nil {
		if err := n.KBData.RACI.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ActionIDs returns the node's action list. Only container-class nodes own actions.
func (n *Node) ActionIDs() []string {
	switch {
	case n.IOData != nil:
		return n.IOData.ActionIDs
	case n.StageData != nil:
		return n.StageData.ActionIDs
	default:
		return nil
	}
}

// AddActionID appends an action node id to the container's action list.
// Adding an id that is already present is a no-op.
func (n *Node) AddActionID(actionID string) {
	switch {
	case n.IOData != nil:
		if !slices.Contains(n.IOData.ActionIDs, actionID) {
			n.IOData.ActionIDs = append(n.IOData.ActionIDs, actionID)
		}
	case n.StageData != nil:
		if !slices.Contains(n.StageData.ActionIDs, actionID) {
			n.StageData.ActionIDs = append(n.StageData.ActionIDs, actionID)
		}
	}
}

// RemoveActionID prunes an action node id from the container's action list.
func (n *Node) RemoveActionID(actionID string) {
	if n.IOData != nil {
		n.IOData.ActionIDs = slices.DeleteFunc(n.IOData.ActionIDs, func(id string) bool {
			return id == actionID
		})
	}

	if n.StageData != nil {
		n.StageData.ActionIDs = slices.DeleteFunc(n.StageData.ActionIDs, func(id string) bool {
			return id == actionID
		})
	}
}

// RemoveDependency prunes a node id from the dependency list.
func (n *Node) RemoveDependency(nodeID string) {
	n.Dependencies = slices.DeleteFunc(n.Dependencies, func(id string) bool {
		return id == nodeID
	})
}
