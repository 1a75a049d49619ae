package models

import (
	"errors"
	"fmt"
	"time"
)

// RelationshipType classifies a link between two nodes.
type RelationshipType string

const (
	RelationshipParentChild RelationshipType = "parent-child" // Action attached beneath a container node
	RelationshipSibling     RelationshipType = "sibling"      // Lateral ordering link between container nodes
	RelationshipInvalid     RelationshipType = "invalid"
)

// Handle names the connection points on a node. The (source, target) handle
// pair determines a relationship's type at creation time.
type Handle string

const (
	HandleHeaderSource Handle = "header-source"
	HandleBottomTarget Handle = "bottom-target"
	HandleRightSource  Handle = "right-source"
	HandleLeftTarget   Handle = "left-target"
)

var (
	// ErrInvalidConnection indicates a connection attempt that violates the topology rules.
	ErrInvalidConnection = errors.New("invalid connection")
)

// Relationship is a directed edge between two nodes. Type is derived from the
// handle pair when the relationship is built and never stored ambiguously.
type Relationship struct {
	ID             string           `json:"id"`
	SourceNodeID   string           `json:"source_node_id"   validate:"required"`
	TargetNodeID   string           `json:"target_node_id"   validate:"required"`
	SourceHandle   Handle           `json:"source_handle"`
	TargetHandle   Handle           `json:"target_handle"`
	SourceNodeType NodeType         `json:"source_node_type"`
	TargetNodeType NodeType         `json:"target_node_type"`
	Type           RelationshipType `json:"type"`
	CreatedAt      time.Time        `json:"created_at"`
}

// References reports whether the relationship touches the given node in either direction.
func (r *Relationship) References(nodeID string) bool {
	return r.SourceNodeID == nodeID || r.TargetNodeID == nodeID
}

// ClassifyHandles maps a handle pair to the relationship type it would create.
// Endpoint node types are checked separately by ValidateConnection.
func ClassifyHandles(sourceHandle, targetHandle Handle) RelationshipType {
	switch {
	case sourceHandle == HandleHeaderSource && targetHandle == HandleBottomTarget:
		return RelationshipParentChild
	case sourceHandle == HandleRightSource && targetHandle == HandleLeftTarget:
		return RelationshipSibling
	default:
		return RelationshipInvalid
	}
}

// ValidateConnection decides whether a proposed connection between two node
// handles is permitted:
//
//   - (header-source, bottom-target): exactly one endpoint must be an
//     action-class node and the other a container-class node (parent-child).
//   - (right-source, left-target): both endpoints must be container-class
//     nodes (sibling). Action-class nodes never join sibling links.
//   - Any other pairing is rejected.
func ValidateConnection(source, target *Node, sourceHandle, targetHandle Handle) bool {
	if source == nil || target == nil || source.ID == target.ID {
		return false
	}

	switch ClassifyHandles(sourceHandle, targetHandle) {
	case RelationshipParentChild:
		return (source.IsActionClass() && target.IsContainerClass()) ||
			(source.IsContainerClass() && target.IsActionClass())
	case RelationshipSibling:
		return source.IsContainerClass() && target.IsContainerClass()
	default:
		return false
	}
}

// idSource produces relationship ids; swapped for determinism in tests.
var idSource = NewID

// BuildConnection produces the relationship records for an accepted
// connection: exactly one record for a sibling link, exactly two inverse
// records (child-to-parent and parent-to-child) for a parent-child link so
// lookups work in both directions without a secondary index. It returns
// ErrInvalidConnection and no records when the connection is not permitted;
// there is never partial output.
func BuildConnection(source, target *Node, sourceHandle, targetHandle Handle) ([]*Relationship, error) {
	if !ValidateConnection(source, target, sourceHandle, targetHandle) {
		return nil, fmt.Errorf("%w: %s(%s) -> %s(%s) via (%s, %s)",
			ErrInvalidConnection,
			source.ID, source.Type, target.ID, target.Type, sourceHandle, targetHandle)
	}

	now := time.Now().UTC()

	forward := &Relationship{
		ID:             idSource(),
		SourceNodeID:   source.ID,
		TargetNodeID:   target.ID,
		SourceHandle:   sourceHandle,
		TargetHandle:   targetHandle,
		SourceNodeType: source.Type,
		TargetNodeType: target.Type,
		Type:           ClassifyHandles(sourceHandle, targetHandle),
		CreatedAt:      now,
	}

	if forward.Type == RelationshipSibling {
		return []*Relationship{forward}, nil
	}

	inverse := &Relationship{
		ID:             idSource(),
		SourceNodeID:   target.ID,
		TargetNodeID:   source.ID,
		SourceHandle:   targetHandle,
		TargetHandle:   sourceHandle,
		SourceNodeType: target.Type,
		TargetNodeType: source.Type,
		Type:           RelationshipParentChild,
		CreatedAt:      now,
	}

	return []*Relationship{forward, inverse}, nil
}
