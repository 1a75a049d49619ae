// Package events defines event types and structures for model lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topic carrying all model lifecycle events.
const Topic = "lattice.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Model lifecycle events.
	ModelCreatedEvent   EventType = "model.created"
	ModelUpdatedEvent   EventType = "model.updated"
	ModelPublishedEvent EventType = "model.published"
	ModelArchivedEvent  EventType = "model.archived"
	ModelDeletedEvent   EventType = "model.deleted"
	ModelRestoredEvent  EventType = "model.restored"

	// Structural events.
	NodeAddedEvent           EventType = "model.node.added"
	NodeUpdatedEvent         EventType = "model.node.updated"
	NodeRemovedEvent         EventType = "model.node.removed"
	RelationshipCreatedEvent EventType = "model.relationship.created"
	RelationshipRemovedEvent EventType = "model.relationship.removed"

	// Versioning events.
	VersionCreatedEvent EventType = "model.version.created"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ModelID   string         `json:"model_id"`
	UserID    string         `json:"user_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, modelID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ModelID:   modelID,
		Metadata:  make(map[string]any),
	}
}

type ModelCreated struct {
	BaseEvent

	Name    string `json:"name"`
	Version string `json:"version"`
	OwnerID string `json:"owner_id"`
}

func (e ModelCreated) GetType() EventType {
	return ModelCreatedEvent
}

type ModelUpdated struct {
	BaseEvent

	Changes map[string]any `json:"changes,omitempty"`
}

func (e ModelUpdated) GetType() EventType {
	return ModelUpdatedEvent
}

type ModelPublished struct {
	BaseEvent

	Version string `json:"version"`
}

func (e ModelPublished) GetType() EventType {
	return ModelPublishedEvent
}

type ModelArchived struct {
	BaseEvent
}

func (e ModelArchived) GetType() EventType {
	return ModelArchivedEvent
}

type ModelDeleted struct {
	BaseEvent

	DeletedBy string `json:"deleted_by"`
}

func (e ModelDeleted) GetType() EventType {
	return ModelDeletedEvent
}

type ModelRestored struct {
	BaseEvent

	VersionID string `json:"version_id"`
}

func (e ModelRestored) GetType() EventType {
	return ModelRestoredEvent
}

type NodeAdded struct {
	BaseEvent

	NodeID   string `json:"node_id"`
	NodeType string `json:"node_type"`
}

func (e NodeAdded) GetType() EventType {
	return NodeAddedEvent
}

type NodeUpdated struct {
	BaseEvent

	NodeID string `json:"node_id"`
}

func (e NodeUpdated) GetType() EventType {
	return NodeUpdatedEvent
}

type NodeRemoved struct {
	BaseEvent

	NodeID string `json:"node_id"`
}

func (e NodeRemoved) GetType() EventType {
	return NodeRemovedEvent
}

type RelationshipCreated struct {
	BaseEvent

	RelationshipIDs  []string `json:"relationship_ids"`
	SourceNodeID     string   `json:"source_node_id"`
	TargetNodeID     string   `json:"target_node_id"`
	RelationshipType string   `json:"relationship_type"`
}

func (e RelationshipCreated) GetType() EventType {
	return RelationshipCreatedEvent
}

type RelationshipRemoved struct {
	BaseEvent

	SourceNodeID string `json:"source_node_id"`
	TargetNodeID string `json:"target_node_id"`
}

func (e RelationshipRemoved) GetType() EventType {
	return RelationshipRemovedEvent
}

type VersionCreated struct {
	BaseEvent

	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
	Version       string `json:"version"`
	AuthorID      string `json:"author_id"`
}

func (e VersionCreated) GetType() EventType {
	return VersionCreatedEvent
}
