package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/latticehq/lattice/pkg/eventbus"
	"github.com/latticehq/lattice/pkg/events"
	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
)

// ConnectRequest identifies the two endpoints of a new connection by node id
// and handle.
type ConnectRequest struct {
	SourceNodeID string        `validate:"required"`
	TargetNodeID string        `validate:"required"`
	SourceHandle models.Handle `validate:"required"`
	TargetHandle models.Handle `validate:"required"`
}

// Connection handles relationship operations on a model.
type Connection struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

// NewConnection creates a new connection service.
func NewConnection(persistence persistence.Persistence, eventBus eventbus.EventPublisher) *Connection {
	return &Connection{
		persistence: persistence,
		eventBus:    eventBus,
		logger:      slog.Default().With("module", "services"),
	}
}

// Connect validates and creates a connection between two nodes. A sibling
// connection persists one relationship record; a parent-child connection
// persists two inverse records plus the container's action-list update, all
// in one save.
func (s *Connection) Connect(ctx context.Context, modelID string, req ConnectRequest) ([]*models.Relationship, error) {
	model, err := s.draftModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	records, err := model.Connect(req.SourceNodeID, req.TargetNodeID, req.SourceHandle, req.TargetHandle)
	if err != nil {
		return nil, err
	}

	if err := s.persistence.ModelRepository().Save(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to save connection: %w", err)
	}

	ids := make([]string, 0, len(records))
	for _, rel := range records {
		ids = append(ids, rel.ID)
	}

	s.publish(ctx, modelID, events.RelationshipCreated{
		BaseEvent:        events.NewBaseEvent(events.RelationshipCreatedEvent, modelID),
		RelationshipIDs:  ids,
		SourceNodeID:     req.SourceNodeID,
		TargetNodeID:     req.TargetNodeID,
		RelationshipType: string(records[0].Type),
	})

	return records, nil
}

// Disconnect removes every relationship between two nodes, matching either
// direction, and prunes the container's action list for parent-child links.
func (s *Connection) Disconnect(ctx context.Context, modelID, nodeA, nodeB string) error {
	model, err := s.draftModel(ctx, modelID)
	if err != nil {
		return err
	}

	if err := model.Disconnect(nodeA, nodeB); err != nil {
		return err
	}

	if err := s.persistence.ModelRepository().Save(ctx, model); err != nil {
		return fmt.Errorf("failed to save disconnection: %w", err)
	}

	s.publish(ctx, modelID, events.RelationshipRemoved{
		BaseEvent:    events.NewBaseEvent(events.RelationshipRemovedEvent, modelID),
		SourceNodeID: nodeA,
		TargetNodeID: nodeB,
	})

	return nil
}

// ListRelationships returns all relationships of the specified model.
func (s *Connection) ListRelationships(ctx context.Context, modelID string) ([]*models.Relationship, error) {
	return s.persistence.RelationshipRepository().GetRelationshipsByModel(ctx, modelID)
}

func (s *Connection) draftModel(ctx context.Context, modelID string) (*models.FunctionModel, error) {
	model, err := s.persistence.ModelRepository().GetByID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	if model == nil {
		return nil, ErrModelNotFound
	}

	if model.Status != models.ModelStatusDraft {
		return nil, fmt.Errorf("%w: cannot modify relationships in %s model", ErrModelNotEditable, model.Status)
	}

	return model, nil
}

// Notification failures never fail the operation itself.
func (s *Connection) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "model_id", key, "error", err)
	}
}
