// Package audit persists an audit trail from model lifecycle events.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/latticehq/lattice/pkg/eventbus"
	"github.com/latticehq/lattice/pkg/events"
	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
)

const entityTypeModel = "function_model"

// Recorder subscribes to the event bus and writes one audit entry per
// lifecycle event.
type Recorder struct {
	repository persistence.AuditRepository
	logger     *slog.Logger
}

// NewRecorder creates a new audit recorder.
func NewRecorder(repository persistence.AuditRepository, logger *slog.Logger) *Recorder {
	return &Recorder{
		repository: repository,
		logger:     logger.With("module", "audit"),
	}
}

// Register attaches the recorder's handlers to the bus. The caller still has
// to start the bus with Subscribe.
func (r *Recorder) Register(bus eventbus.EventSubscriber) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.ModelCreatedEvent:         r.handleModelCreated,
		events.ModelUpdatedEvent:         r.handleGeneric(models.AuditActionUpdate),
		events.ModelPublishedEvent:       r.handleGeneric(models.AuditActionUpdate),
		events.ModelArchivedEvent:        r.handleGeneric(models.AuditActionUpdate),
		events.ModelRestoredEvent:        r.handleGeneric(models.AuditActionUpdate),
		events.ModelDeletedEvent:         r.handleGeneric(models.AuditActionDelete),
		events.NodeAddedEvent:            r.handleGeneric(models.AuditActionUpdate),
		events.NodeUpdatedEvent:          r.handleGeneric(models.AuditActionUpdate),
		events.NodeRemovedEvent:          r.handleGeneric(models.AuditActionUpdate),
		events.RelationshipCreatedEvent:  r.handleGeneric(models.AuditActionUpdate),
		events.RelationshipRemovedEvent:  r.handleGeneric(models.AuditActionUpdate),
		events.VersionCreatedEvent:       r.handleGeneric(models.AuditActionUpdate),
	}

	for eventType, handler := range handlers {
		if err := bus.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to register audit handler for %s: %w", eventType, err)
		}
	}

	return nil
}

func (r *Recorder) handleModelCreated(ctx context.Context, event any) error {
	created, ok := event.(*events.ModelCreated)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	return r.save(ctx, &models.AuditEntry{
		EntityType: entityTypeModel,
		EntityID:   created.ModelID,
		Action:     models.AuditActionCreate,
		UserID:     created.OwnerID,
		NewData: map[string]any{
			"name":    created.Name,
			"version": created.Version,
		},
		Details: map[string]any{"event_type": string(created.Type)},
	})
}

func (r *Recorder) handleGeneric(action models.AuditAction) eventbus.EventHandler {
	return func(ctx context.Context, event any) error {
		base, details := describe(event)
		if base == nil {
			return fmt.Errorf("unexpected event payload %T", event)
		}

		return r.save(ctx, &models.AuditEntry{
			EntityType: entityTypeModel,
			EntityID:   base.ModelID,
			Action:     action,
			UserID:     base.UserID,
			NewData:    details,
			Details:    map[string]any{"event_type": string(base.Type)},
		})
	}
}

// describe extracts the embedded base event plus type-specific details.
func describe(event any) (*events.BaseEvent, map[string]any) {
	switch e := event.(type) {
	case *events.ModelUpdated:
		return &e.BaseEvent, e.Changes
	case *events.ModelPublished:
		return &e.BaseEvent, map[string]any{"version": e.Version}
	case *events.ModelArchived:
		return &e.BaseEvent, nil
	case *events.ModelDeleted:
		return &e.BaseEvent, map[string]any{"deleted_by": e.DeletedBy}
	case *events.ModelRestored:
		return &e.BaseEvent, map[string]any{"version_id": e.VersionID}
	case *events.NodeAdded:
		return &e.BaseEvent, map[string]any{"node_id": e.NodeID, "node_type": e.NodeType}
	case *events.NodeUpdated:
		return &e.BaseEvent, map[string]any{"node_id": e.NodeID}
	case *events.NodeRemoved:
		return &e.BaseEvent, map[string]any{"node_id": e.NodeID}
	case *events.RelationshipCreated:
		return &e.BaseEvent, map[string]any{
			"source_node_id":    e.SourceNodeID,
			"target_node_id":    e.TargetNodeID,
			"relationship_type": e.RelationshipType,
		}
	case *events.RelationshipRemoved:
		return &e.BaseEvent, map[string]any{
			"source_node_id": e.SourceNodeID,
			"target_node_id": e.TargetNodeID,
		}
	case *events.VersionCreated:
		return &e.BaseEvent, map[string]any{
			"version_id":     e.VersionID,
			"version_number": e.VersionNumber,
			"version":        e.Version,
		}
	default:
		return nil, nil
	}
}

func (r *Recorder) save(ctx context.Context, entry *models.AuditEntry) error {
	if err := r.repository.SaveEntry(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "failed to persist audit entry",
			"entity_id", entry.EntityID, "action", entry.Action, "error", err)

		return err
	}

	return nil
}
