// Package services provides model versioning with full-state snapshots.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/latticehq/lattice/pkg/eventbus"
	"github.com/latticehq/lattice/pkg/events"
	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/otelhelper"
	"github.com/latticehq/lattice/pkg/persistence"
)

// Versioning handles version snapshots and restores. A version record stores
// the model's metadata plus its complete node and relationship sets, so a
// restore rewrites structure as well as metadata.
type Versioning struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewVersioning creates a new versioning service.
func NewVersioning(persistence persistence.Persistence, eventBus eventbus.EventPublisher) *Versioning {
	return &Versioning{
		persistence: persistence,
		eventBus:    eventBus,
		tracer:      otel.Tracer("lattice/services/versioning"),
		logger:      slog.Default().With("module", "services"),
	}
}

// CreateVersion snapshots the model's current state into an immutable version
// record, increments the model's version count and bumps its current version
// patch number.
func (s *Versioning) CreateVersion(ctx context.Context, modelID, changeSummary, authorID string) (*models.VersionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "versioning.create_version",
		trace.WithAttributes(attribute.String(otelhelper.ModelIDKey, modelID)))
	defer span.End()

	model, err := s.fetch(ctx, modelID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	model.VersionCount++
	model.CurrentVersion = model.CurrentVersion.BumpPatch()

	record := &models.VersionRecord{
		ID:            models.NewID(),
		ModelID:       model.ID,
		VersionNumber: model.VersionCount,
		Version:       model.CurrentVersion,
		ChangeSummary: changeSummary,
		AuthorID:      authorID,
		Snapshot:      models.CaptureSnapshot(model),
	}

	// Record first, counters second. There is no cross-repository transaction:
	// a failed counter save below leaves an orphaned version row carrying a
	// VersionNumber the model never reached, which ListVersions tolerates.
	if err := s.persistence.VersionRepository().SaveVersion(ctx, record); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save version record: %w", err)
	}

	if err := s.persistence.ModelRepository().Save(ctx, model); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save model version counters: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.VersionIDKey, record.ID))

	s.publishEvent(ctx, modelID, events.VersionCreated{
		BaseEvent:     events.NewBaseEvent(events.VersionCreatedEvent, modelID),
		VersionID:     record.ID,
		VersionNumber: record.VersionNumber,
		Version:       record.Version.String(),
		AuthorID:      authorID,
	})

	return record, nil
}

// ListVersions returns the model's version records, newest first.
func (s *Versioning) ListVersions(ctx context.Context, modelID string) ([]*models.VersionRecord, error) {
	if _, err := s.fetch(ctx, modelID); err != nil {
		return nil, err
	}

	return s.persistence.VersionRepository().ListVersions(ctx, modelID)
}

// GetVersion returns one version record of a model.
func (s *Versioning) GetVersion(ctx context.Context, modelID, versionID string) (*models.VersionRecord, error) {
	return s.persistence.VersionRepository().GetVersion(ctx, modelID, versionID)
}

// RestoreResult reports the outcome of a restore. Callers must check Success:
// a partial restore carries its failures in Errors instead of aborting.
type RestoreResult struct {
	Success   bool     `json:"success"`
	VersionID string   `json:"version_id"`
	Errors    []string `json:"errors,omitempty"`
}

// RestoreModelFromVersion overwrites the model's mutable metadata from the
// snapshot, then its nodes and relationships when the snapshot carries them.
func (s *Versioning) RestoreModelFromVersion(ctx context.Context, modelID, versionID string) (*RestoreResult, error) {
	ctx, span := s.tracer.Start(ctx, "versioning.restore",
		trace.WithAttributes(
			attribute.String(otelhelper.ModelIDKey, modelID),
			attribute.String(otelhelper.VersionIDKey, versionID),
		))
	defer span.End()

	model, err := s.fetch(ctx, modelID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	record, err := s.persistence.VersionRepository().GetVersion(ctx, modelID, versionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	result := &RestoreResult{Success: true, VersionID: versionID}

	model.Name = record.Snapshot.Name
	model.Description = record.Snapshot.Description
	model.Status = record.Snapshot.Status
	model.Metadata = record.Snapshot.Metadata
	model.Version = record.Version

	if record.Snapshot.Nodes != nil {
		model.Nodes = make(map[string]*models.Node, len(record.Snapshot.Nodes))

		for id, node := range record.Snapshot.Nodes {
			copied := *node
			model.Nodes[id] = &copied
		}
	}

	if record.Snapshot.Relationships != nil {
		model.Relationships = make([]*models.Relationship, 0, len(record.Snapshot.Relationships))

		for _, rel := range record.Snapshot.Relationships {
			copied := *rel
			model.Relationships = append(model.Relationships, &copied)
		}
	}

	if err := model.Validate(); err != nil {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("restored state failed validation: %v", err))

		return result, nil
	}

	if err := s.persistence.ModelRepository().Save(ctx, model); err != nil {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("failed to save restored model: %v", err))

		otelhelper.SetError(span, err)

		return result, nil
	}

	if result.Success {
		s.publishEvent(ctx, modelID, events.ModelRestored{
			BaseEvent: events.NewBaseEvent(events.ModelRestoredEvent, modelID),
			VersionID: versionID,
		})
	}

	return result, nil
}

func (s *Versioning) fetch(ctx context.Context, modelID string) (*models.FunctionModel, error) {
	model, err := s.persistence.ModelRepository().GetByID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	if model == nil {
		return nil, ErrModelNotFound
	}

	return model, nil
}

// Notification failures never fail the operation itself.
func (s *Versioning) publishEvent(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "model_id", key, "error", err)
	}
}
