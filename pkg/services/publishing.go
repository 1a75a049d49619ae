// Package services provides model publishing functionality with lifecycle validation.
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

// Publishing handles model lifecycle transitions.
type Publishing struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewPublishing creates a new model publishing service.
func NewPublishing(persistence persistence.Persistence, eventBus eventbus.EventPublisher) *Publishing {
	return &Publishing{
		persistence: persistence,
		eventBus:    eventBus,
		tracer:      otel.Tracer("lattice/services/publishing"),
		logger:      slog.Default().With("module", "services"),
	}
}

// Publish validates a draft model and transitions it to published.
func (p *Publishing) Publish(ctx context.Context, modelID string) (*models.FunctionModel, error) {
	ctx, span := p.tracer.Start(ctx, "publishing.publish",
		trace.WithAttributes(attribute.String(otelhelper.ModelIDKey, modelID)))
	defer span.End()

	model, err := p.fetch(ctx, modelID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := p.validateForPublishing(model); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := model.Publish(); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := p.persistence.ModelRepository().Save(ctx, model); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to publish model: %w", err)
	}

	p.publishEvent(ctx, modelID, events.ModelPublished{
		BaseEvent: events.NewBaseEvent(events.ModelPublishedEvent, modelID),
		Version:   model.Version.String(),
	})

	return model, nil
}

// Archive transitions a draft or published model to archived.
func (p *Publishing) Archive(ctx context.Context, modelID string) (*models.FunctionModel, error) {
	model, err := p.fetch(ctx, modelID)
	if err != nil {
		return nil, err
	}

	if err := model.Archive(); err != nil {
		return nil, err
	}

	if err := p.persistence.ModelRepository().Save(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to archive model: %w", err)
	}

	p.publishEvent(ctx, modelID, events.ModelArchived{
		BaseEvent: events.NewBaseEvent(events.ModelArchivedEvent, modelID),
	})

	return model, nil
}

// Recover returns an errored model to draft so it can be repaired.
func (p *Publishing) Recover(ctx context.Context, modelID string) (*models.FunctionModel, error) {
	model, err := p.fetch(ctx, modelID)
	if err != nil {
		return nil, err
	}

	if err := model.Recover(); err != nil {
		return nil, err
	}

	if err := p.persistence.ModelRepository().Save(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to recover model: %w", err)
	}

	return model, nil
}

// validateForPublishing ensures a model is ready to be published.
func (p *Publishing) validateForPublishing(model *models.FunctionModel) error {
	if model == nil {
		return ErrModelNil
	}

	if model.Name.String() == "" {
		return ErrModelNameRequired
	}

	if len(model.Nodes) == 0 {
		return ErrNodesRequired
	}

	return model.Validate()
}

func (p *Publishing) fetch(ctx context.Context, modelID string) (*models.FunctionModel, error) {
	model, err := p.persistence.ModelRepository().GetByID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	if model == nil {
		return nil, ErrModelNotFound
	}

	return model, nil
}

// Notification failures never fail the operation itself.
func (p *Publishing) publishEvent(ctx context.Context, key string, event eventbus.Event) {
	if p.eventBus == nil {
		return
	}

	if err := p.eventBus.Publish(ctx, key, event); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "model_id", key, "error", err)
	}
}
