package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/latticehq/lattice/pkg/eventbus"
	"github.com/latticehq/lattice/pkg/events"
	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
)

// Model handles function-model lifecycle operations.
type Model struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

// NewModel creates a new model service. The event bus is optional; a nil bus
// disables lifecycle notifications.
func NewModel(persistence persistence.Persistence, eventBus eventbus.EventPublisher) *Model {
	return &Model{
		persistence: persistence,
		eventBus:    eventBus,
		logger:      slog.Default().With("module", "services"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Model) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateModelRequest carries the inputs for creating a model.
type CreateModelRequest struct {
	Name        string `validate:"required,min=1,max=255"`
	Description string
	Version     string
	OwnerID     string `validate:"required"`
	Metadata    map[string]any
}

// Create builds and persists a new draft model.
func (s *Model) Create(ctx context.Context, req CreateModelRequest) (*models.FunctionModel, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, ErrEmptyOwnerID
	}

	version := req.Version
	if version == "" {
		version = "1.0.0"
	}

	model, err := models.NewFunctionModel(req.Name, version, req.OwnerID)
	if err != nil {
		return nil, err
	}

	model.Description = req.Description
	model.Metadata = req.Metadata

	if err := s.persistence.ModelRepository().Save(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	s.publish(ctx, model.ID, events.ModelCreated{
		BaseEvent: events.NewBaseEvent(events.ModelCreatedEvent, model.ID),
		Name:      model.Name.String(),
		Version:   model.Version.String(),
		OwnerID:   model.Permissions.Owner,
	})

	return model, nil
}

// FetchByID retrieves a model by its ID.
func (s *Model) FetchByID(ctx context.Context, id string) (*models.FunctionModel, error) {
	model, err := s.persistence.ModelRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if model == nil {
		return nil, ErrModelNotFound
	}

	return model, nil
}

// ListModelsRequest contains options for listing models.
type ListModelsRequest struct {
	// Pagination
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`

	// Filtering
	OwnerID string
	Status  *models.ModelStatus

	// Sorting
	SortBy    string `validate:"oneof=created_at updated_at name"`
	SortOrder string `validate:"oneof=asc desc"`

	// Data loading control
	IncludeNodes         bool
	IncludeRelationships bool
}

// ListModelsResponse contains the result of listing models.
type ListModelsResponse struct {
	Models      []*models.FunctionModel `json:"models"`
	TotalCount  int64                   `json:"total_count"`
	HasNextPage bool                    `json:"has_next_page"`
}

// List retrieves models with filtering, sorting, and pagination.
func (s *Model) List(ctx context.Context, req ListModelsRequest) (*ListModelsResponse, error) {
	if err := s.validateListModelsRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	opts := persistence.ListModelsOptions{
		Limit:                req.Limit,
		Offset:               req.Offset,
		OwnerID:              req.OwnerID,
		Status:               req.Status,
		SortBy:               req.SortBy,
		SortOrder:            req.SortOrder,
		IncludeNodes:         req.IncludeNodes,
		IncludeRelationships: req.IncludeRelationships,
	}

	result, err := s.persistence.ModelRepository().List(ctx, opts)
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return nil, ErrInvalidSortField
		}

		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	return &ListModelsResponse{
		Models:      result.Models,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

func (s *Model) validateListModelsRequest(req *ListModelsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "created_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	allowedSorts := []string{"created_at", "updated_at", "name"}

	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListModelsRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListModelsRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	if req.Status != nil {
		allowedStatuses := []models.ModelStatus{
			models.ModelStatusDraft,
			models.ModelStatusPublished,
			models.ModelStatusArchived,
			models.ModelStatusError,
		}

		if !slices.Contains(allowedStatuses, *req.Status) {
			return NewValidationError(
				"validateListModelsRequest",
				"INVALID_STATUS",
				fmt.Sprintf("invalid status '%s'", *req.Status),
				ErrInvalidStatus,
			)
		}
	}

	if req.OwnerID != "" {
		req.OwnerID = strings.TrimSpace(req.OwnerID)
		if req.OwnerID == "" {
			return ErrEmptyOwnerID
		}
	}

	return nil
}

// UpdateModelRequest carries a partial metadata update. LastSeenUpdatedAt is
// the updated_at the caller read; a zero value skips the optimistic check.
type UpdateModelRequest struct {
	Name              *string
	Description       *string
	Metadata          map[string]any
	LastSeenUpdatedAt time.Time
}

// Update modifies a model's mutable metadata.
func (s *Model) Update(ctx context.Context, modelID string, req UpdateModelRequest) (*models.FunctionModel, error) {
	model, err := s.FetchByID(ctx, modelID)
	if err != nil {
		return nil, err
	}

	if model.Status != models.ModelStatusDraft {
		return nil, fmt.Errorf("%w: %s", ErrModelNotEditable, model.Status)
	}

	if req.Name != nil {
		name, err := models.NewModelName(*req.Name)
		if err != nil {
			return nil, err
		}

		model.Name = name
	}

	if req.Description != nil {
		model.Description = *req.Description
	}

	if req.Metadata != nil {
		model.Metadata = req.Metadata
	}

	if req.LastSeenUpdatedAt.IsZero() {
		err = s.persistence.ModelRepository().Save(ctx, model)
	} else {
		err = s.persistence.ModelRepository().SaveGuarded(ctx, model, req.LastSeenUpdatedAt)
	}

	if err != nil {
		if persistence.IsVersionConflict(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to update model: %w", err)
	}

	s.publish(ctx, model.ID, events.ModelUpdated{
		BaseEvent: events.NewBaseEvent(events.ModelUpdatedEvent, model.ID),
	})

	return model, nil
}

// Delete soft-deletes a model by its ID.
func (s *Model) Delete(ctx context.Context, modelID, deletedBy string) error {
	existing, err := s.persistence.ModelRepository().GetByID(ctx, modelID)
	if err != nil {
		return err
	}

	if existing == nil {
		return ErrModelNotFound
	}

	if err := s.persistence.ModelRepository().Delete(ctx, modelID, deletedBy); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}

	s.publish(ctx, modelID, events.ModelDeleted{
		BaseEvent: events.NewBaseEvent(events.ModelDeletedEvent, modelID),
		DeletedBy: deletedBy,
	})

	return nil
}

// Notification failures never fail the operation itself.
func (s *Model) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "model_id", key, "error", err)
	}
}
