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

// PayloadValidator checks a node's type-specific payload against its
// registered schema.
type PayloadValidator interface {
	ValidateNodeData(nodeType models.NodeType, data any) error
}

// CreateNodeRequest represents the request to create a new node in a model.
// Exactly one of the payload fields must be set, matching Type.
type CreateNodeRequest struct {
	ID            string
	Type          models.NodeType `validate:"required"`
	Name          string          `validate:"required,min=1"`
	Description   string
	Position      models.Position
	ExecutionType models.ExecutionType
	Dependencies  []string
	Metadata      map[string]any

	IOData        *models.IOData
	StageData     *models.StageData
	TetherData    *models.TetherData
	KBData        *models.KBData
	ContainerData *models.ContainerData
}

// Node handles node-related business operations.
type Node struct {
	persistence persistence.Persistence
	validator   PayloadValidator
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

// NewNode creates a new node service. Validator and event bus are optional.
func NewNode(persistence persistence.Persistence, validator PayloadValidator, eventBus eventbus.EventPublisher) *Node {
	return &Node{
		persistence: persistence,
		validator:   validator,
		eventBus:    eventBus,
		logger:      slog.Default().With("module", "services"),
	}
}

// CreateNode creates a new node in the specified model.
func (s *Node) CreateNode(ctx context.Context, modelID string, req *CreateNodeRequest) (*models.Node, error) {
	model, err := s.draftModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	node := &models.Node{
		ID:            req.ID,
		Type:          req.Type,
		Name:          req.Name,
		Description:   req.Description,
		Position:      req.Position,
		Status:        models.NodeStatusDraft,
		ExecutionType: req.ExecutionType,
		Dependencies:  req.Dependencies,
		Metadata:      req.Metadata,
		IOData:        req.IOData,
		StageData:     req.StageData,
		TetherData:    req.TetherData,
		KBData:        req.KBData,
		ContainerData: req.ContainerData,
	}

	if node.ID == "" {
		node.ID = models.NewID()
	}

	if node.ExecutionType == "" {
		node.ExecutionType = models.ExecutionSequential
	}

	if node.Dependencies == nil {
		node.Dependencies = []string{}
	}

	if err := s.validatePayload(node); err != nil {
		return nil, err
	}

	if err := model.AddNode(node); err != nil {
		return nil, err
	}

	if err := s.persistence.ModelRepository().Save(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to save node: %w", err)
	}

	s.publish(ctx, modelID, events.NodeAdded{
		BaseEvent: events.NewBaseEvent(events.NodeAddedEvent, modelID),
		NodeID:    node.ID,
		NodeType:  string(node.Type),
	})

	return node, nil
}

// GetNode retrieves a specific node from the specified model.
func (s *Node) GetNode(ctx context.Context, modelID, nodeID string) (*models.Node, error) {
	return s.persistence.NodeRepository().GetNodeByModel(ctx, modelID, nodeID)
}

// ListNodes returns all nodes of the specified model.
func (s *Node) ListNodes(ctx context.Context, modelID string) ([]*models.Node, error) {
	return s.persistence.NodeRepository().GetNodesByModel(ctx, modelID)
}

// UpdateNode applies a partial update to an existing node. The node's type
// and payload kind cannot change.
func (s *Node) UpdateNode(ctx context.Context, modelID, nodeID string, patch models.NodePatch) (*models.Node, error) {
	model, err := s.draftModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	if err := model.UpdateNode(nodeID, patch); err != nil {
		return nil, err
	}

	node := model.Node(nodeID)

	if err := s.validatePayload(node); err != nil {
		return nil, err
	}

	if err := s.persistence.ModelRepository().Save(ctx, model); err != nil {
		return nil, fmt.Errorf("failed to update node: %w", err)
	}

	s.publish(ctx, modelID, events.NodeUpdated{
		BaseEvent: events.NewBaseEvent(events.NodeUpdatedEvent, modelID),
		NodeID:    nodeID,
	})

	return node, nil
}

// DeleteNode removes a node and cascades to its relationships and every
// stored reference to it.
func (s *Node) DeleteNode(ctx context.Context, modelID, nodeID string) error {
	model, err := s.draftModel(ctx, modelID)
	if err != nil {
		return err
	}

	if err := model.RemoveNode(nodeID); err != nil {
		return err
	}

	if err := s.persistence.ModelRepository().Save(ctx, model); err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	s.publish(ctx, modelID, events.NodeRemoved{
		BaseEvent: events.NewBaseEvent(events.NodeRemovedEvent, modelID),
		NodeID:    nodeID,
	})

	return nil
}

// draftModel loads the model and ensures it accepts structural mutations.
func (s *Node) draftModel(ctx context.Context, modelID string) (*models.FunctionModel, error) {
	model, err := s.persistence.ModelRepository().GetByID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	if model == nil {
		return nil, ErrModelNotFound
	}

	if model.Status != models.ModelStatusDraft {
		return nil, fmt.Errorf("%w: cannot modify nodes in %s model", ErrModelNotEditable, model.Status)
	}

	return model, nil
}

func (s *Node) validatePayload(node *models.Node) error {
	if s.validator == nil {
		return nil
	}

	var data any

	switch {
	case node.IOData != nil:
		data = node.IOData
	case node.StageData != nil:
		data = node.StageData
	case node.TetherData != nil:
		data = node.TetherData
	case node.KBData != nil:
		data = node.KBData
	case node.ContainerData != nil:
		data = node.ContainerData
	}

	return s.validator.ValidateNodeData(node.Type, data)
}

// Notification failures never fail the operation itself.
func (s *Node) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "model_id", key, "error", err)
	}
}
