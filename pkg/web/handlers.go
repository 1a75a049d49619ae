// Package web provides HTTP handlers and REST API endpoints for model authoring.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/registry"
	"github.com/latticehq/lattice/pkg/services"
)

type APIHandlers struct {
	modelService      *services.Model
	nodeService       *services.Node
	connectionService *services.Connection
	publishingService *services.Publishing
	versioningService *services.Versioning
	validator         *validator.Validate
	registry          *registry.Registry
}

func NewAPIHandlers(
	modelService *services.Model,
	nodeService *services.Node,
	connectionService *services.Connection,
	publishingService *services.Publishing,
	versioningService *services.Versioning,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		modelService:      modelService,
		nodeService:       nodeService,
		connectionService: connectionService,
		publishingService: publishingService,
		versioningService: versioningService,
		validator:         validator,
		registry:          registry,
	}
}

func (h *APIHandlers) GetModels(c fiber.Ctx) error {
	req, err := h.parseListModelsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.modelService.List(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"models":        result.Models,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListModelsRequest parses and validates query parameters for listing models.
func (h *APIHandlers) parseListModelsRequest(c fiber.Ctx) (*services.ListModelsRequest, error) {
	req := &services.ListModelsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	req.OwnerID = c.Query("owner_id")

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.ModelStatus(statusStr)
		req.Status = &status
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	if includeNodesStr := c.Query("include_nodes"); includeNodesStr != "" {
		includeNodes, err := strconv.ParseBool(includeNodesStr)
		if err != nil {
			return nil, err
		}

		req.IncludeNodes = includeNodes
	}

	if includeRelationshipsStr := c.Query("include_relationships"); includeRelationshipsStr != "" {
		includeRelationships, err := strconv.ParseBool(includeRelationshipsStr)
		if err != nil {
			return nil, err
		}

		req.IncludeRelationships = includeRelationships
	}

	return req, nil
}

func (h *APIHandlers) GetModel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Model ID is required")
	}

	model, err := h.modelService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(model)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.modelService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Lattice API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Lattice API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateModel(c fiber.Ctx) error {
	var req CreateModelRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.modelService.Create(c.Context(), services.CreateModelRequest{
		Name:        req.Name,
		Description: req.Description,
		Version:     req.Version,
		OwnerID:     req.Owner,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateModel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Model ID is required")
	}

	var req UpdateModelRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.modelService.Update(c.Context(), id, services.UpdateModelRequest{
		Name:              req.Name,
		Description:       req.Description,
		Metadata:          req.Metadata,
		LastSeenUpdatedAt: req.LastSeenUpdatedAt,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteModel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Model ID is required")
	}

	if err := h.modelService.Delete(c.Context(), id, c.Query("deleted_by")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishModel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Model ID is required")
	}

	published, err := h.publishingService.Publish(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) ArchiveModel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Model ID is required")
	}

	archived, err := h.publishingService.Archive(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(archived)
}

func (h *APIHandlers) RecoverModel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Model ID is required")
	}

	recovered, err := h.publishingService.Recover(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(recovered)
}

func (h *APIHandlers) CreateNode(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Model ID is required")
	}

	var req CreateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.nodeService.CreateNode(c.Context(), id, &services.CreateNodeRequest{
		ID:            req.ID,
		Type:          req.Type,
		Name:          req.Name,
		Description:   req.Description,
		Position:      req.Position,
		ExecutionType: req.ExecutionType,
		Dependencies:  req.Dependencies,
		Metadata:      req.Metadata,
		IOData:        req.IOData,
		StageData:     req.StageData,
		TetherData:    req.TetherData,
		KBData:        req.KBData,
		ContainerData: req.ContainerData,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) GetNodes(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Model ID is required")
	}

	nodes, err := h.nodeService.ListNodes(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(nodes)
}

func (h *APIHandlers) GetNode(c fiber.Ctx) error {
	id := c.Params("id")
	nodeID := c.Params("nodeId")

	if id == "" || nodeID == "" {
		return badRequest(c, "Model ID and node ID are required")
	}

	node, err := h.nodeService.GetNode(c.Context(), id, nodeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) UpdateNode(c fiber.Ctx) error {
	id := c.Params("id")
	nodeID := c.Params("nodeId")

	if id == "" || nodeID == "" {
		return badRequest(c, "Model ID and node ID are required")
	}

	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.nodeService.UpdateNode(c.Context(), id, nodeID, req.Patch())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) DeleteNode(c fiber.Ctx) error {
	id := c.Params("id")
	nodeID := c.Params("nodeId")

	if id == "" || nodeID == "" {
		return badRequest(c, "Model ID and node ID are required")
	}

	if err := h.nodeService.DeleteNode(c.Context(), id, nodeID); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetRelationships(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Model ID is required")
	}

	relationships, err := h.connectionService.ListRelationships(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(relationships)
}

func (h *APIHandlers) Connect(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Model ID is required")
	}

	var req ConnectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	records, err := h.connectionService.Connect(c.Context(), id, services.ConnectRequest{
		SourceNodeID: req.SourceNodeID,
		TargetNodeID: req.TargetNodeID,
		SourceHandle: req.SourceHandle,
		TargetHandle: req.TargetHandle,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(records)
}

func (h *APIHandlers) Disconnect(c fiber.Ctx) error {
	id := c.Params("id")
	nodeA := c.Query("node_a")
	nodeB := c.Query("node_b")

	if id == "" || nodeA == "" || nodeB == "" {
		return badRequest(c, "Model ID and both node IDs are required")
	}

	if err := h.connectionService.Disconnect(c.Context(), id, nodeA, nodeB); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateVersion(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Model ID is required")
	}

	var req CreateVersionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	record, err := h.versioningService.CreateVersion(c.Context(), id, req.ChangeSummary, req.AuthorID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

func (h *APIHandlers) GetVersions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Model ID is required")
	}

	records, err := h.versioningService.ListVersions(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(records)
}

func (h *APIHandlers) GetVersion(c fiber.Ctx) error {
	id := c.Params("id")
	versionID := c.Params("versionId")

	if id == "" || versionID == "" {
		return badRequest(c, "Model ID and version ID are required")
	}

	record, err := h.versioningService.GetVersion(c.Context(), id, versionID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) RestoreVersion(c fiber.Ctx) error {
	id := c.Params("id")
	versionID := c.Params("versionId")

	if id == "" || versionID == "" {
		return badRequest(c, "Model ID and version ID are required")
	}

	result, err := h.versioningService.RestoreModelFromVersion(c.Context(), id, versionID)
	if err != nil {
		return handleServiceError(c, err)
	}

	if !result.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
	}

	return c.JSON(result)
}
