// Package registry holds the JSON schemas for node payloads and validates
// payloads against them.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/latticehq/lattice/pkg/models"
)

// Registry maps node types to their compiled payload schemas.
type Registry struct {
	logger  *slog.Logger
	schemas map[models.NodeType]*gojsonschema.Schema
}

// NewRegistry creates a registry preloaded with the built-in node payload
// schemas.
func NewRegistry(logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		logger:  logger.With("module", "registry"),
		schemas: make(map[models.NodeType]*gojsonschema.Schema),
	}

	for nodeType, schema := range builtinSchemas() {
		if err := r.Register(nodeType, schema); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register compiles and stores the payload schema for a node type, replacing
// any previous schema.
func (r *Registry) Register(nodeType models.NodeType, schema map[string]any) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", nodeType, err)
	}

	r.schemas[nodeType] = compiled

	return nil
}

// ValidateNodeData validates a node's type-specific payload against the
// registered schema for its type.
func (r *Registry) ValidateNodeData(nodeType models.NodeType, data any) error {
	schema, ok := r.schemas[nodeType]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownNodeType, nodeType)
	}

	if data == nil {
		return fmt.Errorf("%w: missing payload for %s", models.ErrNodeDataMismatch, nodeType)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate %s payload: %w", nodeType, err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		r.logger.Debug("Payload validation failed",
			"node_type", nodeType, "errors", descriptions)

		return fmt.Errorf("%w: %s payload invalid: %s",
			models.ErrNodeDataMismatch, nodeType, strings.Join(descriptions, "; "))
	}

	return nil
}

// HealthCheck reports whether the registry is usable.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.schemas) == 0 {
		return "no payload schemas registered", false
	}

	return fmt.Sprintf("%d payload schemas registered", len(r.schemas)), true
}

// RegisteredTypes returns the node types with a registered schema, sorted.
func (r *Registry) RegisteredTypes() []models.NodeType {
	types := make([]models.NodeType, 0, len(r.schemas))
	for nodeType := range r.schemas {
		types = append(types, nodeType)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}
