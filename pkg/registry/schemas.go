package registry

import "github.com/latticehq/lattice/pkg/models"

// builtinSchemas returns the payload schema for each supported node type.
// Retry and RACI shapes are validated structurally here; value bounds are
// enforced by the payload types themselves.
func builtinSchemas() map[models.NodeType]map[string]any {
	retrySchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"max_attempts": map[string]any{
				"type":    "integer",
				"minimum": 0,
				"maximum": 10,
			},
			"strategy": map[string]any{
				"type": "string",
				"enum": []string{"immediate", "linear", "exponential"},
			},
			"base_delay_seconds": map[string]any{
				"type":    "integer",
				"minimum": 0,
			},
		},
	}

	// Slices marshal as null when unset, so the array fields also accept null.
	stringList := map[string]any{
		"type":  []string{"array", "null"},
		"items": map[string]any{"type": "string"},
	}

	raciSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"responsible": stringList,
			"accountable": stringList,
			"consulted":   stringList,
			"informed":    stringList,
		},
	}

	actionIDs := stringList

	return map[models.NodeType]map[string]any{
		models.NodeTypeIO: {
			"type":     "object",
			"required": []string{"mode"},
			"properties": map[string]any{
				"mode": map[string]any{
					"type": "string",
					"enum": []string{"input", "output", "bidirectional"},
				},
				"data_contract": map[string]any{"type": "object"},
				"action_ids":    actionIDs,
			},
		},
		models.NodeTypeStage: {
			"type": "object",
			"properties": map[string]any{
				"goals":         stringList,
				"configuration": map[string]any{"type": "object"},
				"action_ids":    actionIDs,
			},
		},
		models.NodeTypeTether: {
			"type":     "object",
			"required": []string{"spindle_reference"},
			"properties": map[string]any{
				"spindle_reference": map[string]any{"type": "string", "minLength": 1},
				"parameters":        map[string]any{"type": "object"},
				"retry":             retrySchema,
				"raci":              raciSchema,
			},
		},
		models.NodeTypeKB: {
			"type":     "object",
			"required": []string{"kb_reference"},
			"properties": map[string]any{
				"kb_reference": map[string]any{"type": "string", "minLength": 1},
				"short_text":   map[string]any{"type": "string"},
				"raci":         raciSchema,
			},
		},
		models.NodeTypeContainer: {
			"type":     "object",
			"required": []string{"nested_model_id"},
			"properties": map[string]any{
				"nested_model_id":   map[string]any{"type": "string", "minLength": 1},
				"context_mapping":   map[string]any{"type": "object"},
				"output_extraction": map[string]any{"type": "object"},
			},
		},
	}
}
