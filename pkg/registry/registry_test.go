package registry

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	registry, err := NewRegistry(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)

	return registry
}

func TestRegistry_RegisteredTypes(t *testing.T) {
	registry := newTestRegistry(t)

	types := registry.RegisteredTypes()
	assert.Len(t, types, 5)
	assert.Contains(t, types, models.NodeTypeIO)
	assert.Contains(t, types, models.NodeTypeContainer)
}

func TestRegistry_ValidateNodeData_IO(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.ValidateNodeData(models.NodeTypeIO, &models.IOData{
		Mode:      models.IOModeInput,
		ActionIDs: []string{},
	})
	assert.NoError(t, err)

	err = registry.ValidateNodeData(models.NodeTypeIO, &models.IOData{
		Mode: "sideways",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNodeDataMismatch)
}

func TestRegistry_ValidateNodeData_Tether(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.ValidateNodeData(models.NodeTypeTether, &models.TetherData{
		SpindleReference: "spindle://scan-barcode",
		Retry:            models.RetryPolicy{MaxAttempts: 3, Strategy: models.BackoffExponential, BaseDelaySecond: 1},
	})
	assert.NoError(t, err)

	err = registry.ValidateNodeData(models.NodeTypeTether, map[string]any{
		"parameters": map[string]any{"sku": "abc"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spindle_reference")
}

func TestRegistry_ValidateNodeData_UnknownType(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.ValidateNodeData("mysteryNode", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnknownNodeType)
}

func TestRegistry_ValidateNodeData_NilPayload(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.ValidateNodeData(models.NodeTypeKB, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNodeDataMismatch)
}

func TestRegistry_Register_InvalidSchema(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.Register(models.NodeTypeStage, map[string]any{
		"type": 42,
	})
	assert.Error(t, err)
}
