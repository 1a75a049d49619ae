package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
	"github.com/latticehq/lattice/pkg/persistence/file"
)

func newDraftModel(t *testing.T, persistence persistence.Persistence) *models.FunctionModel {
	t.Helper()

	model, err := models.NewFunctionModel("Test Model", "1.0.0", "user-1")
	require.NoError(t, err)
	require.NoError(t, persistence.ModelRepository().Save(t.Context(), model))

	return model
}

func TestNode_CreateNode(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewNode(persistence, nil, nil)
	model := newDraftModel(t, persistence)

	node, err := service.CreateNode(t.Context(), model.ID, &CreateNodeRequest{
		Type:      models.NodeTypeStage,
		Name:      "Pick Items",
		StageData: &models.StageData{Goals: []string{"pick"}, ActionIDs: []string{}},
	})
	require.NoError(t, err)
	require.NotNil(t, node)

	assert.NotEmpty(t, node.ID)
	assert.Equal(t, models.NodeStatusDraft, node.Status)
	assert.Equal(t, models.ExecutionSequential, node.ExecutionType)
	assert.NotNil(t, node.Dependencies)

	stored, err := service.GetNode(t.Context(), model.ID, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pick Items", stored.Name)
}

func TestNode_CreateNode_PayloadMismatch(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewNode(persistence, nil, nil)
	model := newDraftModel(t, persistence)

	_, err := service.CreateNode(t.Context(), model.ID, &CreateNodeRequest{
		Type:   models.NodeTypeStage,
		Name:   "Wrong Payload",
		IOData: &models.IOData{Mode: models.IOModeInput},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNodeDataMismatch)
	assert.True(t, IsValidationError(err))
}

func TestNode_CreateNode_DuplicateID(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewNode(persistence, nil, nil)
	model := newDraftModel(t, persistence)

	req := &CreateNodeRequest{
		ID:        "stage-1",
		Type:      models.NodeTypeStage,
		Name:      "Stage",
		StageData: &models.StageData{ActionIDs: []string{}},
	}

	_, err := service.CreateNode(t.Context(), model.ID, req)
	require.NoError(t, err)

	_, err = service.CreateNode(t.Context(), model.ID, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNodeAlreadyExists)
	assert.True(t, IsConflictError(err))
}

func TestNode_CreateNode_ModelNotFound(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewNode(persistence, nil, nil)

	_, err := service.CreateNode(t.Context(), "missing", &CreateNodeRequest{
		Type:      models.NodeTypeStage,
		Name:      "Orphan",
		StageData: &models.StageData{ActionIDs: []string{}},
	})
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestNode_CreateNode_NonDraftModel(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewNode(persistence, nil, nil)
	model := newDraftModel(t, persistence)

	require.NoError(t, model.Publish())
	require.NoError(t, persistence.ModelRepository().Save(t.Context(), model))

	_, err := service.CreateNode(t.Context(), model.ID, &CreateNodeRequest{
		Type:      models.NodeTypeStage,
		Name:      "Too Late",
		StageData: &models.StageData{ActionIDs: []string{}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotEditable)
}

func TestNode_ListNodes(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewNode(persistence, nil, nil)
	model := newDraftModel(t, persistence)

	for _, id := range []string{"stage-1", "stage-2"} {
		_, err := service.CreateNode(t.Context(), model.ID, &CreateNodeRequest{
			ID:        id,
			Type:      models.NodeTypeStage,
			Name:      id,
			StageData: &models.StageData{ActionIDs: []string{}},
		})
		require.NoError(t, err)
	}

	nodes, err := service.ListNodes(t.Context(), model.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestNode_UpdateNode(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewNode(persistence, nil, nil)
	model := newDraftModel(t, persistence)

	created, err := service.CreateNode(t.Context(), model.ID, &CreateNodeRequest{
		ID:        "stage-1",
		Type:      models.NodeTypeStage,
		Name:      "Before",
		StageData: &models.StageData{ActionIDs: []string{}},
	})
	require.NoError(t, err)

	newName := "After"
	newPosition := models.Position{X: 100, Y: 200}

	updated, err := service.UpdateNode(t.Context(), model.ID, created.ID, models.NodePatch{
		Name:     &newName,
		Position: &newPosition,
	})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Name)
	assert.Equal(t, newPosition, updated.Position)

	stored, err := service.GetNode(t.Context(), model.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", stored.Name)
}

func TestNode_UpdateNode_PayloadKindCannotChange(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewNode(persistence, nil, nil)
	model := newDraftModel(t, persistence)

	created, err := service.CreateNode(t.Context(), model.ID, &CreateNodeRequest{
		ID:        "stage-1",
		Type:      models.NodeTypeStage,
		Name:      "Stage",
		StageData: &models.StageData{ActionIDs: []string{}},
	})
	require.NoError(t, err)

	_, err = service.UpdateNode(t.Context(), model.ID, created.ID, models.NodePatch{
		IOData: &models.IOData{Mode: models.IOModeInput},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNodeDataMismatch)
}

func TestNode_UpdateNode_NotFound(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewNode(persistence, nil, nil)
	model := newDraftModel(t, persistence)

	name := "Ghost"

	_, err := service.UpdateNode(t.Context(), model.ID, "missing", models.NodePatch{Name: &name})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNodeNotFound)
	assert.True(t, IsNotFoundError(err))
}

func TestNode_DeleteNode_CascadesRelationshipsAndReferences(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	nodeService := NewNode(persistence, nil, nil)
	connectionService := NewConnection(persistence, nil)
	model := newDraftModel(t, persistence)

	_, err := nodeService.CreateNode(t.Context(), model.ID, &CreateNodeRequest{
		ID:        "stage-1",
		Type:      models.NodeTypeStage,
		Name:      "Stage",
		StageData: &models.StageData{ActionIDs: []string{}},
	})
	require.NoError(t, err)

	_, err = nodeService.CreateNode(t.Context(), model.ID, &CreateNodeRequest{
		ID:   "tether-1",
		Type: models.NodeTypeTether,
		Name: "Scan",
		TetherData: &models.TetherData{
			SpindleReference: "spindle://scan",
			Retry:            models.RetryPolicy{MaxAttempts: 3, Strategy: models.BackoffExponential, BaseDelaySecond: 1},
		},
	})
	require.NoError(t, err)

	_, err = connectionService.Connect(t.Context(), model.ID, ConnectRequest{
		SourceNodeID: "tether-1",
		TargetNodeID: "stage-1",
		SourceHandle: models.HandleHeaderSource,
		TargetHandle: models.HandleBottomTarget,
	})
	require.NoError(t, err)

	err = nodeService.DeleteNode(t.Context(), model.ID, "tether-1")
	require.NoError(t, err)

	relationships, err := connectionService.ListRelationships(t.Context(), model.ID)
	require.NoError(t, err)
	assert.Empty(t, relationships)

	stage, err := nodeService.GetNode(t.Context(), model.ID, "stage-1")
	require.NoError(t, err)
	assert.NotContains(t, stage.StageData.ActionIDs, "tether-1")
}

func TestNode_DeleteNode_NotFound(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewNode(persistence, nil, nil)
	model := newDraftModel(t, persistence)

	err := service.DeleteNode(t.Context(), model.ID, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNodeNotFound)
}
