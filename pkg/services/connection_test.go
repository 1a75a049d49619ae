package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
	"github.com/latticehq/lattice/pkg/persistence/file"
)

func seedConnectableModel(t *testing.T, p persistence.Persistence) *models.FunctionModel {
	t.Helper()

	model := newDraftModel(t, p)
	service := NewNode(p, nil, nil)

	_, err := service.CreateNode(t.Context(), model.ID, &CreateNodeRequest{
		ID:        "stage-1",
		Type:      models.NodeTypeStage,
		Name:      "Pick",
		StageData: &models.StageData{ActionIDs: []string{}},
	})
	require.NoError(t, err)

	_, err = service.CreateNode(t.Context(), model.ID, &CreateNodeRequest{
		ID:     "io-1",
		Type:   models.NodeTypeIO,
		Name:   "Order Input",
		IOData: &models.IOData{Mode: models.IOModeInput, ActionIDs: []string{}},
	})
	require.NoError(t, err)

	_, err = service.CreateNode(t.Context(), model.ID, &CreateNodeRequest{
		ID:   "tether-1",
		Type: models.NodeTypeTether,
		Name: "Scan",
		TetherData: &models.TetherData{
			SpindleReference: "spindle://scan",
			Retry:            models.RetryPolicy{MaxAttempts: 3, Strategy: models.BackoffExponential, BaseDelaySecond: 1},
		},
	})
	require.NoError(t, err)

	return model
}

func TestConnection_Connect_ParentChild(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewConnection(persistence, nil)
	model := seedConnectableModel(t, persistence)

	records, err := service.Connect(t.Context(), model.ID, ConnectRequest{
		SourceNodeID: "tether-1",
		TargetNodeID: "stage-1",
		SourceHandle: models.HandleHeaderSource,
		TargetHandle: models.HandleBottomTarget,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, models.RelationshipParentChild, records[0].Type)
	assert.Equal(t, models.RelationshipParentChild, records[1].Type)

	stage, err := persistence.NodeRepository().GetNodeByModel(t.Context(), model.ID, "stage-1")
	require.NoError(t, err)
	assert.Contains(t, stage.StageData.ActionIDs, "tether-1")
}

func TestConnection_Connect_Sibling(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewConnection(persistence, nil)
	model := seedConnectableModel(t, persistence)

	records, err := service.Connect(t.Context(), model.ID, ConnectRequest{
		SourceNodeID: "stage-1",
		TargetNodeID: "io-1",
		SourceHandle: models.HandleRightSource,
		TargetHandle: models.HandleLeftTarget,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.RelationshipSibling, records[0].Type)
}

func TestConnection_Connect_InvalidHandles(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewConnection(persistence, nil)
	model := seedConnectableModel(t, persistence)

	_, err := service.Connect(t.Context(), model.ID, ConnectRequest{
		SourceNodeID: "stage-1",
		TargetNodeID: "io-1",
		SourceHandle: models.HandleLeftTarget,
		TargetHandle: models.HandleRightSource,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidConnection)
	assert.True(t, IsValidationError(err))
}

func TestConnection_Connect_UnknownNode(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewConnection(persistence, nil)
	model := seedConnectableModel(t, persistence)

	_, err := service.Connect(t.Context(), model.ID, ConnectRequest{
		SourceNodeID: "missing",
		TargetNodeID: "stage-1",
		SourceHandle: models.HandleHeaderSource,
		TargetHandle: models.HandleBottomTarget,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNodeNotFound)
}

func TestConnection_Connect_NonDraftModel(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewConnection(persistence, nil)
	model := seedConnectableModel(t, persistence)

	loaded, err := persistence.ModelRepository().GetByID(t.Context(), model.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.Publish())
	require.NoError(t, persistence.ModelRepository().Save(t.Context(), loaded))

	_, err = service.Connect(t.Context(), model.ID, ConnectRequest{
		SourceNodeID: "tether-1",
		TargetNodeID: "stage-1",
		SourceHandle: models.HandleHeaderSource,
		TargetHandle: models.HandleBottomTarget,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotEditable)
	assert.True(t, IsConflictError(err))
}

func TestConnection_Disconnect(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewConnection(persistence, nil)
	model := seedConnectableModel(t, persistence)

	_, err := service.Connect(t.Context(), model.ID, ConnectRequest{
		SourceNodeID: "tether-1",
		TargetNodeID: "stage-1",
		SourceHandle: models.HandleHeaderSource,
		TargetHandle: models.HandleBottomTarget,
	})
	require.NoError(t, err)

	_, err = service.Connect(t.Context(), model.ID, ConnectRequest{
		SourceNodeID: "stage-1",
		TargetNodeID: "io-1",
		SourceHandle: models.HandleRightSource,
		TargetHandle: models.HandleLeftTarget,
	})
	require.NoError(t, err)

	err = service.Disconnect(t.Context(), model.ID, "tether-1", "stage-1")
	require.NoError(t, err)

	relationships, err := service.ListRelationships(t.Context(), model.ID)
	require.NoError(t, err)
	require.Len(t, relationships, 1)
	assert.Equal(t, models.RelationshipSibling, relationships[0].Type)

	stage, err := persistence.NodeRepository().GetNodeByModel(t.Context(), model.ID, "stage-1")
	require.NoError(t, err)
	assert.NotContains(t, stage.StageData.ActionIDs, "tether-1")
}

func TestConnection_Disconnect_NotFound(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewConnection(persistence, nil)
	model := seedConnectableModel(t, persistence)

	err := service.Disconnect(t.Context(), model.ID, "stage-1", "io-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRelationshipNotFound)
	assert.True(t, IsNotFoundError(err))
}
