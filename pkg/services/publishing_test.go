package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence/file"
)

func TestPublishing_Publish(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewPublishing(persistence, nil)
	model := seedConnectableModel(t, persistence)

	published, err := service.Publish(t.Context(), model.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModelStatusPublished, published.Status)

	stored, err := persistence.ModelRepository().GetByID(t.Context(), model.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModelStatusPublished, stored.Status)
}

func TestPublishing_Publish_NotFound(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewPublishing(persistence, nil)

	_, err := service.Publish(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestPublishing_Publish_EmptyModelRejected(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewPublishing(persistence, nil)
	model := newDraftModel(t, persistence)

	_, err := service.Publish(t.Context(), model.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodesRequired)
	assert.True(t, IsValidationError(err))
}

func TestPublishing_Publish_AlreadyPublished(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewPublishing(persistence, nil)
	model := seedConnectableModel(t, persistence)

	_, err := service.Publish(t.Context(), model.ID)
	require.NoError(t, err)

	_, err = service.Publish(t.Context(), model.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)
	assert.True(t, IsConflictError(err))
}

func TestPublishing_Publish_DanglingRelationshipRejected(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewPublishing(persistence, nil)
	model := seedConnectableModel(t, persistence)

	loaded, err := persistence.ModelRepository().GetByID(t.Context(), model.ID)
	require.NoError(t, err)

	loaded.Relationships = append(loaded.Relationships, &models.Relationship{
		ID:           models.NewID(),
		SourceNodeID: "stage-1",
		TargetNodeID: "vanished",
		SourceHandle: models.HandleRightSource,
		TargetHandle: models.HandleLeftTarget,
		Type:         models.RelationshipSibling,
	})
	require.NoError(t, persistence.ModelRepository().Save(t.Context(), loaded))

	_, err = service.Publish(t.Context(), model.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDanglingRelationship)
}

func TestPublishing_Archive(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewPublishing(persistence, nil)
	model := seedConnectableModel(t, persistence)

	_, err := service.Publish(t.Context(), model.ID)
	require.NoError(t, err)

	archived, err := service.Archive(t.Context(), model.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModelStatusArchived, archived.Status)

	_, err = service.Archive(t.Context(), model.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)
}

func TestPublishing_Recover(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewPublishing(persistence, nil)
	model := seedConnectableModel(t, persistence)

	loaded, err := persistence.ModelRepository().GetByID(t.Context(), model.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.MarkError())
	require.NoError(t, persistence.ModelRepository().Save(t.Context(), loaded))

	recovered, err := service.Recover(t.Context(), model.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModelStatusDraft, recovered.Status)
}

func TestPublishing_Recover_OnlyFromError(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewPublishing(persistence, nil)
	model := seedConnectableModel(t, persistence)

	_, err := service.Recover(t.Context(), model.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)
}
