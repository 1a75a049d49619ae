package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence/file"
)

func TestNewModel(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	assert.NotNil(t, service)
	assert.Equal(t, persistence, service.persistence)
}

func TestModel_Create(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	created, err := service.Create(t.Context(), CreateModelRequest{
		Name:        "Order Fulfillment",
		Description: "Warehouse order flow",
		OwnerID:     "user-1",
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.ModelStatusDraft, created.Status)
	assert.Equal(t, created.Version, created.CurrentVersion)
	assert.Equal(t, "1.0.0", created.Version.String())
	assert.Equal(t, "user-1", created.Permissions.Owner)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestModel_Create_RequiresOwner(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	_, err := service.Create(t.Context(), CreateModelRequest{Name: "No Owner"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyOwnerID)
	assert.True(t, IsValidationError(err))
}

func TestModel_Create_InvalidName(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	_, err := service.Create(t.Context(), CreateModelRequest{Name: "   ", OwnerID: "user-1"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestModel_FetchByID(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	created, err := service.Create(t.Context(), CreateModelRequest{Name: "Fetch Me", OwnerID: "user-1"})
	require.NoError(t, err)

	fetched, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, created.Name, fetched.Name)
}

func TestModel_FetchByID_NotFound(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	_, err := service.FetchByID(t.Context(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.True(t, IsNotFoundError(err))
}

func TestModel_List(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		_, err := service.Create(t.Context(), CreateModelRequest{Name: name, OwnerID: "user-1"})
		require.NoError(t, err)
	}

	_, err := service.Create(t.Context(), CreateModelRequest{Name: "Other", OwnerID: "user-2"})
	require.NoError(t, err)

	result, err := service.List(t.Context(), ListModelsRequest{})
	require.NoError(t, err)
	assert.Len(t, result.Models, 4)
	assert.EqualValues(t, 4, result.TotalCount)

	result, err = service.List(t.Context(), ListModelsRequest{OwnerID: "user-2"})
	require.NoError(t, err)
	assert.Len(t, result.Models, 1)

	result, err = service.List(t.Context(), ListModelsRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result.Models, 2)
	assert.True(t, result.HasNextPage)
}

func TestModel_List_InvalidSortField(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	_, err := service.List(t.Context(), ListModelsRequest{SortBy: "owner"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSortField)
	assert.True(t, IsValidationError(err))
}

func TestModel_List_InvalidSortOrder(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	_, err := service.List(t.Context(), ListModelsRequest{SortOrder: "sideways"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSortOrder)
}

func TestModel_Update(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	created, err := service.Create(t.Context(), CreateModelRequest{Name: "Before", OwnerID: "user-1"})
	require.NoError(t, err)

	newName := "After"
	newDescription := "updated"

	updated, err := service.Update(t.Context(), created.ID, UpdateModelRequest{
		Name:        &newName,
		Description: &newDescription,
	})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Name.String())
	assert.Equal(t, "updated", updated.Description)
}

func TestModel_Update_VersionConflict(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	created, err := service.Create(t.Context(), CreateModelRequest{Name: "Contended", OwnerID: "user-1"})
	require.NoError(t, err)

	staleRead := created.UpdatedAt.Add(-time.Minute)
	name := "Too Late"

	_, err = service.Update(t.Context(), created.ID, UpdateModelRequest{
		Name:              &name,
		LastSeenUpdatedAt: staleRead,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.True(t, IsConflictError(err))
}

func TestModel_Update_PublishedRejected(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	created, err := service.Create(t.Context(), CreateModelRequest{Name: "Frozen", OwnerID: "user-1"})
	require.NoError(t, err)

	model, err := persistence.ModelRepository().GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	require.NoError(t, model.Publish())
	require.NoError(t, persistence.ModelRepository().Save(t.Context(), model))

	name := "Nope"

	_, err = service.Update(t.Context(), created.ID, UpdateModelRequest{Name: &name})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotEditable)
	assert.True(t, IsConflictError(err))
}

func TestModel_Delete(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	created, err := service.Create(t.Context(), CreateModelRequest{Name: "Doomed", OwnerID: "user-1"})
	require.NoError(t, err)

	err = service.Delete(t.Context(), created.ID, "admin")
	require.NoError(t, err)

	_, err = service.FetchByID(t.Context(), created.ID)
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestModel_Delete_NotFound(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewModel(persistence, nil)

	err := service.Delete(t.Context(), "missing", "admin")
	assert.ErrorIs(t, err, ErrModelNotFound)
}
