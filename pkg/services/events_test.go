package services

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/eventbus"
	"github.com/latticehq/lattice/pkg/events"
	"github.com/latticehq/lattice/pkg/mocks"
	"github.com/latticehq/lattice/pkg/persistence/file"
)

func TestModel_Create_PublishesEvent(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())

	bus := new(mocks.MockEventBus)
	bus.On("Publish", mock.Anything, mock.Anything, mock.MatchedBy(func(event eventbus.Event) bool {
		created, ok := event.(events.ModelCreated)

		return ok && created.Name == "Order Fulfillment" && created.OwnerID == "test-user"
	})).Return(nil).Once()

	service := NewModel(persistence, bus)

	model, err := service.Create(t.Context(), CreateModelRequest{
		Name:    "Order Fulfillment",
		OwnerID: "test-user",
	})
	require.NoError(t, err)
	require.NotNil(t, model)

	bus.AssertExpectations(t)
}

func TestModel_Delete_PublishesEvent(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())

	bus := new(mocks.MockEventBus)
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	service := NewModel(persistence, bus)

	model, err := service.Create(t.Context(), CreateModelRequest{Name: "Order Fulfillment", OwnerID: "test-user"})
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), model.ID, "admin"))

	deleted := false

	for _, call := range bus.Calls {
		if event, ok := call.Arguments.Get(2).(events.ModelDeleted); ok {
			deleted = true

			assert.Equal(t, model.ID, event.ModelID)
			assert.Equal(t, "admin", event.DeletedBy)
		}
	}

	assert.True(t, deleted, "expected a model.deleted event")
}

func TestModel_Create_LogsPublishFailure(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())

	bus := new(mocks.MockEventBus)
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	var logs bytes.Buffer

	service := NewModel(persistence, bus)
	service.logger = slog.New(slog.NewTextHandler(&logs, nil))

	model, err := service.Create(t.Context(), CreateModelRequest{Name: "Order Fulfillment", OwnerID: "test-user"})
	require.NoError(t, err)

	stored, err := persistence.ModelRepository().GetByID(t.Context(), model.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)

	assert.Contains(t, logs.String(), "Failed to publish event")
	assert.Contains(t, logs.String(), "broker down")
	assert.Contains(t, logs.String(), string(events.ModelCreatedEvent))
}
