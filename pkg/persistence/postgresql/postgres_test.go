package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
	"github.com/latticehq/lattice/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"audit_entries", "model_versions", "model_relationships", "model_nodes", "function_models", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("lattice_test"),
			postgres.WithUsername("lattice"),
			postgres.WithPassword("lattice"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func buildTestModel(t *testing.T) *models.FunctionModel {
	t.Helper()

	model, err := models.NewFunctionModel("Order Fulfillment", "1.0.0", "test-user")
	require.NoError(t, err)

	stage := &models.Node{
		ID:        "stage-1",
		Type:      models.NodeTypeStage,
		Name:      "Pick Items",
		Position:  models.Position{X: 100, Y: 100},
		StageData: &models.StageData{Goals: []string{"pick every line item"}, ActionIDs: []string{}},
	}
	tether := &models.Node{
		ID:       "tether-1",
		Type:     models.NodeTypeTether,
		Name:     "Scan Barcode",
		Position: models.Position{X: 100, Y: 300},
		TetherData: &models.TetherData{
			SpindleReference: "spindle://scan-barcode",
			Retry:            models.RetryPolicy{MaxAttempts: 3, Strategy: models.BackoffExponential, BaseDelaySecond: 2},
		},
	}
	io := &models.Node{
		ID:       "io-1",
		Type:     models.NodeTypeIO,
		Name:     "Order Input",
		Position: models.Position{X: 400, Y: 100},
		IOData:   &models.IOData{Mode: models.IOModeInput, ActionIDs: []string{}},
	}

	require.NoError(t, model.AddNode(stage))
	require.NoError(t, model.AddNode(tether))
	require.NoError(t, model.AddNode(io))

	_, err = model.Connect("tether-1", "stage-1", models.HandleHeaderSource, models.HandleBottomTarget)
	require.NoError(t, err)

	_, err = model.Connect("stage-1", "io-1", models.HandleRightSource, models.HandleLeftTarget)
	require.NoError(t, err)

	return model
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	for _, table := range []string{"function_models", "model_nodes", "model_relationships", "model_versions", "audit_entries"} {
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestModelRepository_SaveAndRetrieve(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	model := buildTestModel(t)
	model.Metadata = map[string]any{"team": "fulfillment"}

	err := p.ModelRepository().Save(ctx, model)
	require.NoError(t, err)
	assert.False(t, model.CreatedAt.IsZero())
	assert.False(t, model.LastSavedAt.IsZero())

	retrieved, err := p.ModelRepository().GetByID(ctx, model.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, model.ID, retrieved.ID)
	assert.Equal(t, model.Name, retrieved.Name)
	assert.Equal(t, model.Version, retrieved.Version)
	assert.Equal(t, model.CurrentVersion, retrieved.CurrentVersion)
	assert.Equal(t, models.ModelStatusDraft, retrieved.Status)
	assert.Equal(t, "test-user", retrieved.Permissions.Owner)
	assert.Equal(t, "fulfillment", retrieved.Metadata["team"])

	require.Len(t, retrieved.Nodes, 3)
	require.Len(t, retrieved.Relationships, 3) // inverse pair + one sibling

	stage := retrieved.Node("stage-1")
	require.NotNil(t, stage)
	require.NotNil(t, stage.StageData)
	assert.Contains(t, stage.StageData.ActionIDs, "tether-1")

	tether := retrieved.Node("tether-1")
	require.NotNil(t, tether)
	require.NotNil(t, tether.TetherData)
	assert.Equal(t, "spindle://scan-barcode", tether.TetherData.SpindleReference)
	assert.Equal(t, 3, tether.TetherData.Retry.MaxAttempts)

	notFound, err := p.ModelRepository().GetByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, notFound)
}

func TestModelRepository_SaveGuarded(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	model := buildTestModel(t)

	err := p.ModelRepository().Save(ctx, model)
	require.NoError(t, err)

	lastSeen := model.UpdatedAt

	time.Sleep(10 * time.Millisecond)

	// A competing session advances the stored row.
	err = p.ModelRepository().Save(ctx, model)
	require.NoError(t, err)

	err = p.ModelRepository().SaveGuarded(ctx, model, lastSeen)
	require.Error(t, err)
	assert.True(t, persistence.IsVersionConflict(err))

	// With a fresh read the guarded save goes through.
	err = p.ModelRepository().SaveGuarded(ctx, model, model.UpdatedAt)
	assert.NoError(t, err)
}

func TestModelRepository_List(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	first := buildTestModel(t)
	require.NoError(t, p.ModelRepository().Save(ctx, first))

	second := buildTestModel(t)
	second.ID = ""
	second.Permissions.Owner = "another-user"
	require.NoError(t, second.Publish())
	require.NoError(t, p.ModelRepository().Save(ctx, second))

	result, err := p.ModelRepository().List(ctx, persistence.ListModelsOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Models, 2)
	assert.EqualValues(t, 2, result.TotalCount)
	assert.False(t, result.HasNextPage)

	published := models.ModelStatusPublished
	result, err = p.ModelRepository().List(ctx, persistence.ListModelsOptions{Status: &published})
	require.NoError(t, err)
	require.Len(t, result.Models, 1)
	assert.Equal(t, second.ID, result.Models[0].ID)

	result, err = p.ModelRepository().List(ctx, persistence.ListModelsOptions{OwnerID: "test-user"})
	require.NoError(t, err)
	require.Len(t, result.Models, 1)
	assert.Equal(t, first.ID, result.Models[0].ID)

	_, err = p.ModelRepository().List(ctx, persistence.ListModelsOptions{SortBy: "permissions"})
	require.Error(t, err)
	assert.True(t, persistence.IsInvalidSortField(err))
}

func TestModelRepository_SoftDelete(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	model := buildTestModel(t)
	require.NoError(t, p.ModelRepository().Save(ctx, model))

	err := p.ModelRepository().Delete(ctx, model.ID, "admin")
	require.NoError(t, err)

	deleted, err := p.ModelRepository().GetByID(ctx, model.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted)

	err = p.ModelRepository().Delete(ctx, uuid.NewString(), "admin")
	require.Error(t, err)
	assert.True(t, persistence.IsModelNotFound(err))
}

func TestNodeRepository_DeleteNodeWithRelationships(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	model := buildTestModel(t)
	require.NoError(t, p.ModelRepository().Save(ctx, model))

	err := p.NodeRepository().DeleteNodeWithRelationships(ctx, model.ID, "tether-1")
	require.NoError(t, err)

	retrieved, err := p.ModelRepository().GetByID(ctx, model.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Nil(t, retrieved.Node("tether-1"))
	assert.Len(t, retrieved.Nodes, 2)

	for _, rel := range retrieved.Relationships {
		assert.False(t, rel.References("tether-1"))
	}

	stage := retrieved.Node("stage-1")
	require.NotNil(t, stage)
	assert.NotContains(t, stage.StageData.ActionIDs, "tether-1")

	err = p.NodeRepository().DeleteNodeWithRelationships(ctx, model.ID, "tether-1")
	require.Error(t, err)
	assert.True(t, persistence.IsNodeNotFound(err))
}

func TestRelationshipRepository_DeleteBetween(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	model := buildTestModel(t)
	require.NoError(t, p.ModelRepository().Save(ctx, model))

	// Drops the parent-child inverse pair as one unit, either direction.
	err := p.RelationshipRepository().DeleteBetween(ctx, model.ID, "tether-1", "stage-1")
	require.NoError(t, err)

	relationships, err := p.RelationshipRepository().GetRelationshipsByModel(ctx, model.ID)
	require.NoError(t, err)
	require.Len(t, relationships, 1)
	assert.Equal(t, models.RelationshipSibling, relationships[0].Type)

	stage, err := p.NodeRepository().GetNodeByModel(ctx, model.ID, "stage-1")
	require.NoError(t, err)
	assert.NotContains(t, stage.StageData.ActionIDs, "tether-1")

	err = p.RelationshipRepository().DeleteBetween(ctx, model.ID, "tether-1", "stage-1")
	require.Error(t, err)
	assert.True(t, persistence.IsRelationshipNotFound(err))
}

func TestVersionRepository_SaveAndList(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	model := buildTestModel(t)
	require.NoError(t, p.ModelRepository().Save(ctx, model))

	for i := 1; i <= 3; i++ {
		record := &models.VersionRecord{
			ModelID:       model.ID,
			VersionNumber: i,
			Version:       models.Version{Major: 1, Minor: i - 1},
			ChangeSummary: "checkpoint",
			AuthorID:      "test-user",
			Snapshot:      models.CaptureSnapshot(model),
		}

		require.NoError(t, p.VersionRepository().SaveVersion(ctx, record))
		require.NotEmpty(t, record.ID)
	}

	records, err := p.VersionRepository().ListVersions(ctx, model.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 3, records[0].VersionNumber) // newest first

	got, err := p.VersionRepository().GetVersion(ctx, model.ID, records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.Name, got.Snapshot.Name)
	assert.Len(t, got.Snapshot.Nodes, 3)

	_, err = p.VersionRepository().GetVersion(ctx, model.ID, uuid.NewString())
	require.Error(t, err)
	assert.True(t, persistence.IsVersionNotFound(err))
}

func TestAuditRepository_SaveAndList(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	model := buildTestModel(t)
	require.NoError(t, p.ModelRepository().Save(ctx, model))

	entries := []*models.AuditEntry{
		{EntityType: "function_model", EntityID: model.ID, Action: models.AuditActionCreate, UserID: "test-user"},
		{EntityType: "function_model", EntityID: model.ID, Action: models.AuditActionUpdate, UserID: "test-user",
			NewData: map[string]any{"status": "published"}},
	}

	for _, entry := range entries {
		require.NoError(t, p.AuditRepository().SaveEntry(ctx, entry))
	}

	trail, err := p.AuditRepository().ListByEntity(ctx, "function_model", model.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.AuditActionCreate, trail[0].Action)
	assert.Equal(t, "published", trail[1].NewData["status"])

	empty, err := p.AuditRepository().ListByEntity(ctx, "function_model", uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
