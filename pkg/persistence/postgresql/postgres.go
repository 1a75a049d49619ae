// Package postgresql provides PostgreSQL persistence for function models,
// their nodes, relationships, versions and audit trail.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// PostgreSQL driver registration.
	_ "github.com/lib/pq"

	"github.com/latticehq/lattice/pkg/persistence"
	"github.com/latticehq/lattice/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db               *sql.DB
	logger           *slog.Logger
	modelRepo        *ModelRepository
	nodeRepo         *NodeRepository
	relationshipRepo *RelationshipRepository
	versionRepo      *VersionRepository
	auditRepo        *AuditRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// schema migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	nodeRepo := NewNodeRepository(database, logger)
	relationshipRepo := NewRelationshipRepository(database, logger)

	return &Persistence{
		db:               database,
		logger:           logger,
		modelRepo:        NewModelRepository(database, logger, nodeRepo, relationshipRepo),
		nodeRepo:         nodeRepo,
		relationshipRepo: relationshipRepo,
		versionRepo:      NewVersionRepository(database, logger),
		auditRepo:        NewAuditRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) ModelRepository() persistence.ModelRepository {
	return p.modelRepo
}

func (p *Persistence) NodeRepository() persistence.NodeRepository {
	return p.nodeRepo
}

func (p *Persistence) RelationshipRepository() persistence.RelationshipRepository {
	return p.relationshipRepo
}

func (p *Persistence) VersionRepository() persistence.VersionRepository {
	return p.versionRepo
}

func (p *Persistence) AuditRepository() persistence.AuditRepository {
	return p.auditRepo
}
