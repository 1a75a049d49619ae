// Package persistence provides the data storage abstraction for function
// models, their nodes and relationships, version records and audit entries.
package persistence

import (
	"context"
	"time"

	"github.com/latticehq/lattice/pkg/models"
)

// Persistence is the top-level storage entry point. Implementations expose
// one repository per aggregate concern and manage the shared connection.
type Persistence interface {
	ModelRepository() ModelRepository
	NodeRepository() NodeRepository
	RelationshipRepository() RelationshipRepository
	VersionRepository() VersionRepository
	AuditRepository() AuditRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListModelsOptions filters, sorts and paginates model listings.
type ListModelsOptions struct {
	Limit   int
	Offset  int
	OwnerID string
	Status  *models.ModelStatus

	SortBy    string
	SortOrder string

	IncludeNodes         bool
	IncludeRelationships bool
}

// ListModelsResult carries one page of models plus paging metadata.
type ListModelsResult struct {
	Models      []*models.FunctionModel
	TotalCount  int64
	HasNextPage bool
}

// ModelRepository stores function-model aggregates. GetByID returns (nil, nil)
// when no live model exists for the id; deletions are soft by default.
type ModelRepository interface {
	GetByID(ctx context.Context, id string) (*models.FunctionModel, error)
	List(ctx context.Context, opts ListModelsOptions) (*ListModelsResult, error)
	Save(ctx context.Context, model *models.FunctionModel) error

	// SaveGuarded rejects the write with ErrVersionConflict when the stored
	// row's updated_at has advanced past lastSeen since the caller read it.
	SaveGuarded(ctx context.Context, model *models.FunctionModel, lastSeen time.Time) error

	Delete(ctx context.Context, id, deletedBy string) error
}

// NodeRepository stores the nodes of a model.
type NodeRepository interface {
	GetNodesByModel(ctx context.Context, modelID string) ([]*models.Node, error)
	GetNodeByModel(ctx context.Context, modelID, nodeID string) (*models.Node, error)
	SaveNode(ctx context.Context, modelID string, node *models.Node) error

	// DeleteNodeWithRelationships removes the node and every relationship
	// referencing it in either direction in one logical operation.
	DeleteNodeWithRelationships(ctx context.Context, modelID, nodeID string) error
}

// RelationshipRepository stores the typed edges of a model.
type RelationshipRepository interface {
	GetRelationshipsByModel(ctx context.Context, modelID string) ([]*models.Relationship, error)

	// SaveRelationships persists a batch atomically: a parent-child inverse
	// pair is either fully written or not at all.
	SaveRelationships(ctx context.Context, modelID string, relationships []*models.Relationship) error

	DeleteRelationship(ctx context.Context, modelID, relationshipID string) error

	// DeleteBetween removes every relationship joining the two nodes,
	// matching either direction.
	DeleteBetween(ctx context.Context, modelID, nodeA, nodeB string) error
}

// VersionRepository stores immutable version records.
type VersionRepository interface {
	SaveVersion(ctx context.Context, record *models.VersionRecord) error
	GetVersion(ctx context.Context, modelID, versionID string) (*models.VersionRecord, error)
	ListVersions(ctx context.Context, modelID string) ([]*models.VersionRecord, error)
}

// AuditRepository stores the audit trail.
type AuditRepository interface {
	SaveEntry(ctx context.Context, entry *models.AuditEntry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error)
}
