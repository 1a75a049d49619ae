package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
)

// ModelRepository handles function-model database operations. Saving writes
// the whole aggregate: the model row plus its node and relationship rows in
// one transaction.
type ModelRepository struct {
	db               *sql.DB
	logger           *slog.Logger
	nodeRepo         *NodeRepository
	relationshipRepo *RelationshipRepository
}

// NewModelRepository creates a new model repository.
func NewModelRepository(db *sql.DB, logger *slog.Logger, nodeRepo *NodeRepository, relationshipRepo *RelationshipRepository) *ModelRepository {
	return &ModelRepository{
		db:               db,
		logger:           logger,
		nodeRepo:         nodeRepo,
		relationshipRepo: relationshipRepo,
	}
}

const modelColumns = `
	model_id
  , name
  , description
  , version
  , current_version
  , version_count
  , status
  , metadata
  , permissions
  , created_at
  , updated_at
  , last_saved_at
  , deleted_at
  , deleted_by
`

// GetByID loads the full aggregate by id. Soft-deleted and missing models
// both yield (nil, nil).
func (r *ModelRepository) GetByID(ctx context.Context, id string) (*models.FunctionModel, error) {
	query := `SELECT ` + modelColumns + `
		FROM function_models
		WHERE model_id = $1 AND deleted_at IS NULL
	`

	row := r.db.QueryRowContext(ctx, query, id)

	model, err := r.scanModelBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan model: %w", err)
	}

	if err := r.loadAggregate(ctx, model); err != nil {
		return nil, err
	}

	return model, nil
}

// List returns paginated and filtered models. Nodes and relationships are
// loaded only when the options ask for them.
func (r *ModelRepository) List(ctx context.Context, opts persistence.ListModelsOptions) (*persistence.ListModelsResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder != "asc" {
		opts.SortOrder = "desc"
	}

	allowedSorts := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	where := "deleted_at IS NULL"
	args := make([]any, 0, 2)

	if opts.OwnerID != "" {
		args = append(args, opts.OwnerID)
		where += " AND permissions->>'owner' = $" + strconv.Itoa(len(args))
	}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		where += " AND status = $" + strconv.Itoa(len(args))
	}

	var totalCount int64

	countQuery := "SELECT COUNT(*) FROM function_models WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count models: %w", err)
	}

	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf(`SELECT %s
		FROM function_models
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, modelColumns, where, opts.SortBy, opts.SortOrder, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	list := make([]*models.FunctionModel, 0, opts.Limit)

	for rows.Next() {
		model, err := r.scanModelBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}

		list = append(list, model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}

	if opts.IncludeNodes || opts.IncludeRelationships {
		for _, model := range list {
			if opts.IncludeNodes {
				nodes, err := r.nodeRepo.loadByModel(ctx, model.ID)
				if err != nil {
					return nil, err
				}

				model.Nodes = nodes
			}

			if opts.IncludeRelationships {
				relationships, err := r.relationshipRepo.loadByModel(ctx, model.ID)
				if err != nil {
					return nil, err
				}

				model.Relationships = relationships
			}
		}
	}

	return &persistence.ListModelsResult{
		Models:      list,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(list)) < totalCount,
	}, nil
}

// Save writes the whole aggregate in one transaction.
func (r *ModelRepository) Save(ctx context.Context, model *models.FunctionModel) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.save(ctx, tx, model); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SaveGuarded rejects the write with ErrVersionConflict when the stored row
// advanced past lastSeen. The check and the write share one transaction, so
// concurrent guarded saves serialize on the row lock.
func (r *ModelRepository) SaveGuarded(ctx context.Context, model *models.FunctionModel, lastSeen time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var storedUpdatedAt time.Time

	row := tx.QueryRowContext(ctx,
		"SELECT updated_at FROM function_models WHERE model_id = $1 FOR UPDATE", model.ID)

	err = row.Scan(&storedUpdatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read stored model state: %w", err)
	}

	if err == nil && storedUpdatedAt.After(lastSeen) {
		err = persistence.NewModelError("SaveGuarded", model.ID, persistence.ErrVersionConflict)

		return err
	}

	err = nil

	if err = r.save(ctx, tx, model); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *ModelRepository) save(ctx context.Context, tx *sql.Tx, model *models.FunctionModel) error {
	now := time.Now().UTC()

	if model.ID == "" {
		model.ID = models.NewID()
	}

	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}

	model.UpdatedAt = now
	model.LastSavedAt = now

	metadataJSON, err := json.Marshal(model.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	permissionsJSON, err := json.Marshal(model.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	modelQuery := `
		INSERT INTO function_models (model_id, name, description, version, current_version,
			version_count, status, metadata, permissions,
			created_at, updated_at, last_saved_at, deleted_at, deleted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (model_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			version = EXCLUDED.version,
			current_version = EXCLUDED.current_version,
			version_count = EXCLUDED.version_count,
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata,
			permissions = EXCLUDED.permissions,
			updated_at = EXCLUDED.updated_at,
			last_saved_at = EXCLUDED.last_saved_at,
			deleted_at = EXCLUDED.deleted_at,
			deleted_by = EXCLUDED.deleted_by
	`

	_, err = tx.ExecContext(ctx, modelQuery,
		model.ID,
		model.Name.String(),
		model.Description,
		model.Version.String(),
		model.CurrentVersion.String(),
		model.VersionCount,
		model.Status,
		metadataJSON,
		permissionsJSON,
		model.CreatedAt,
		model.UpdatedAt,
		model.LastSavedAt,
		model.DeletedAt,
		model.DeletedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save model base: %w", err)
	}

	// Rewrite the child rows wholesale; the aggregate in memory is the truth.
	_, err = tx.ExecContext(ctx, "DELETE FROM model_relationships WHERE model_id = $1", model.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing relationships: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM model_nodes WHERE model_id = $1", model.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	for _, node := range model.Nodes {
		if err := r.nodeRepo.insertNode(ctx, tx, model.ID, node); err != nil {
			return err
		}
	}

	for _, rel := range model.Relationships {
		if err := r.relationshipRepo.insertRelationship(ctx, tx, model.ID, rel); err != nil {
			return err
		}
	}

	return nil
}

// Delete soft deletes a model by setting its deletion markers.
func (r *ModelRepository) Delete(ctx context.Context, id, deletedBy string) error {
	query := `
		UPDATE function_models
		SET deleted_at = NOW(), deleted_by = $2, updated_at = NOW()
		WHERE model_id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, deletedBy)
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewModelError("Delete", id, persistence.ErrModelNotFound)
	}

	return nil
}

func (r *ModelRepository) loadAggregate(ctx context.Context, model *models.FunctionModel) error {
	nodes, err := r.nodeRepo.loadByModel(ctx, model.ID)
	if err != nil {
		return err
	}

	relationships, err := r.relationshipRepo.loadByModel(ctx, model.ID)
	if err != nil {
		return err
	}

	model.Nodes = nodes
	model.Relationships = relationships

	return nil
}

func (r *ModelRepository) scanModelBase(scanner interface {
	Scan(dest ...any) error
}) (*models.FunctionModel, error) {
	var (
		model                         models.FunctionModel
		name, version, currentVersion string
		metadataJSON, permissionsJSON []byte
		lastSavedAt                   sql.NullTime
		deletedBy                     sql.NullString
	)

	err := scanner.Scan(
		&model.ID,
		&name,
		&model.Description,
		&version,
		&currentVersion,
		&model.VersionCount,
		&model.Status,
		&metadataJSON,
		&permissionsJSON,
		&model.CreatedAt,
		&model.UpdatedAt,
		&lastSavedAt,
		&model.DeletedAt,
		&deletedBy,
	)
	if err != nil {
		return nil, err
	}

	model.Name = models.ModelName(name)

	model.Version, err = models.ParseVersion(version)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored version: %w", err)
	}

	model.CurrentVersion, err = models.ParseVersion(currentVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored current version: %w", err)
	}

	if lastSavedAt.Valid {
		model.LastSavedAt = lastSavedAt.Time
	}

	if deletedBy.Valid {
		model.DeletedBy = deletedBy.String
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &model.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &model.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	model.Nodes = make(map[string]*models.Node)
	model.Relationships = make([]*models.Relationship, 0)

	return &model, nil
}
