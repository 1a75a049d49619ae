package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
)

// RelationshipRepository handles relationship-related database operations.
type RelationshipRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRelationshipRepository creates a new relationship repository.
func NewRelationshipRepository(db *sql.DB, logger *slog.Logger) *RelationshipRepository {
	return &RelationshipRepository{db: db, logger: logger}
}

// GetRelationshipsByModel returns all relationships of a model in insertion order.
func (r *RelationshipRepository) GetRelationshipsByModel(ctx context.Context, modelID string) ([]*models.Relationship, error) {
	return r.loadByModel(ctx, modelID)
}

// SaveRelationships persists a batch in one transaction: a parent-child
// inverse pair is either fully written or not at all.
func (r *RelationshipRepository) SaveRelationships(ctx context.Context, modelID string, relationships []*models.Relationship) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, rel := range relationships {
		if err = r.insertRelationship(ctx, tx, modelID, rel); err != nil {
			return err
		}
	}

	if err = touchModel(ctx, tx, modelID); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteRelationship removes one relationship by id.
func (r *RelationshipRepository) DeleteRelationship(ctx context.Context, modelID, relationshipID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM model_relationships WHERE model_id = $1 AND id = $2", modelID, relationshipID)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return &persistence.RelationshipError{
			Op: "DeleteRelationship", ModelID: modelID, RelationshipID: relationshipID,
			Err: persistence.ErrRelationshipNotFound,
		}
	}

	return nil
}

// DeleteBetween removes every relationship joining the two nodes, matching
// either direction, so a parent-child inverse pair drops as one unit. The
// matching container action lists are pruned in the same transaction.
func (r *RelationshipRepository) DeleteBetween(ctx context.Context, modelID, nodeA, nodeB string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM model_relationships
		WHERE model_id = $1
		  AND ((source_node_id = $2 AND target_node_id = $3)
		    OR (source_node_id = $3 AND target_node_id = $2))
	`, modelID, nodeA, nodeB)
	if err != nil {
		return fmt.Errorf("failed to delete relationships: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = &persistence.RelationshipError{
			Op: "DeleteBetween", ModelID: modelID,
			RelationshipID: nodeA + "<->" + nodeB,
			Err:            persistence.ErrRelationshipNotFound,
		}

		return err
	}

	for _, pair := range [][2]string{{nodeA, nodeB}, {nodeB, nodeA}} {
		container, action := pair[0], pair[1]

		for _, column := range []string{"io_data", "stage_data"} {
			query := fmt.Sprintf(`
				UPDATE model_nodes
				SET %[1]s = jsonb_set(%[1]s, '{action_ids}', (
					SELECT COALESCE(jsonb_agg(entry), '[]'::jsonb)
					FROM jsonb_array_elements_text(%[1]s->'action_ids') AS entry
					WHERE entry <> $3
				))
				WHERE model_id = $1 AND node_id = $2 AND %[1]s->'action_ids' @> to_jsonb($3::text)
			`, column)

			_, err = tx.ExecContext(ctx, query, modelID, container, action)
			if err != nil {
				return fmt.Errorf("failed to prune %s action list: %w", column, err)
			}
		}
	}

	if err = touchModel(ctx, tx, modelID); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *RelationshipRepository) loadByModel(ctx context.Context, modelID string) ([]*models.Relationship, error) {
	query := `
		SELECT
			id
		  , source_node_id
		  , target_node_id
		  , source_handle
		  , target_handle
		  , source_node_type
		  , target_node_type
		  , relationship_type
		  , created_at
		FROM model_relationships
		WHERE model_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	relationships := make([]*models.Relationship, 0)

	for rows.Next() {
		var rel models.Relationship

		err := rows.Scan(
			&rel.ID,
			&rel.SourceNodeID,
			&rel.TargetNodeID,
			&rel.SourceHandle,
			&rel.TargetHandle,
			&rel.SourceNodeType,
			&rel.TargetNodeType,
			&rel.Type,
			&rel.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}

		relationships = append(relationships, &rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}

	return relationships, nil
}

func (r *RelationshipRepository) insertRelationship(ctx context.Context, tx *sql.Tx, modelID string, rel *models.Relationship) error {
	if rel.ID == "" {
		rel.ID = models.NewID()
	}

	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO model_relationships (model_id, id, source_node_id, target_node_id,
			source_handle, target_handle, source_node_type, target_node_type,
			relationship_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (model_id, id) DO NOTHING
	`

	_, err := tx.ExecContext(ctx, query,
		modelID,
		rel.ID,
		rel.SourceNodeID,
		rel.TargetNodeID,
		rel.SourceHandle,
		rel.TargetHandle,
		rel.SourceNodeType,
		rel.TargetNodeType,
		rel.Type,
		rel.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save relationship %s: %w", rel.ID, err)
	}

	return nil
}
