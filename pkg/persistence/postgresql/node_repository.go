package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
)

// NodeRepository handles node-related database operations.
type NodeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewNodeRepository creates a new node repository.
func NewNodeRepository(db *sql.DB, logger *slog.Logger) *NodeRepository {
	return &NodeRepository{db: db, logger: logger}
}

const nodeColumns = `
	node_id
  , node_type
  , name
  , description
  , position_x
  , position_y
  , status
  , execution_type
  , dependencies
  , metadata
  , visual_properties
  , io_data
  , stage_data
  , tether_data
  , kb_data
  , container_data
`

// GetNodesByModel returns all nodes of a model ordered by id.
func (r *NodeRepository) GetNodesByModel(ctx context.Context, modelID string) ([]*models.Node, error) {
	query := `SELECT ` + nodeColumns + `
		FROM model_nodes
		WHERE model_id = $1
		ORDER BY node_id
	`

	rows, err := r.db.QueryContext(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	nodes := make([]*models.Node, 0)

	for rows.Next() {
		node, err := r.scanNode(rows, modelID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

// GetNodeByModel returns one node of a model by id.
func (r *NodeRepository) GetNodeByModel(ctx context.Context, modelID, nodeID string) (*models.Node, error) {
	query := `SELECT ` + nodeColumns + `
		FROM model_nodes
		WHERE model_id = $1 AND node_id = $2
	`

	row := r.db.QueryRowContext(ctx, query, modelID, nodeID)

	node, err := r.scanNode(row, modelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewNodeError("GetNodeByModel", modelID, nodeID, persistence.ErrNodeNotFound)
		}

		return nil, fmt.Errorf("failed to scan node: %w", err)
	}

	return node, nil
}

// SaveNode upserts a single node row after validating it.
func (r *NodeRepository) SaveNode(ctx context.Context, modelID string, node *models.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.insertNode(ctx, tx, modelID, node); err != nil {
		return err
	}

	if err = touchModel(ctx, tx, modelID); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteNodeWithRelationships removes the node, every relationship touching
// it and all stored references to it (dependency lists, container action
// lists) in one transaction.
func (r *NodeRepository) DeleteNodeWithRelationships(ctx context.Context, modelID, nodeID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx,
		"DELETE FROM model_nodes WHERE model_id = $1 AND node_id = $2", modelID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err = persistence.NewNodeError("DeleteNodeWithRelationships", modelID, nodeID, persistence.ErrNodeNotFound)

		return err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM model_relationships
		WHERE model_id = $1 AND (source_node_id = $2 OR target_node_id = $2)
	`, modelID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to delete node relationships: %w", err)
	}

	// Prune the deleted id from every dependency list.
	_, err = tx.ExecContext(ctx, `
		UPDATE model_nodes
		SET dependencies = (
			SELECT COALESCE(jsonb_agg(dep), '[]'::jsonb)
			FROM jsonb_array_elements_text(dependencies) AS dep
			WHERE dep <> $2
		)
		WHERE model_id = $1 AND dependencies @> to_jsonb($2::text)
	`, modelID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to prune dependency lists: %w", err)
	}

	// Prune the deleted id from container action lists.
	for _, column := range []string{"io_data", "stage_data"} {
		query := fmt.Sprintf(`
			UPDATE model_nodes
			SET %[1]s = jsonb_set(%[1]s, '{action_ids}', (
				SELECT COALESCE(jsonb_agg(action), '[]'::jsonb)
				FROM jsonb_array_elements_text(%[1]s->'action_ids') AS action
				WHERE action <> $2
			))
			WHERE model_id = $1 AND %[1]s->'action_ids' @> to_jsonb($2::text)
		`, column)

		_, err = tx.ExecContext(ctx, query, modelID, nodeID)
		if err != nil {
			return fmt.Errorf("failed to prune %s action lists: %w", column, err)
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

// loadByModel returns the model's nodes keyed by id.
func (r *NodeRepository) loadByModel(ctx context.Context, modelID string) (map[string]*models.Node, error) {
	list, err := r.GetNodesByModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*models.Node, len(list))
	for _, node := range list {
		nodes[node.ID] = node
	}

	return nodes, nil
}

func (r *NodeRepository) insertNode(ctx context.Context, tx *sql.Tx, modelID string, node *models.Node) error {
	dependenciesJSON, err := json.Marshal(node.Dependencies)
	if err != nil {
		return fmt.Errorf("failed to marshal dependencies: %w", err)
	}

	metadataJSON, err := json.Marshal(node.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal node metadata: %w", err)
	}

	visualJSON, err := json.Marshal(node.VisualProperties)
	if err != nil {
		return fmt.Errorf("failed to marshal visual properties: %w", err)
	}

	payloads := make([][]byte, 0, 5)

	for _, payload := range []any{node.IOData, node.StageData, node.TetherData, node.KBData, node.ContainerData} {
		data, err := marshalNilable(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal node payload: %w", err)
		}

		payloads = append(payloads, data)
	}

	query := `
		INSERT INTO model_nodes (model_id, node_id, node_type, name, description,
			position_x, position_y, status, execution_type,
			dependencies, metadata, visual_properties,
			io_data, stage_data, tether_data, kb_data, container_data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
		ON CONFLICT (model_id, node_id) DO UPDATE SET
			node_type = EXCLUDED.node_type,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			position_x = EXCLUDED.position_x,
			position_y = EXCLUDED.position_y,
			status = EXCLUDED.status,
			execution_type = EXCLUDED.execution_type,
			dependencies = EXCLUDED.dependencies,
			metadata = EXCLUDED.metadata,
			visual_properties = EXCLUDED.visual_properties,
			io_data = EXCLUDED.io_data,
			stage_data = EXCLUDED.stage_data,
			tether_data = EXCLUDED.tether_data,
			kb_data = EXCLUDED.kb_data,
			container_data = EXCLUDED.container_data,
			updated_at = NOW()
	`

	status := node.Status
	if status == "" {
		status = models.NodeStatusDraft
	}

	executionType := node.ExecutionType
	if executionType == "" {
		executionType = models.ExecutionSequential
	}

	_, err = tx.ExecContext(ctx, query,
		modelID,
		node.ID,
		node.Type,
		node.Name,
		node.Description,
		node.Position.X,
		node.Position.Y,
		status,
		executionType,
		dependenciesJSON,
		metadataJSON,
		visualJSON,
		payloads[0],
		payloads[1],
		payloads[2],
		payloads[3],
		payloads[4],
	)
	if err != nil {
		return fmt.Errorf("failed to save node %s: %w", node.ID, err)
	}

	return nil
}

func (r *NodeRepository) scanNode(scanner interface {
	Scan(dest ...any) error
}, modelID string) (*models.Node, error) {
	var (
		node                                                 models.Node
		dependenciesJSON, metadataJSON, visualJSON           []byte
		ioJSON, stageJSON, tetherJSON, kbJSON, containerJSON []byte
	)

	err := scanner.Scan(
		&node.ID,
		&node.Type,
		&node.Name,
		&node.Description,
		&node.Position.X,
		&node.Position.Y,
		&node.Status,
		&node.ExecutionType,
		&dependenciesJSON,
		&metadataJSON,
		&visualJSON,
		&ioJSON,
		&stageJSON,
		&tetherJSON,
		&kbJSON,
		&containerJSON,
	)
	if err != nil {
		return nil, err
	}

	node.ModelID = modelID

	if dependenciesJSON != nil {
		if err := json.Unmarshal(dependenciesJSON, &node.Dependencies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dependencies: %w", err)
		}
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &node.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node metadata: %w", err)
		}
	}

	if visualJSON != nil {
		if err := json.Unmarshal(visualJSON, &node.VisualProperties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal visual properties: %w", err)
		}
	}

	for _, payload := range []struct {
		data   []byte
		target any
	}{
		{ioJSON, &node.IOData},
		{stageJSON, &node.StageData},
		{tetherJSON, &node.TetherData},
		{kbJSON, &node.KBData},
		{containerJSON, &node.ContainerData},
	} {
		if payload.data == nil {
			continue
		}

		if err := json.Unmarshal(payload.data, payload.target); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node payload: %w", err)
		}
	}

	return &node, nil
}

// marshalNilable returns nil for a nil pointer so the column stays NULL.
func marshalNilable(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case *models.IOData:
		if p == nil {
			return nil, nil
		}
	case *models.StageData:
		if p == nil {
			return nil, nil
		}
	case *models.TetherData:
		if p == nil {
			return nil, nil
		}
	case *models.KBData:
		if p == nil {
			return nil, nil
		}
	case *models.ContainerData:
		if p == nil {
			return nil, nil
		}
	}

	return json.Marshal(payload)
}

func touchModel(ctx context.Context, tx *sql.Tx, modelID string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE function_models SET updated_at = NOW() WHERE model_id = $1", modelID)
	if err != nil {
		return fmt.Errorf("failed to touch model %s: %w", modelID, err)
	}

	return nil
}
