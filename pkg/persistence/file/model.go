package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
)

// ModelRepository handles function-model file operations.
type ModelRepository struct {
	root string
}

// NewModelRepository creates a new model repository rooted at the given directory.
func NewModelRepository(root string) *ModelRepository {
	return &ModelRepository{root: root}
}

func (mr *ModelRepository) modelPath(id string) string {
	return filepath.Join(mr.root, "models", id+".json")
}

// GetByID loads a model by id. Soft-deleted models and missing files both
// yield (nil, nil).
func (mr *ModelRepository) GetByID(_ context.Context, id string) (*models.FunctionModel, error) {
	data, err := os.ReadFile(mr.modelPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var model models.FunctionModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", id, err)
	}

	if model.IsDeleted() {
		return nil, nil
	}

	return &model, nil
}

// List returns paginated and filtered models with in-memory operations.
func (mr *ModelRepository) List(ctx context.Context, opts persistence.ListModelsOptions) (*persistence.ListModelsResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
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

	root := os.DirFS(filepath.Join(mr.root, "models"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list model files: %w", err)
	}

	all := make([]*models.FunctionModel, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		modelID := file[:len(file)-5]

		model, err := mr.GetByID(ctx, modelID)
		if err != nil {
			return nil, fmt.Errorf("failed to load model %s: %w", modelID, err)
		}

		if model == nil {
			continue
		}

		if opts.OwnerID != "" && model.Permissions.Owner != opts.OwnerID {
			continue
		}

		if opts.Status != nil && model.Status != *opts.Status {
			continue
		}

		all = append(all, model)
	}

	mr.sortModels(all, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(all))

	startIdx := opts.Offset
	if startIdx >= len(all) {
		return &persistence.ListModelsResult{
			Models:      make([]*models.FunctionModel, 0),
			TotalCount:  totalCount,
			HasNextPage: false,
		}, nil
	}

	endIdx := min(opts.Offset+opts.Limit, len(all))

	return &persistence.ListModelsResult{
		Models:      all[startIdx:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < len(all),
	}, nil
}

// Save writes the whole aggregate to its JSON file.
func (mr *ModelRepository) Save(_ context.Context, model *models.FunctionModel) error {
	if model.ID == "" {
		model.ID = models.NewID()
	}

	now := time.Now().UTC()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}

	model.UpdatedAt = now
	model.LastSavedAt = now

	if err := os.MkdirAll(filepath.Join(mr.root, "models"), 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model %s: %w", model.ID, err)
	}

	if err := os.WriteFile(mr.modelPath(model.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	return nil
}

// SaveGuarded rejects the write when the stored model advanced past lastSeen.
func (mr *ModelRepository) SaveGuarded(ctx context.Context, model *models.FunctionModel, lastSeen time.Time) error {
	existing, err := mr.GetByID(ctx, model.ID)
	if err != nil {
		return err
	}

	if existing != nil && existing.UpdatedAt.After(lastSeen) {
		return persistence.NewModelError("SaveGuarded", model.ID, persistence.ErrVersionConflict)
	}

	return mr.Save(ctx, model)
}

// Delete soft-deletes a model by stamping its deletion markers in place.
func (mr *ModelRepository) Delete(ctx context.Context, id, deletedBy string) error {
	model, err := mr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if model == nil {
		return persistence.NewModelError("Delete", id, persistence.ErrModelNotFound)
	}

	if err := model.SoftDelete(deletedBy); err != nil {
		return err
	}

	return mr.Save(ctx, model)
}

func (mr *ModelRepository) sortModels(list []*models.FunctionModel, sortBy, sortOrder string) {
	sort.SliceStable(list, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "name":
			less = list[i].Name < list[j].Name
		case "updated_at":
			less = list[i].UpdatedAt.Before(list[j].UpdatedAt)
		default:
			less = list[i].CreatedAt.Before(list[j].CreatedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}
