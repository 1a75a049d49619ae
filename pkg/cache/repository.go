package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
)

// WrapPersistence returns a persistence layer whose model repository is backed
// by the read-through cache. The other repositories pass through unchanged.
func WrapPersistence(p persistence.Persistence, cache *ModelCache, logger *slog.Logger) persistence.Persistence {
	return &cachedPersistence{
		Persistence: p,
		models:      NewCachedModelRepository(p.ModelRepository(), cache, logger),
	}
}

type cachedPersistence struct {
	persistence.Persistence
	models *CachedModelRepository
}

func (p *cachedPersistence) ModelRepository() persistence.ModelRepository {
	return p.models
}

// CachedModelRepository wraps a model repository with a read-through cache.
// Cache failures degrade to the underlying repository instead of failing the
// call.
type CachedModelRepository struct {
	repository persistence.ModelRepository
	cache      *ModelCache
	logger     *slog.Logger
}

// NewCachedModelRepository wraps the repository with the given cache.
func NewCachedModelRepository(repository persistence.ModelRepository, cache *ModelCache, logger *slog.Logger) *CachedModelRepository {
	return &CachedModelRepository{
		repository: repository,
		cache:      cache,
		logger:     logger.With("module", "cache"),
	}
}

// GetByID serves published and archived models from the cache when possible.
func (r *CachedModelRepository) GetByID(ctx context.Context, id string) (*models.FunctionModel, error) {
	cached, err := r.cache.Get(ctx, id)
	if err != nil {
		r.logger.WarnContext(ctx, "Cache read failed, falling back to repository",
			"model_id", id, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	model, err := r.repository.GetByID(ctx, id)
	if err != nil || model == nil {
		return model, err
	}

	if model.Status != models.ModelStatusDraft {
		if err := r.cache.Put(ctx, model); err != nil {
			r.logger.WarnContext(ctx, "Failed to cache model",
				"model_id", id, "error", err)
		}
	}

	return model, nil
}

// List always goes to the repository; listings are not cached.
func (r *CachedModelRepository) List(ctx context.Context, opts persistence.ListModelsOptions) (*persistence.ListModelsResult, error) {
	return r.repository.List(ctx, opts)
}

// Save writes through to the repository and invalidates the cached entry.
func (r *CachedModelRepository) Save(ctx context.Context, model *models.FunctionModel) error {
	if err := r.repository.Save(ctx, model); err != nil {
		return err
	}

	r.invalidate(ctx, model.ID)

	return nil
}

// SaveGuarded writes through to the repository and invalidates the cached entry.
func (r *CachedModelRepository) SaveGuarded(ctx context.Context, model *models.FunctionModel, lastSeen time.Time) error {
	if err := r.repository.SaveGuarded(ctx, model, lastSeen); err != nil {
		return err
	}

	r.invalidate(ctx, model.ID)

	return nil
}

// Delete removes the model and drops it from the cache.
func (r *CachedModelRepository) Delete(ctx context.Context, id, deletedBy string) error {
	if err := r.repository.Delete(ctx, id, deletedBy); err != nil {
		return err
	}

	r.invalidate(ctx, id)

	return nil
}

func (r *CachedModelRepository) invalidate(ctx context.Context, modelID string) {
	if err := r.cache.Invalidate(ctx, modelID); err != nil {
		r.logger.WarnContext(ctx, "Failed to invalidate cached model",
			"model_id", modelID, "error", err)
	}
}
