// Package cache provides a Redis read-through cache for published function
// models. Draft models change too often to be worth caching; published and
// archived models are immutable until the next lifecycle transition, which
// invalidates them.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/latticehq/lattice/pkg/models"
)

const defaultTTL = 15 * time.Minute

// ModelCache stores serialized function-model aggregates in Redis.
type ModelCache struct {
	client *backend.Client
	logger *slog.Logger
	prefix string
	ttl    time.Duration
}

type Option func(*ModelCache)

// WithTTL sets the expiration for cached models.
func WithTTL(ttl time.Duration) Option {
	return func(c *ModelCache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix for cached models.
func WithPrefix(prefix string) Option {
	return func(c *ModelCache) {
		c.prefix = prefix
	}
}

// New creates a model cache from a Redis URL.
func New(redisURL string, logger *slog.Logger, opts ...Option) (*ModelCache, error) {
	options, err := backend.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return NewFromClient(backend.NewClient(options), logger, opts...), nil
}

// NewFromClient creates a model cache from an existing client.
func NewFromClient(client *backend.Client, logger *slog.Logger, opts ...Option) *ModelCache {
	cache := &ModelCache{
		client: client,
		logger: logger.With("module", "cache"),
		prefix: "lattice:model:",
		ttl:    defaultTTL,
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

func (c *ModelCache) key(modelID string) string {
	return c.prefix + modelID
}

// Get returns the cached model, or (nil, nil) on a miss.
func (c *ModelCache) Get(ctx context.Context, modelID string) (*models.FunctionModel, error) {
	val, err := c.client.Get(ctx, c.key(modelID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get model from cache: %w", err)
	}

	var model models.FunctionModel
	if err := json.Unmarshal([]byte(val), &model); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached model: %w", err)
	}

	return &model, nil
}

// Put stores the model with the configured TTL.
func (c *ModelCache) Put(ctx context.Context, model *models.FunctionModel) error {
	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	if err := c.client.Set(ctx, c.key(model.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache model: %w", err)
	}

	return nil
}

// Invalidate drops the cached model.
func (c *ModelCache) Invalidate(ctx context.Context, modelID string) error {
	if err := c.client.Del(ctx, c.key(modelID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached model: %w", err)
	}

	return nil
}

// HealthCheck pings the Redis backend.
func (c *ModelCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (c *ModelCache) Close() error {
	return c.client.Close()
}
