package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"applyflow/internal/config"
	"applyflow/internal/logging"
	"applyflow/pkg/models"
)

// RedisClient wraps the Redis client with the fast cache tiers used by the
// expansion engine and the interactive search path.
type RedisClient struct {
	client *redis.Client
	config *config.Config
	logger logging.Logger
}

// NewRedisClient creates a new Redis client instance
func NewRedisClient(cfg *config.Config) *RedisClient {
	// Parse Redis URL
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		// Fallback to default configuration
		opts = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}

	// Configure timeouts
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	return &RedisClient{
		client: client,
		config: cfg,
		logger: logging.GetGlobalLogger(),
	}
}

// Client exposes the underlying go-redis client for collaborators that need
// raw commands (the work queue).
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// Ping tests the Redis connection
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// GetExpansion retrieves a cached structured filter for a query. Returns
// (nil, nil) on a cache miss.
func (r *RedisClient) GetExpansion(ctx context.Context, query, category string) (*models.StructuredFilter, error) {
	data, err := r.client.Get(ctx, expansionKey(query, category)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached expansion: %w", err)
	}

	var filter models.StructuredFilter
	if err := json.Unmarshal([]byte(data), &filter); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached expansion: %w", err)
	}

	return &filter, nil
}

// SetExpansion caches a structured filter for a query with the configured
// expansion TTL.
func (r *RedisClient) SetExpansion(ctx context.Context, query, category string, filter *models.StructuredFilter) error {
	data, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("failed to marshal expansion: %w", err)
	}

	err = r.client.Set(ctx, expansionKey(query, category), data, r.config.Expansion.CacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache expansion: %w", err)
	}

	return nil
}

// GetSearchResults retrieves cached ranked posting IDs for an interactive
// search. Returns (nil, nil) on a cache miss.
func (r *RedisClient) GetSearchResults(ctx context.Context, key string) ([]string, error) {
	data, err := r.client.Get(ctx, searchKey(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached search results: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached search results: %w", err)
	}

	return ids, nil
}

// SetSearchResults caches ranked posting IDs with the search cache TTL.
func (r *RedisClient) SetSearchResults(ctx context.Context, key string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal search results: %w", err)
	}

	err = r.client.Set(ctx, searchKey(key), data, r.config.Search.CacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache search results: %w", err)
	}

	return nil
}

// IsHealthy checks if Redis is connected and healthy
func (r *RedisClient) IsHealthy(ctx context.Context) error {
	return r.Ping(ctx)
}

func expansionKey(query, category string) string {
	return fmt.Sprintf("expansion:%s:%s", category, models.NormalizeQuery(query))
}

func searchKey(key string) string {
	return fmt.Sprintf("search:%s", key)
}
