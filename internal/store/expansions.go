package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"applyflow/pkg/models"
)

// ExpansionStore is the durable tier of the query expansion cache. Entries
// expire after maxAge and survive cache server restarts.
type ExpansionStore struct {
	pool   *pgxpool.Pool
	maxAge time.Duration
}

// NewExpansionStore constructs an ExpansionStore with the given entry age
// limit.
func NewExpansionStore(pool *pgxpool.Pool, maxAge time.Duration) *ExpansionStore {
	return &ExpansionStore{pool: pool, maxAge: maxAge}
}

// Get looks up a cached filter by normalized query and category. Hits bump
// hit_count; entries older than the age limit are misses. Returns (nil, nil)
// on a miss.
func (s *ExpansionStore) Get(ctx context.Context, normalizedQuery, category string) (*models.StructuredFilter, error) {
	var filterJSON []byte
	err := s.pool.QueryRow(ctx,
		`UPDATE query_expansions
		 SET hit_count = hit_count + 1
		 WHERE category = $1 AND normalized_query = $2 AND updated_at > $3
		 RETURNING filter`,
		category, normalizedQuery, time.Now().Add(-s.maxAge)).Scan(&filterJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query expansion cache: %w", err)
	}

	var filter models.StructuredFilter
	if err := json.Unmarshal(filterJSON, &filter); err != nil {
		return nil, fmt.Errorf("unmarshal cached expansion: %w", err)
	}
	return &filter, nil
}

// Put upserts a resolved filter for the (query, category) pair, resetting the
// age clock.
func (s *ExpansionStore) Put(ctx context.Context, normalizedQuery, category string, filter *models.StructuredFilter) error {
	data, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("marshal expansion: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO query_expansions (category, normalized_query, filter, hit_count, updated_at)
		 VALUES ($1, $2, $3, 0, NOW())
		 ON CONFLICT (category, normalized_query) DO UPDATE
		 SET filter = EXCLUDED.filter, updated_at = NOW()`,
		category, normalizedQuery, data)
	if err != nil {
		return fmt.Errorf("store expansion: %w", err)
	}
	return nil
}
