package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"applyflow/pkg/utils"
)

// ProfileStore reads stored candidate profiles used as application payloads.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore constructs a ProfileStore.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// LatestProfileText returns the owner's most recently updated profile text.
func (s *ProfileStore) LatestProfileText(ctx context.Context, ownerID string) (string, error) {
	var text string
	err := s.pool.QueryRow(ctx,
		`SELECT profile_text FROM profiles
		 WHERE owner_id = $1 AND profile_text IS NOT NULL AND profile_text <> ''
		 ORDER BY updated_at DESC
		 LIMIT 1`, ownerID).Scan(&text)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("profile for owner %s: %w", ownerID, utils.ErrNotFound)
		}
		return "", fmt.Errorf("query profile: %w", err)
	}
	return text, nil
}
