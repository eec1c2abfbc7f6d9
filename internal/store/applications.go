package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

// ApplicationStore persists applications. The (owner_id, posting_id) unique
// constraint is the dedup layer: overlapping sweeps and re-delivered queue
// jobs land on the same row.
type ApplicationStore struct {
	pool *pgxpool.Pool
}

// NewApplicationStore constructs an ApplicationStore.
func NewApplicationStore(pool *pgxpool.Pool) *ApplicationStore {
	return &ApplicationStore{pool: pool}
}

// Insert persists a new application in queued state. Returns
// utils.ErrDuplicateApplication when the owner already applied to the posting.
func (s *ApplicationStore) Insert(ctx context.Context, app *models.Application) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO applications (id, owner_id, posting_id, profile_text, status,
		                           contact_name, contact_email, contact_phone, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (owner_id, posting_id) DO NOTHING`,
		app.ID, app.OwnerID, app.PostingID, app.ProfileText, app.Status,
		app.ContactName, app.ContactEmail, app.ContactPhone, app.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return utils.ErrDuplicateApplication
	}
	return nil
}

// GetByID fetches an application.
func (s *ApplicationStore) GetByID(ctx context.Context, id string) (*models.Application, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, posting_id, profile_text, status, contact_name,
		        contact_email, contact_phone, applied_at, in_digest, COALESCE(digest_id, ''), created_at
		 FROM applications WHERE id = $1`, id)

	var a models.Application
	err := row.Scan(&a.ID, &a.OwnerID, &a.PostingID, &a.ProfileText, &a.Status,
		&a.ContactName, &a.ContactEmail, &a.ContactPhone, &a.AppliedAt,
		&a.InDigest, &a.DigestID, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("application %s: %w", id, utils.ErrNotFound)
		}
		return nil, fmt.Errorf("query application: %w", err)
	}
	return &a, nil
}

// Exists reports whether the owner already has an application for the posting.
func (s *ApplicationStore) Exists(ctx context.Context, ownerID, postingID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM applications WHERE owner_id = $1 AND posting_id = $2)`,
		ownerID, postingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check application exists: %w", err)
	}
	return exists, nil
}

// UpdateStatus transitions an application's status. Applied transitions also
// stamp applied_at.
func (s *ApplicationStore) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	var err error
	if status == models.ApplicationApplied {
		_, err = s.pool.Exec(ctx,
			`UPDATE applications SET status = $2, applied_at = $3 WHERE id = $1`,
			id, status, time.Now())
	} else {
		_, err = s.pool.Exec(ctx,
			`UPDATE applications SET status = $2 WHERE id = $1`, id, status)
	}
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return nil
}

// MarkInDigest records which digest batch the application was appended to.
func (s *ApplicationStore) MarkInDigest(ctx context.Context, id, digestID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE applications SET in_digest = TRUE, digest_id = $2 WHERE id = $1`,
		id, digestID)
	if err != nil {
		return fmt.Errorf("mark application in digest: %w", err)
	}
	return nil
}

// ListByIDs fetches a set of applications preserving input order.
func (s *ApplicationStore) ListByIDs(ctx context.Context, ids []string) ([]*models.Application, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, posting_id, profile_text, status, contact_name,
		        contact_email, contact_phone, applied_at, in_digest, COALESCE(digest_id, ''), created_at
		 FROM applications WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.Application, len(ids))
	for rows.Next() {
		var a models.Application
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.PostingID, &a.ProfileText, &a.Status,
			&a.ContactName, &a.ContactEmail, &a.ContactPhone, &a.AppliedAt,
			&a.InDigest, &a.DigestID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		byID[a.ID] = &a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	apps := make([]*models.Application, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			apps = append(apps, a)
		}
	}
	return apps, nil
}
