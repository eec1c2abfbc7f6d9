package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"applyflow/pkg/models"
)

// DigestStore persists per-recipient daily digest batches. The
// (recipient, posting_id, batch_date) unique constraint plus the conditional
// array_append make Track idempotent under retries.
type DigestStore struct {
	pool *pgxpool.Pool
}

// NewDigestStore constructs a DigestStore.
func NewDigestStore(pool *pgxpool.Pool) *DigestStore {
	return &DigestStore{pool: pool}
}

// Track folds an application into its batch, creating the batch row when
// absent. The application id is appended only when not already present, so
// re-delivered jobs do not inflate the count. Returns the batch id.
func (s *DigestStore) Track(ctx context.Context, batchID, recipient, postingID, applicationID string, batchDate time.Time) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO digest_batches (id, recipient, posting_id, batch_date, application_ids, application_count, email_sent, created_at)
		 VALUES ($1, $2, $3, $4, ARRAY[$5]::text[], 1, FALSE, NOW())
		 ON CONFLICT (recipient, posting_id, batch_date) DO UPDATE
		 SET application_ids = CASE
		       WHEN $5 = ANY(digest_batches.application_ids) THEN digest_batches.application_ids
		       ELSE array_append(digest_batches.application_ids, $5)
		     END,
		     application_count = CASE
		       WHEN $5 = ANY(digest_batches.application_ids) THEN digest_batches.application_count
		       ELSE digest_batches.application_count + 1
		     END
		 RETURNING id`,
		batchID, recipient, postingID, batchDate, applicationID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("track digest application: %w", err)
	}
	return id, nil
}

// ListUnsent fetches the batches for a day that have not been emailed yet.
func (s *DigestStore) ListUnsent(ctx context.Context, batchDate time.Time) ([]*models.DigestBatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, recipient, posting_id, batch_date, application_ids,
		        application_count, email_sent, sent_at, created_at
		 FROM digest_batches
		 WHERE batch_date = $1 AND email_sent = FALSE`, batchDate)
	if err != nil {
		return nil, fmt.Errorf("query unsent digests: %w", err)
	}
	defer rows.Close()

	var batches []*models.DigestBatch
	for rows.Next() {
		var b models.DigestBatch
		if err := rows.Scan(&b.ID, &b.Recipient, &b.PostingID, &b.BatchDate,
			&b.ApplicationIDs, &b.ApplicationCount, &b.EmailSent, &b.SentAt,
			&b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan digest batch: %w", err)
		}
		batches = append(batches, &b)
	}

	return batches, rows.Err()
}

// MarkSent flips email_sent once. Returns false when the batch was already
// marked, which lets overlapping flush runs detect the duplicate.
func (s *DigestStore) MarkSent(ctx context.Context, batchID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE digest_batches SET email_sent = TRUE, sent_at = $2
		 WHERE id = $1 AND email_sent = FALSE`,
		batchID, at)
	if err != nil {
		return false, fmt.Errorf("mark digest sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
