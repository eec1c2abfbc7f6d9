package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"applyflow/internal/search"
	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

// PostingStore reads the job corpus. The corpus is mutated only by the
// external ingestion collaborator.
type PostingStore struct {
	pool *pgxpool.Pool
}

// NewPostingStore constructs a PostingStore.
func NewPostingStore(pool *pgxpool.Pool) *PostingStore {
	return &PostingStore{pool: pool}
}

// GetByID fetches a single posting.
func (s *PostingStore) GetByID(ctx context.Context, id string) (*models.Posting, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, title, description, requirements, category, experience, location,
		        is_remote, salary, company, email, expires_at, last_updated, scraped_at
		 FROM postings WHERE id = $1`, id)

	posting, err := scanPosting(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("posting %s: %w", id, utils.ErrNotFound)
		}
		return nil, fmt.Errorf("query posting: %w", err)
	}
	return posting, nil
}

// Search runs a ranked corpus query for the given filter and location.
func (s *PostingStore) Search(ctx context.Context, filter *models.StructuredFilter, location string, limit int) ([]*models.Posting, error) {
	sql, args := search.NewBuilder(filter).
		WithLocation(location).
		WithLimit(limit).
		Build()

	return s.queryPostings(ctx, sql, args)
}

// FindUnseen returns postings updated after since that the owner has not yet
// applied to, ranked by the filter's boost terms.
func (s *PostingStore) FindUnseen(ctx context.Context, ownerID string, filter *models.StructuredFilter, location string, since time.Time, limit int) ([]*models.Posting, error) {
	sql, args := search.NewBuilder(filter).
		WithLocation(location).
		WithUnseenFor(ownerID, since).
		WithLimit(limit).
		Build()

	return s.queryPostings(ctx, sql, args)
}

// ListByIDs fetches postings preserving input order. Used to rehydrate
// cached ranked search results.
func (s *PostingStore) ListByIDs(ctx context.Context, ids []string) ([]*models.Posting, error) {
	postings, err := s.queryPostings(ctx,
		`SELECT id, title, description, requirements, category, experience, location,
		        is_remote, salary, company, email, expires_at, last_updated, scraped_at
		 FROM postings WHERE id = ANY($1)`, []any{ids})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Posting, len(postings))
	for _, p := range postings {
		byID[p.ID] = p
	}

	ordered := make([]*models.Posting, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

func (s *PostingStore) queryPostings(ctx context.Context, sql string, args []any) ([]*models.Posting, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()

	var postings []*models.Posting
	for rows.Next() {
		posting, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		postings = append(postings, posting)
	}

	return postings, rows.Err()
}

func scanPosting(row pgx.Row) (*models.Posting, error) {
	var p models.Posting
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Requirements, &p.Category,
		&p.Experience, &p.Location, &p.IsRemote, &p.Salary, &p.Company,
		&p.Email, &p.ExpiresAt, &p.LastUpdated, &p.ScrapedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
