package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"applyflow/pkg/models"
)

// SubscriptionStore reads subscriptions and guards their quota counters.
// Status and validity transitions are owned by the billing collaborator.
type SubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewSubscriptionStore constructs a SubscriptionStore.
func NewSubscriptionStore(pool *pgxpool.Pool) *SubscriptionStore {
	return &SubscriptionStore{pool: pool}
}

// ListActive fetches subscriptions eligible for the sweep: active status,
// inside the validity window, with quota headroom.
func (s *SubscriptionStore) ListActive(ctx context.Context) ([]*models.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, tier, max_jobs, jobs_applied, status, valid_until, created_at
		 FROM subscriptions
		 WHERE status = 'active'
		   AND valid_until > NOW()
		   AND (tier = 'unlimited' OR jobs_applied < max_jobs)`)
	if err != nil {
		return nil, fmt.Errorf("query active subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.ID, &sub.OwnerID, &sub.Tier, &sub.MaxJobs,
			&sub.JobsApplied, &sub.Status, &sub.ValidUntil, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, &sub)
	}

	return subs, rows.Err()
}

// TryIncrementJobsApplied atomically increments the applied counter, but only
// while the basic-tier cap holds. The conditional update closes the quota
// race between overlapping sweep cycles: the returned bool is false when the
// cap was already reached.
func (s *SubscriptionStore) TryIncrementJobsApplied(ctx context.Context, subscriptionID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions
		 SET jobs_applied = jobs_applied + 1
		 WHERE id = $1 AND (tier = 'unlimited' OR jobs_applied < max_jobs)`,
		subscriptionID)
	if err != nil {
		return false, fmt.Errorf("increment jobs_applied: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PreferenceStore manages category+location watches under subscriptions.
type PreferenceStore struct {
	pool *pgxpool.Pool
}

// NewPreferenceStore constructs a PreferenceStore.
func NewPreferenceStore(pool *pgxpool.Pool) *PreferenceStore {
	return &PreferenceStore{pool: pool}
}

// ListActiveForSubscription fetches the active preferences under a
// subscription.
func (s *PreferenceStore) ListActiveForSubscription(ctx context.Context, subscriptionID string) ([]*models.Preference, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, subscription_id, owner_id, category, label, location, remote,
		        cached_filter, jobs_applied, last_job_applied_at, active, created_at
		 FROM preferences
		 WHERE subscription_id = $1 AND active = TRUE`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	var prefs []*models.Preference
	for rows.Next() {
		var p models.Preference
		var filterJSON []byte
		if err := rows.Scan(&p.ID, &p.SubscriptionID, &p.OwnerID, &p.Category,
			&p.Label, &p.Location, &p.Remote, &filterJSON, &p.JobsApplied,
			&p.LastJobAppliedAt, &p.Active, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}

		if len(filterJSON) > 0 {
			var filter models.StructuredFilter
			if err := json.Unmarshal(filterJSON, &filter); err == nil {
				p.CachedFilter = &filter
			}
		}

		prefs = append(prefs, &p)
	}

	return prefs, rows.Err()
}

// SaveFilter caches a resolved structured filter on the preference so later
// sweeps skip expansion.
func (s *PreferenceStore) SaveFilter(ctx context.Context, preferenceID string, filter *models.StructuredFilter) error {
	data, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("marshal preference filter: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE preferences SET cached_filter = $2 WHERE id = $1`,
		preferenceID, data)
	if err != nil {
		return fmt.Errorf("save preference filter: %w", err)
	}
	return nil
}

// RecordApplied bumps the per-preference applied counter and watermark after
// a sweep emitted applications for it.
func (s *PreferenceStore) RecordApplied(ctx context.Context, preferenceID string, count int, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE preferences
		 SET jobs_applied = jobs_applied + $2, last_job_applied_at = $3
		 WHERE id = $1`,
		preferenceID, count, at)
	if err != nil {
		return fmt.Errorf("record preference applied: %w", err)
	}
	return nil
}
