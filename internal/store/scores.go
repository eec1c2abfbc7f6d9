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

// ScoreStore persists ATS scores, one row per application.
type ScoreStore struct {
	pool *pgxpool.Pool
}

// NewScoreStore constructs a ScoreStore.
func NewScoreStore(pool *pgxpool.Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

// CreatePending inserts the pending score row for an application. Re-delivery
// of a scoring job lands on the existing row.
func (s *ScoreStore) CreatePending(ctx context.Context, score *models.ATSScore) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ats_scores (id, application_id, status, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (application_id) DO NOTHING`,
		score.ID, score.ApplicationID, score.Status, score.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

// MarkProcessing transitions the score row to processing.
func (s *ScoreStore) MarkProcessing(ctx context.Context, applicationID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ats_scores SET status = $2 WHERE application_id = $1`,
		applicationID, models.ScoreProcessing)
	if err != nil {
		return fmt.Errorf("mark score processing: %w", err)
	}
	return nil
}

// Complete stores a finished score.
func (s *ScoreStore) Complete(ctx context.Context, score *models.ATSScore) error {
	now := time.Now()
	_, err := s.pool.Exec(ctx,
		`UPDATE ats_scores
		 SET status = $2, overall = $3, skills_score = $4, experience_score = $5,
		     education_score = $6, matched_keywords = $7, missing_keywords = $8,
		     strengths = $9, weaknesses = $10, recommendations = $11,
		     processing_ms = $12, completed_at = $13
		 WHERE application_id = $1`,
		score.ApplicationID, models.ScoreCompleted, score.Overall, score.SkillsScore,
		score.ExperienceScore, score.EducationScore, score.MatchedKeywords,
		score.MissingKeywords, score.Strengths, score.Weaknesses,
		score.Recommendations, score.ProcessingTime.Milliseconds(), now)
	if err != nil {
		return fmt.Errorf("complete score: %w", err)
	}
	return nil
}

// MarkFailed records a terminal scoring failure with its duration.
func (s *ScoreStore) MarkFailed(ctx context.Context, applicationID string, duration time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ats_scores SET status = $2, processing_ms = $3, completed_at = $4
		 WHERE application_id = $1`,
		applicationID, models.ScoreFailed, duration.Milliseconds(), time.Now())
	if err != nil {
		return fmt.Errorf("mark score failed: %w", err)
	}
	return nil
}

// GetByApplicationID fetches the score row for an application.
func (s *ScoreStore) GetByApplicationID(ctx context.Context, applicationID string) (*models.ATSScore, error) {
	// Pending rows have NULL score columns, so every nullable column is
	// coalesced for scanning.
	row := s.pool.QueryRow(ctx,
		`SELECT id, application_id, status,
		        COALESCE(overall, 0), COALESCE(skills_score, 0),
		        COALESCE(experience_score, 0), COALESCE(education_score, 0),
		        COALESCE(matched_keywords, '{}'), COALESCE(missing_keywords, '{}'),
		        COALESCE(strengths, '{}'), COALESCE(weaknesses, '{}'),
		        COALESCE(recommendations, '{}'), COALESCE(processing_ms, 0),
		        created_at, completed_at
		 FROM ats_scores WHERE application_id = $1`, applicationID)

	var score models.ATSScore
	var processingMS int64
	err := row.Scan(&score.ID, &score.ApplicationID, &score.Status, &score.Overall,
		&score.SkillsScore, &score.ExperienceScore, &score.EducationScore,
		&score.MatchedKeywords, &score.MissingKeywords, &score.Strengths,
		&score.Weaknesses, &score.Recommendations, &processingMS,
		&score.CreatedAt, &score.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("score for application %s: %w", applicationID, utils.ErrNotFound)
		}
		return nil, fmt.Errorf("query score: %w", err)
	}

	score.ProcessingTime = time.Duration(processingMS) * time.Millisecond
	return &score, nil
}
