package scoring

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"applyflow/internal/logging"
	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

// ModelScorer is the AI path of the engine, satisfied by llm.Manager.
type ModelScorer interface {
	ScoreApplication(ctx context.Context, profileText string, posting *models.Posting) (*models.LLMScoreResult, error)
}

// ScoreRepository is the persistence surface the engine needs.
type ScoreRepository interface {
	CreatePending(ctx context.Context, score *models.ATSScore) error
	MarkProcessing(ctx context.Context, applicationID string) error
	Complete(ctx context.Context, score *models.ATSScore) error
	MarkFailed(ctx context.Context, applicationID string, duration time.Duration) error
	GetByApplicationID(ctx context.Context, applicationID string) (*models.ATSScore, error)
}

// Engine drives a score through pending, processing and a terminal state. AI
// failures of any kind degrade to the rule-based scorer, so the only way to
// end in failed is a persistence error.
type Engine struct {
	model    ModelScorer
	fallback *FallbackScorer
	scores   ScoreRepository
	logger   logging.Logger
}

// NewEngine constructs a scoring engine. model may be nil; every score then
// takes the rule-based path.
func NewEngine(model ModelScorer, scores ScoreRepository) *Engine {
	return &Engine{
		model:    model,
		fallback: NewFallbackScorer(),
		scores:   scores,
		logger:   logging.GetGlobalLogger(),
	}
}

// Score computes and persists the ATS score for an application.
func (e *Engine) Score(ctx context.Context, applicationID, profileText string, posting *models.Posting) error {
	start := time.Now()

	pending := &models.ATSScore{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		Status:        models.ScorePending,
		CreatedAt:     start,
	}
	if err := e.scores.CreatePending(ctx, pending); err != nil {
		return err
	}
	if err := e.scores.MarkProcessing(ctx, applicationID); err != nil {
		return err
	}

	score := e.compute(ctx, applicationID, profileText, posting)
	score.ApplicationID = applicationID
	score.ProcessingTime = time.Since(start)

	if err := e.scores.Complete(ctx, score); err != nil {
		e.logger.Error("Failed to persist completed score", map[string]interface{}{
			"application_id": applicationID,
			"error":          err.Error(),
		})
		if failErr := e.scores.MarkFailed(ctx, applicationID, time.Since(start)); failErr != nil {
			e.logger.Error("Failed to mark score failed", map[string]interface{}{
				"application_id": applicationID,
				"error":          failErr.Error(),
			})
		}
		return err
	}

	return nil
}

// compute tries the AI path first and falls back to rules on timeout, error
// or a payload without the required skill-match field.
func (e *Engine) compute(ctx context.Context, applicationID, profileText string, posting *models.Posting) *models.ATSScore {
	if e.model != nil {
		result, err := e.model.ScoreApplication(ctx, profileText, posting)
		if err == nil && result.Valid() {
			return fromLLMResult(result)
		}
		reason := "invalid payload"
		if err != nil {
			reason = err.Error()
		}
		e.logger.Warn("AI scoring unavailable, using rule-based scorer", map[string]interface{}{
			"application_id": applicationID,
			"reason":         reason,
		})
	}

	return e.fallback.Score(profileText, posting)
}

// GetScore returns the current score row for an application.
func (e *Engine) GetScore(ctx context.Context, applicationID string) (*models.ATSScore, error) {
	return e.scores.GetByApplicationID(ctx, applicationID)
}

// fromLLMResult converts the AI payload to an ATSScore, deriving the overall
// figure with the same weights as the rule-based path. Absent sub-scores
// default to a neutral 50.
func fromLLMResult(result *models.LLMScoreResult) *models.ATSScore {
	skills := utils.Clamp(int(math.Round(*result.SkillsScore)), 0, 100)
	experience := 50
	if result.ExperienceScore != nil {
		experience = utils.Clamp(int(math.Round(*result.ExperienceScore)), 0, 100)
	}
	education := 50
	if result.EducationScore != nil {
		education = utils.Clamp(int(math.Round(*result.EducationScore)), 0, 100)
	}

	overall := utils.Clamp(int(math.Round(0.4*float64(skills)+0.35*float64(experience)+0.25*float64(education))), 0, 100)

	return &models.ATSScore{
		Overall:         overall,
		SkillsScore:     skills,
		ExperienceScore: experience,
		EducationScore:  education,
		MatchedKeywords: result.MatchedKeywords,
		MissingKeywords: result.MissingKeywords,
		Strengths:       result.Strengths,
		Weaknesses:      result.Weaknesses,
		Recommendations: result.Recommendations,
	}
}
