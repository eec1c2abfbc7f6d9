package models

import "time"

// ScoreStatus tracks ATS score computation.
type ScoreStatus string

const (
	ScorePending    ScoreStatus = "pending"
	ScoreProcessing ScoreStatus = "processing"
	ScoreCompleted  ScoreStatus = "completed"
	ScoreFailed     ScoreStatus = "failed"
)

// ATSScore is the computed compatibility score for an application. Exactly
// one score row exists per application.
type ATSScore struct {
	ID               string        `json:"id"`
	ApplicationID    string        `json:"application_id"`
	Status           ScoreStatus   `json:"status"`
	Overall          int           `json:"overall"`
	SkillsScore      int           `json:"skills_score"`
	ExperienceScore  int           `json:"experience_score"`
	EducationScore   int           `json:"education_score"`
	MatchedKeywords  []string      `json:"matched_keywords"`
	MissingKeywords  []string      `json:"missing_keywords"`
	Strengths        []string      `json:"strengths"`
	Weaknesses       []string      `json:"weaknesses"`
	Recommendations  []string      `json:"recommendations"`
	ProcessingTime   time.Duration `json:"processing_time"`
	CreatedAt        time.Time     `json:"created_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

// LLMScoreResult is the structured payload expected back from the AI scoring
// service. SkillsScore is the one field that must be present; a payload
// without it is treated as malformed and routed to the rule-based fallback.
type LLMScoreResult struct {
	SkillsScore     *float64 `json:"skills_score"`
	ExperienceScore *float64 `json:"experience_score"`
	EducationScore  *float64 `json:"education_score"`
	MatchedKeywords []string `json:"matched_keywords"`
	MissingKeywords []string `json:"missing_keywords"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
}

// Valid reports whether the payload carries the minimum required fields.
func (r *LLMScoreResult) Valid() bool {
	return r != nil && r.SkillsScore != nil
}
