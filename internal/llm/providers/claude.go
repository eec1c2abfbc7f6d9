package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"applyflow/internal/config"
	"applyflow/internal/logging"
	"applyflow/pkg/models"
	"applyflow/pkg/utils"
)

// ClaudeProvider implements the AI provider interface using Anthropic's Claude
type ClaudeProvider struct {
	client anthropic.Client
	config *config.Config
	logger logging.Logger
}

// NewClaudeProvider creates a new Claude provider instance
func NewClaudeProvider(cfg *config.Config) *ClaudeProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.LLM.APIKey),
	)

	return &ClaudeProvider{
		client: client,
		config: cfg,
		logger: logging.GetGlobalLogger(),
	}
}

// ExpandQuery resolves a free-text job query into a structured filter
func (cp *ClaudeProvider) ExpandQuery(ctx context.Context, query, category string) (*models.StructuredFilter, error) {
	startTime := time.Now()

	cp.logger.Debug("Starting query expansion with Claude", map[string]interface{}{
		"query":    query,
		"category": category,
	})

	prompt := cp.buildExpansionPrompt(query, category)

	response, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(cp.config.LLM.Model),
		MaxTokens:   int64(cp.config.LLM.MaxTokens),
		Temperature: anthropic.Float(float64(cp.config.LLM.Temperature)),
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call Claude API: %w", err)
	}

	responseText, err := extractResponseText(response)
	if err != nil {
		return nil, err
	}

	var filter models.StructuredFilter
	if err := json.Unmarshal([]byte(responseText), &filter); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrMalformedLLMResult, err)
	}

	if len(filter.MustInclude) == 0 {
		return nil, fmt.Errorf("%w: empty must_include", utils.ErrMalformedLLMResult)
	}

	cp.logger.Debug("Query expansion completed", map[string]interface{}{
		"query":           query,
		"include_terms":   len(filter.MustInclude),
		"processing_time": time.Since(startTime),
	})

	return &filter, nil
}

// ScoreApplication compares a candidate profile against a posting
func (cp *ClaudeProvider) ScoreApplication(ctx context.Context, profileText string, posting *models.Posting) (*models.LLMScoreResult, error) {
	startTime := time.Now()

	prompt := cp.buildScoringPrompt(profileText, posting)

	response, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(cp.config.LLM.Model),
		MaxTokens:   int64(cp.config.LLM.MaxTokens),
		Temperature: anthropic.Float(float64(cp.config.LLM.Temperature)),
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call Claude API: %w", err)
	}

	responseText, err := extractResponseText(response)
	if err != nil {
		return nil, err
	}

	var result models.LLMScoreResult
	if err := json.Unmarshal([]byte(responseText), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrMalformedLLMResult, err)
	}

	// A payload without a numeric skill match is unusable
	if !result.Valid() {
		return nil, fmt.Errorf("%w: missing skills_score", utils.ErrMalformedLLMResult)
	}

	cp.logger.Debug("Application scoring completed", map[string]interface{}{
		"posting_id":      posting.ID,
		"processing_time": time.Since(startTime),
	})

	return &result, nil
}

// buildExpansionPrompt creates the prompt for turning a query into a filter
func (cp *ClaudeProvider) buildExpansionPrompt(query, category string) string {
	return fmt.Sprintf(`You are a job search query analyzer for a job board. Expand the user's query into a structured search filter and return it as a JSON object.

Return a valid JSON object with exactly these fields:

{
  "must_include": ["array of strings - terms a matching posting must contain (skills, role names, synonyms)"],
  "must_exclude": ["array of strings - terms that indicate an unrelated role and must disqualify a posting"],
  "related": ["array of strings - adjacent terms useful for broadening"],
  "boost_terms": ["array of strings - ranking terms ordered from most to least important"]
}

IMPORTANT RULES:
1. Return ONLY valid JSON, no additional text or explanation
2. Use lowercase terms
3. must_exclude should list roles commonly confused with the query but unrelated to it
4. boost_terms must be ordered by importance, most important first
5. Keep each list under 10 entries

USER QUERY: %s
CATEGORY: %s`, query, category)
}

// buildScoringPrompt creates the prompt for ATS-style compatibility scoring
func (cp *ClaudeProvider) buildScoringPrompt(profileText string, posting *models.Posting) string {
	return fmt.Sprintf(`You are an ATS (applicant tracking system) evaluator. Compare the candidate profile below against the job posting and return a JSON assessment.

Return a valid JSON object with exactly these fields:

{
  "skills_score": number - 0-100 skill match,
  "experience_score": number - 0-100 experience match,
  "education_score": number - 0-100 education match,
  "matched_keywords": ["keywords from the posting present in the profile"],
  "missing_keywords": ["important posting keywords absent from the profile"],
  "strengths": ["2-4 short strength statements"],
  "weaknesses": ["2-4 short weakness statements"],
  "recommendations": ["2-4 short improvement recommendations"]
}

IMPORTANT RULES:
1. Return ONLY valid JSON, no additional text or explanation
2. skills_score is required and must be a number
3. Base the assessment only on the provided texts

JOB POSTING:
Title: %s
Requirements: %s
Experience: %s
Description: %s

CANDIDATE PROFILE:
%s`, posting.Title, posting.Requirements, posting.Experience, posting.Description, profileText)
}

// extractResponseText pulls the text body out of a Claude response, stripping
// markdown code fences if present
func extractResponseText(response *anthropic.Message) (string, error) {
	if len(response.Content) == 0 {
		return "", fmt.Errorf("empty response from Claude")
	}

	var responseText string
	for _, content := range response.Content {
		textContent := content.AsText()
		responseText = textContent.Text
		break
	}

	if responseText == "" {
		return "", fmt.Errorf("no text content in Claude response")
	}

	responseText = strings.TrimSpace(responseText)
	if strings.HasPrefix(responseText, "```json") {
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)
	} else if strings.HasPrefix(responseText, "```") {
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)
	}

	return responseText, nil
}

// IsHealthy checks if the Claude provider is healthy and available
func (cp *ClaudeProvider) IsHealthy(ctx context.Context) error {
	if cp.config.LLM.APIKey == "" {
		return fmt.Errorf("Claude API key not configured - set LLM_API_KEY environment variable")
	}

	_, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(cp.config.LLM.Model),
		MaxTokens: 100,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: "Hello"},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})

	if err != nil {
		return fmt.Errorf("Claude API health check failed: %w", err)
	}

	return nil
}

// GetProviderName returns the name of the provider
func (cp *ClaudeProvider) GetProviderName() string {
	return "claude"
}
