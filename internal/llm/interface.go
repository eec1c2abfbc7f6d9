package llm

import (
	"context"

	"applyflow/pkg/models"
)

// Provider defines the interface for AI text service providers
type Provider interface {
	// ExpandQuery turns a free-text job query into a structured filter
	ExpandQuery(ctx context.Context, query, category string) (*models.StructuredFilter, error)

	// ScoreApplication compares a candidate profile against a posting and
	// returns a structured compatibility assessment
	ScoreApplication(ctx context.Context, profileText string, posting *models.Posting) (*models.LLMScoreResult, error)

	// IsHealthy checks if the provider is healthy and available
	IsHealthy(ctx context.Context) error

	// GetProviderName returns the name of the provider
	GetProviderName() string
}
