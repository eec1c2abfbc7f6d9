package llm

import (
	"context"
	"fmt"
	"sync"

	"applyflow/internal/config"
	"applyflow/internal/logging"
	"applyflow/pkg/models"
)

// Manager manages the AI provider and its lifecycle. Calls are bounded by
// per-stage timeouts from configuration: a short one for query expansion and
// a longer one for ATS scoring.
type Manager struct {
	config   *config.Config
	factory  *Factory
	provider Provider
	logger   logging.Logger
	mu       sync.RWMutex
	healthy  bool
}

// NewManager creates a new AI manager instance
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config:  cfg,
		factory: NewFactory(cfg),
		logger:  logging.GetGlobalLogger(),
	}
}

// Start initializes the manager and creates the provider
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Starting AI manager", map[string]interface{}{
		"provider": m.config.LLM.Provider,
	})

	provider, err := m.factory.CreateProvider()
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}

	m.provider = provider

	ctx, cancel := context.WithTimeout(context.Background(), m.config.LLM.ExpandTimeout)
	defer cancel()

	if err := m.provider.IsHealthy(ctx); err != nil {
		m.logger.Warn("AI provider health check failed - expansion and scoring will use fallbacks", map[string]interface{}{
			"error": err.Error(),
		})
		m.healthy = false
		// Don't return error - the rule-based fallbacks keep the pipeline usable
	} else {
		m.healthy = true
		m.logger.Info("AI manager started successfully", map[string]interface{}{
			"provider": m.provider.GetProviderName(),
		})
	}

	return nil
}

// Stop shuts down the manager
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Stopping AI manager")
	m.provider = nil
	m.healthy = false
	return nil
}

// ExpandQuery expands a query with a bounded wait
func (m *Manager) ExpandQuery(ctx context.Context, query, category string) (*models.StructuredFilter, error) {
	provider, err := m.activeProvider()
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.config.LLM.ExpandTimeout)
	defer cancel()

	return provider.ExpandQuery(callCtx, query, category)
}

// ScoreApplication scores a profile against a posting with a bounded wait
func (m *Manager) ScoreApplication(ctx context.Context, profileText string, posting *models.Posting) (*models.LLMScoreResult, error) {
	provider, err := m.activeProvider()
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.config.LLM.ScoreTimeout)
	defer cancel()

	return provider.ScoreApplication(callCtx, profileText, posting)
}

func (m *Manager) activeProvider() (Provider, error) {
	m.mu.RLock()
	provider := m.provider
	healthy := m.healthy
	m.mu.RUnlock()

	if provider == nil {
		return nil, fmt.Errorf("AI manager not started or provider not available")
	}

	if !healthy {
		return nil, fmt.Errorf("AI provider is not available - check API key configuration")
	}

	return provider, nil
}

// IsHealthy checks if the manager and provider are healthy
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy && m.provider != nil
}

// GetProviderName returns the name of the current provider
func (m *Manager) GetProviderName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.provider != nil {
		return m.provider.GetProviderName()
	}
	return "none"
}

// CheckHealth performs a health check on the provider
func (m *Manager) CheckHealth(ctx context.Context) error {
	m.mu.RLock()
	provider := m.provider
	m.mu.RUnlock()

	if provider == nil {
		return fmt.Errorf("AI provider not available")
	}

	err := provider.IsHealthy(ctx)

	m.mu.Lock()
	m.healthy = (err == nil)
	m.mu.Unlock()

	return err
}
