package driving

import "github.com/custodia-labs/carebot/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the effective settings: defaults, overlaid by the config
	// file, overlaid by environment variables.
	Get() (*domain.Settings, error)

	// Save persists provider and tuning settings to the config file.
	// API keys are saved only when non-empty.
	Save(settings *domain.Settings) error

	// SetEmbeddingProvider updates the embedding provider configuration.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetLLMProvider updates the LLM provider configuration.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// Validate checks the effective settings against their constraints.
	Validate() error

	// ValidateEmbeddingConfig pings the configured embedding provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig pings the configured LLM provider.
	ValidateLLMConfig() error
}
