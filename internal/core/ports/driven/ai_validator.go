package driven

import "github.com/custodia-labs/carebot/internal/core/domain"

// AIConfigValidator checks provider settings before the settings wizard
// saves them. Unconfigured settings are valid; the provider is only
// contacted when there is something to check.
type AIConfigValidator interface {
	ValidateEmbedding(settings *domain.EmbeddingSettings) error
	ValidateLLM(settings *domain.LLMSettings) error
}
