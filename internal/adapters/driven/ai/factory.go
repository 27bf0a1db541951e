// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"

	geminiembed "github.com/custodia-labs/carebot/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/carebot/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/carebot/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/carebot/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/custodia-labs/carebot/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/carebot/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/carebot/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	Embedding driven.EmbeddingProvider
	LLM       driven.LLMService
	Warnings  []string // Non-fatal issues; the conversation falls back to templates.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.Embedding != nil {
		r.Embedding.Close()
	}
	if r.LLM != nil {
		r.LLM.Close()
	}
}

// Init creates both providers. The embedding provider is required; a
// missing or unreachable LLM is recorded as a warning.
func Init(ctx context.Context, settings *domain.Settings, validate bool) (*InitResult, error) {
	result := &InitResult{}

	create := CreateEmbeddingProvider
	if validate {
		create = CreateAndValidateEmbeddingProvider
	}
	embedding, err := create(ctx, &settings.Embedding)
	if err != nil {
		return nil, err
	}
	if embedding == nil {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured",
			domain.ErrEmbeddingUnavailable, settings.Embedding.Provider)
	}
	result.Embedding = embedding

	createLLM := CreateLLMService
	if validate {
		createLLM = CreateAndValidateLLMService
	}
	llm, err := createLLM(ctx, &settings.LLM)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, err.Error())
	case llm == nil:
		result.Warnings = append(result.Warnings, "LLM not configured, replies use built-in templates")
	default:
		result.LLM = llm
	}

	return result, nil
}

// CreateAndValidateEmbeddingProvider creates an embedding provider and pings it.
func CreateAndValidateEmbeddingProvider(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	svc, err := CreateEmbeddingProvider(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	if err := ping(ctx, svc.Ping); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and pings it.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	if err := ping(ctx, svc.Ping); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}
	return svc, nil
}

// CreateEmbeddingProvider creates the embedding provider named by settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingProvider(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	if settings == nil {
		return nil, nil
	}
	if settings.Provider == domain.AIProviderAnthropic {
		return nil, errors.New("anthropic does not support embeddings, use gemini, openai or ollama")
	}
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderGemini:
		return geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
			APIKey:   settings.APIKey,
			Model:    settings.Model,
			Endpoint: settings.BaseURL,
		})

	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: domain.EmbeddingDimensions()[settings.Model],
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: domain.EmbeddingDimensions()[settings.Model],
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the LLM service named by settings.
// Returns nil if the provider is not configured.
func CreateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderGemini:
		return geminillm.NewLLMService(ctx, geminillm.Config{
			APIKey:   settings.APIKey,
			Model:    settings.Model,
			Endpoint: settings.BaseURL,
		})

	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}
