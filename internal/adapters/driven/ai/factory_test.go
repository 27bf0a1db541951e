package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

func TestInitResult_Close(t *testing.T) {
	result := &InitResult{}
	result.Close()
}

func TestCreateEmbeddingProvider(t *testing.T) {
	tests := []struct {
		name      string
		settings  *domain.EmbeddingSettings
		wantNil   bool
		wantErr   bool
		wantModel string
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "gemini without key", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderGemini}, wantNil: true},
		{
			name:      "gemini",
			settings:  &domain.EmbeddingSettings{Provider: domain.AIProviderGemini, APIKey: "g", Model: "text-embedding-004"},
			wantModel: "text-embedding-004",
		},
		{
			name:      "ollama",
			settings:  &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "mxbai-embed-large"},
			wantModel: "mxbai-embed-large",
		},
		{
			name:      "openai",
			settings:  &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk", Model: "text-embedding-3-small"},
			wantModel: "text-embedding-3-small",
		},
		{name: "anthropic", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingProvider(context.Background(), tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.wantModel, svc.ModelName())
			assert.Equal(t, domain.EmbeddingDimensions()[tt.wantModel], svc.Dimensions())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	providers := map[domain.AIProvider]string{
		domain.AIProviderGemini:    "gemini-1.5-flash",
		domain.AIProviderOllama:    "llama3.2",
		domain.AIProviderOpenAI:    "gpt-4o-mini",
		domain.AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
	for provider, model := range providers {
		t.Run(string(provider), func(t *testing.T) {
			svc, err := CreateLLMService(context.Background(), &domain.LLMSettings{
				Provider: provider,
				Model:    model,
				APIKey:   "key",
			})
			require.NoError(t, err)
			require.NotNil(t, svc)
			assert.Equal(t, model, svc.ModelName())
		})
	}

	svc, err := CreateLLMService(context.Background(), &domain.LLMSettings{Provider: domain.AIProviderOpenAI})
	require.NoError(t, err)
	assert.Nil(t, svc, "missing key leaves the LLM unconfigured")
}

func TestInit(t *testing.T) {
	t.Run("embedding required", func(t *testing.T) {
		settings := domain.DefaultSettings()
		_, err := Init(context.Background(), &settings, false)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("missing LLM is a warning", func(t *testing.T) {
		settings := domain.DefaultSettings()
		settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"}
		settings.LLM = domain.LLMSettings{Provider: domain.AIProviderAnthropic}

		result, err := Init(context.Background(), &settings, false)
		require.NoError(t, err)
		defer result.Close()

		assert.NotNil(t, result.Embedding)
		assert.Nil(t, result.LLM)
		assert.Len(t, result.Warnings, 1)
	})

	t.Run("unreachable LLM is a warning when validating", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/tags" {
				_, _ = w.Write([]byte(`{"models":[]}`))
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		settings := domain.DefaultSettings()
		settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}
		settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk", BaseURL: srv.URL}

		result, err := Init(context.Background(), &settings, true)
		require.NoError(t, err)
		defer result.Close()

		assert.NotNil(t, result.Embedding)
		assert.Nil(t, result.LLM)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], domain.ErrLLMUnavailable.Error())
	})
}
