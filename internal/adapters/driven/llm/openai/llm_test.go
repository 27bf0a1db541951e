package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	return svc
}

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.Error(t, err)

	svc, err := NewLLMService(LLMConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.NoError(t, svc.Close())
}

func TestGenerate(t *testing.T) {
	var got chatRequest
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Hello John"},"finish_reason":"stop"}]}`))
	})

	text, err := svc.Generate(context.Background(), "greet John", driven.GenerateOptions{Temperature: 0.3, StopWords: []string{"\n\n"}})
	require.NoError(t, err)
	assert.Equal(t, "Hello John", text)

	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "greet John", got.Messages[0].Content)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	assert.Equal(t, []string{"\n\n"}, got.Stop)
}

func TestChat_KeepsSystemMessage(t *testing.T) {
	var got chatRequest
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	_, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: "system", Content: "be kind"},
		{Role: "user", Content: "hi"},
	}, driven.ChatOptions{MaxTokens: 50})
	require.NoError(t, err)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, 50, got.MaxTokens)
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("no choices", func(t *testing.T) {
		svc := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		})
		_, err := svc.Generate(context.Background(), "x", driven.GenerateOptions{})
		assert.Error(t, err)
	})

	t.Run("server error", func(t *testing.T) {
		svc := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream"}}`))
		})
		_, err := svc.Generate(context.Background(), "x", driven.GenerateOptions{})

		var perr *domain.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "upstream", perr.Message)
		assert.True(t, perr.Temporary())
	})
}

func TestLLMPing(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	assert.NoError(t, svc.Ping(context.Background()))

	svc.api.Header.Set("Authorization", "Bearer wrong")
	assert.Error(t, svc.Ping(context.Background()))
}
