package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

type generateRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"systemInstruction"`
	GenerationConfig *struct {
		MaxOutputTokens int      `json:"maxOutputTokens"`
		Temperature     float64  `json:"temperature"`
		StopSequences   []string `json:"stopSequences"`
	} `json:"generationConfig"`
}

const okResponse = `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"Mary"}]}}]}`

func newTestLLM(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewLLMService(context.Background(), Config{
		Endpoint:   srv.URL + "/",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return svc
}

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(context.Background(), Config{})
	assert.Error(t, err)

	svc := newTestLLM(t, func(http.ResponseWriter, *http.Request) {})
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.NoError(t, svc.Close())
}

func TestGenerate(t *testing.T) {
	var got generateRequest
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-1.5-flash:generateContent"), r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(okResponse))
	})

	text, err := svc.Generate(context.Background(), "greet Mary", driven.GenerateOptions{Temperature: 0.3, MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "Hello Mary", text)

	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "greet Mary", got.Contents[0].Parts[0].Text)
	require.NotNil(t, got.GenerationConfig)
	assert.Equal(t, 64, got.GenerationConfig.MaxOutputTokens)
	assert.InDelta(t, 0.3, got.GenerationConfig.Temperature, 1e-9)
	assert.Nil(t, got.SystemInstruction)
}

func TestChat_Roles(t *testing.T) {
	var got generateRequest
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(okResponse))
	})

	_, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: "system", Content: "You are a receptionist."},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "when is my appointment?"},
	}, driven.ChatOptions{})
	require.NoError(t, err)

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "You are a receptionist.", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 3)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Nil(t, got.GenerationConfig)

	_, err = svc.Chat(context.Background(), []driven.ChatMessage{{Role: "system", Content: "x"}}, driven.ChatOptions{})
	assert.Error(t, err)
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		svc := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		})
		_, err := svc.Generate(context.Background(), "x", driven.GenerateOptions{})
		assert.Error(t, err)
	})

	t.Run("rate limited", func(t *testing.T) {
		svc := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
		})
		_, err := svc.Generate(context.Background(), "x", driven.GenerateOptions{})
		assert.True(t, errors.Is(err, domain.ErrRateLimited))
	})
}

func TestPing(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"name":"models/gemini-1.5-flash"}`))
	})
	assert.NoError(t, svc.Ping(context.Background()))
}
