// Package anthropic phrases conversation replies with the Anthropic
// messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/carebot/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	anthropicVersion = "2023-06-01"
)

// Config configures NewLLMService. APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService is a messages API client.
type LLMService struct {
	api   *httpapi.Client
	model string
}

type turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesRequest requires max_tokens; the API has no server default.
type messagesRequest struct {
	Model         string   `json:"model"`
	System        string   `json:"system,omitempty"`
	Messages      []turn   `json:"messages"`
	MaxTokens     int      `json:"max_tokens"`
	Temperature   float64  `json:"temperature,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	baseURL, model, timeout := cfg.BaseURL, cfg.Model, cfg.Timeout
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	api := httpapi.New("anthropic", baseURL, timeout)
	api.Header.Set("x-api-key", cfg.APIKey)
	api.Header.Set("anthropic-version", anthropicVersion)
	return &LLMService{api: api, model: model}, nil
}

func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return s.send(ctx, messagesRequest{
		Messages:      []turn{{Role: "user", Content: prompt}},
		MaxTokens:     opts.MaxTokens,
		Temperature:   opts.Temperature,
		StopSequences: opts.StopWords,
	})
}

// Chat moves system turns into the top-level system field; the API
// rejects the role inside messages.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := messagesRequest{MaxTokens: opts.MaxTokens, Temperature: opts.Temperature}
	var system []string
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, turn{Role: m.Role, Content: m.Content})
	}
	if len(req.Messages) == 0 {
		return "", errors.New("anthropic: at least one non-system message is required")
	}
	req.System = strings.Join(system, "\n\n")
	return s.send(ctx, req)
}

func (s *LLMService) send(ctx context.Context, req messagesRequest) (string, error) {
	req.Model = s.model
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	var resp messagesResponse
	if err := s.api.PostJSON(ctx, "/v1/messages", req, &resp); err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("anthropic: no text content returned")
	}
	return text.String(), nil
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists models, which checks the key without spending tokens.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/v1/models"); err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	return nil
}

func (s *LLMService) Close() error { return nil }
