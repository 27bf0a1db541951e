// Package gemini provides an LLM service adapter using the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/generativelanguage/v1beta"

	"github.com/custodia-labs/carebot/internal/adapters/driven/google"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gemini-1.5-flash"

const providerName = "gemini"

// Config holds configuration for the Gemini LLM service.
type Config struct {
	// APIKey is the Google AI Studio API key (required).
	APIKey string

	// Model is the generative model to use (default: gemini-1.5-flash).
	Model string

	// Endpoint overrides the API base URL.
	Endpoint string

	// HTTPClient replaces the default transport (tests only).
	HTTPClient *http.Client
}

// LLMService provides LLM operations using Gemini.
type LLMService struct {
	svc      *generativelanguage.Service
	model    string
	resource string
}

// NewLLMService creates a new Gemini LLM service.
func NewLLMService(ctx context.Context, cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" && cfg.HTTPClient == nil {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	svc, err := google.NewGenerativeService(ctx, google.ClientConfig{
		APIKey:     cfg.APIKey,
		Endpoint:   cfg.Endpoint,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &LLMService{
		svc:      svc,
		model:    cfg.Model,
		resource: google.ModelResource(cfg.Model),
	}, nil
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := &generativelanguage.GenerateContentRequest{
		Contents:         []*generativelanguage.Content{textContent("user", prompt)},
		GenerationConfig: generationConfig(opts.MaxTokens, opts.Temperature, opts.StopWords),
	}
	return s.generate(ctx, req)
}

// Chat conducts a multi-turn conversation. System messages become the
// system instruction and assistant turns use Gemini's "model" role.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	var system []string
	contents := make([]*generativelanguage.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			contents = append(contents, textContent("model", msg.Content))
		default:
			contents = append(contents, textContent("user", msg.Content))
		}
	}
	if len(contents) == 0 {
		return "", errors.New("gemini: at least one non-system message is required")
	}

	req := &generativelanguage.GenerateContentRequest{
		Contents:         contents,
		GenerationConfig: generationConfig(opts.MaxTokens, opts.Temperature, nil),
	}
	if len(system) > 0 {
		req.SystemInstruction = textContent("", strings.Join(system, "\n\n"))
	}
	return s.generate(ctx, req)
}

func (s *LLMService) generate(ctx context.Context, req *generativelanguage.GenerateContentRequest) (string, error) {
	resp, err := s.svc.Models.GenerateContent(s.resource, req).Context(ctx).Do()
	if err != nil {
		return "", google.WrapError(providerName, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: no candidates returned")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			out.WriteString(part.Text)
		}
	}
	return out.String(), nil
}

func textContent(role, text string) *generativelanguage.Content {
	return &generativelanguage.Content{
		Role:  role,
		Parts: []*generativelanguage.Part{{Text: text}},
	}
}

func generationConfig(maxTokens int, temperature float64, stop []string) *generativelanguage.GenerationConfig {
	if maxTokens == 0 && temperature == 0 && len(stop) == 0 {
		return nil
	}
	return &generativelanguage.GenerationConfig{
		MaxOutputTokens: int64(maxTokens),
		Temperature:     temperature,
		StopSequences:   stop,
	}
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the key by fetching the model's metadata.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.svc.Models.Get(s.resource).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", google.WrapError(providerName, err))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
