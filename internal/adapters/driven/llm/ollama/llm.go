// Package ollama phrases conversation replies with a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/carebot/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig configures NewLLMService. Zero fields take the package
// defaults.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService talks to /api/generate and /api/chat without streaming.
type LLMService struct {
	api   *httpapi.Client
	model string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// request serves both endpoints: generate sets Prompt, chat sets Messages.
type request struct {
	Model    string    `json:"model"`
	Prompt   string    `json:"prompt,omitempty"`
	Messages []message `json:"messages,omitempty"`
	Stream   bool      `json:"stream"`
	Options  *options  `json:"options,omitempty"`
}

type response struct {
	Response string  `json:"response"`
	Message  message `json:"message"`
}

func NewLLMService(cfg LLMConfig) *LLMService {
	baseURL, model, timeout := cfg.BaseURL, cfg.Model, cfg.Timeout
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultLLMModel
	}
	if timeout == 0 {
		timeout = DefaultLLMTimeout
	}
	return &LLMService{api: httpapi.New("ollama", baseURL, timeout), model: model}
}

func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	resp, err := s.post(ctx, "/api/generate", request{
		Prompt:  prompt,
		Options: newOptions(opts.MaxTokens, opts.Temperature, opts.StopWords),
	})
	return resp.Response, err
}

func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := request{Options: newOptions(opts.MaxTokens, opts.Temperature, nil)}
	for _, m := range messages {
		req.Messages = append(req.Messages, message{Role: m.Role, Content: m.Content})
	}
	resp, err := s.post(ctx, "/api/chat", req)
	return resp.Message.Content, err
}

func (s *LLMService) post(ctx context.Context, path string, req request) (response, error) {
	req.Model = s.model
	var resp response
	if err := s.api.PostJSON(ctx, path, req, &resp); err != nil {
		return response{}, err
	}
	return resp, nil
}

// newOptions returns nil when every field is zero so the model's own
// defaults apply.
func newOptions(maxTokens int, temperature float64, stop []string) *options {
	if maxTokens == 0 && temperature == 0 && len(stop) == 0 {
		return nil
	}
	return &options{NumPredict: maxTokens, Temperature: temperature, Stop: stop}
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists local models via /api/tags.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/api/tags"); err != nil {
		return fmt.Errorf("ollama: server not reachable at %s: %w", s.api.BaseURL, err)
	}
	return nil
}

func (s *LLMService) Close() error { return nil }
