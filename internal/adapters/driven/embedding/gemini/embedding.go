// Package gemini provides an embedding provider adapter using the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/generativelanguage/v1beta"

	"github.com/custodia-labs/carebot/internal/adapters/driven/google"
	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingProvider = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "embedding-001"
	DefaultDimensions = 768

	// MaxBatchSize is the batchEmbedContents request limit.
	MaxBatchSize = 100

	providerName = "gemini"
)

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is the Google AI Studio API key (required).
	APIKey string

	// Model is the embedding model to use (default: embedding-001).
	Model string

	// Endpoint overrides the API base URL.
	Endpoint string

	// HTTPClient replaces the default transport (tests only).
	HTTPClient *http.Client
}

// EmbeddingService generates embeddings using the Gemini API.
type EmbeddingService struct {
	svc        *generativelanguage.Service
	model      string
	resource   string
	dimensions int
}

// NewEmbeddingService creates a new Gemini embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
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

	dimensions, ok := domain.EmbeddingDimensions()[cfg.Model]
	if !ok {
		dimensions = DefaultDimensions
	}

	return &EmbeddingService{
		svc:        svc,
		model:      cfg.Model,
		resource:   google.ModelResource(cfg.Model),
		dimensions: dimensions,
	}, nil
}

// Embed returns one vector per text, in input order.
func (s *EmbeddingService) Embed(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("gemini: %d texts exceeds batch limit %d", len(texts), MaxBatchSize)
	}

	requests := make([]*generativelanguage.EmbedContentRequest, len(texts))
	for i, text := range texts {
		requests[i] = &generativelanguage.EmbedContentRequest{
			Model:    s.resource,
			Content:  &generativelanguage.Content{Parts: []*generativelanguage.Part{{Text: text}}},
			TaskType: taskType(task),
		}
	}

	resp, err := s.svc.Models.BatchEmbedContents(s.resource, &generativelanguage.BatchEmbedContentsRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return nil, google.WrapError(providerName, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("gemini: missing embedding at index %d", i)
		}
		vec := make([]float32, len(e.Values))
		for j, v := range e.Values {
			vec[j] = float32(v)
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// taskType maps the embedding task to Gemini's retrieval task types.
func taskType(task domain.TaskType) string {
	if task == domain.TaskTypeQuery {
		return "RETRIEVAL_QUERY"
	}
	return "RETRIEVAL_DOCUMENT"
}

// MaxBatchSize returns the provider's per-call text limit.
func (s *EmbeddingService) MaxBatchSize() int {
	return MaxBatchSize
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the key by fetching the model's metadata.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.svc.Models.Get(s.resource).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", google.WrapError(providerName, err))
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
