package driven

import (
	"context"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// EmbeddingProvider is a remote embedding model.
//
// Implementations make one provider call per Embed invocation and do not
// retry; batching, rate limiting and retry live in the core EmbeddingClient.
//
// Implementations include:
//   - Gemini (embedding-001, text-embedding-004)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingProvider interface {
	// Embed returns one vector per text, in input order.
	// len(texts) must not exceed MaxBatchSize.
	// Transient failures should wrap domain.ErrRateLimited or carry a
	// Temporary() bool method so the client can retry them.
	Embed(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, error)

	// MaxBatchSize is the most texts one Embed call accepts.
	MaxBatchSize() int

	// Dimensions returns the embedding vector size (e.g. 768, 1536).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
