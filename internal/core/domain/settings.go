package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderGemini is Google's Gemini API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderGemini, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderGemini || p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint override.
	BaseURL string

	// APIKey is the API key (for Gemini/OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint override.
	BaseURL string

	// APIKey is the API key.
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ChunkingSettings controls how extracted text is split. All three sizes
// are UTF-8 byte counts, not characters: text outside ASCII fits fewer
// characters into a chunk and its overlap.
type ChunkingSettings struct {
	// ChunkSize is the maximum chunk length in bytes.
	ChunkSize int

	// Overlap is how many bytes consecutive chunks share, rounded to a
	// rune boundary.
	Overlap int

	// SnapWindow is how many bytes back from the hard cut a boundary may
	// move to land on a sentence end or whitespace.
	SnapWindow int
}

// Validate checks the chunking constraints.
func (c ChunkingSettings) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap (%d) must be smaller than chunk_size (%d)",
			ErrInvalidConfig, c.Overlap, c.ChunkSize)
	}
	if c.SnapWindow < 0 || c.SnapWindow >= c.ChunkSize-c.Overlap {
		return fmt.Errorf("%w: snap_window must be at least 0 and below chunk_size-overlap (%d), got %d",
			ErrInvalidConfig, c.ChunkSize-c.Overlap, c.SnapWindow)
	}
	return nil
}

// FailedRetryPolicy decides when failed chunks are attempted again.
type FailedRetryPolicy string

// Failed-chunk retry policies.
const (
	// RetryManual retries failed chunks only on an explicit retry-failed request.
	RetryManual FailedRetryPolicy = "manual"

	// RetryOnResume re-queues failed chunks whenever a job is resumed.
	RetryOnResume FailedRetryPolicy = "on_resume"

	// RetryScheduled re-queues failed chunks from the scheduler's retry task.
	RetryScheduled FailedRetryPolicy = "scheduled"
)

// IsValid returns true if the policy is recognised.
func (p FailedRetryPolicy) IsValid() bool {
	switch p {
	case RetryManual, RetryOnResume, RetryScheduled:
		return true
	default:
		return false
	}
}

// PipelineSettings consolidates the ingestion batch limits.
type PipelineSettings struct {
	// SubBatchSize is the preferred number of chunks per embed-and-upsert round.
	SubBatchSize int

	// Workers is the number of sub-batches embedded concurrently.
	Workers int

	// StoreWriteCeiling is the vector store's maximum records per write.
	StoreWriteCeiling int

	// FailedRetry is the failed-chunk retry policy.
	FailedRetry FailedRetryPolicy
}

// EffectiveSubBatch returns the sub-batch size bounded by both ceilings.
func (p PipelineSettings) EffectiveSubBatch(providerCeiling int) int {
	size := p.SubBatchSize
	if providerCeiling > 0 && providerCeiling < size {
		size = providerCeiling
	}
	if p.StoreWriteCeiling > 0 && p.StoreWriteCeiling < size {
		size = p.StoreWriteCeiling
	}
	return size
}

// Validate checks the pipeline constraints against the provider's batch ceiling.
func (p PipelineSettings) Validate(providerCeiling int) error {
	if p.SubBatchSize <= 0 {
		return fmt.Errorf("%w: sub_batch_size must be positive, got %d", ErrInvalidConfig, p.SubBatchSize)
	}
	if p.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, p.Workers)
	}
	if p.StoreWriteCeiling <= 0 {
		return fmt.Errorf("%w: store_write_ceiling must be positive, got %d", ErrInvalidConfig, p.StoreWriteCeiling)
	}
	if providerCeiling > 0 && p.SubBatchSize > providerCeiling {
		return fmt.Errorf("%w: sub_batch_size (%d) exceeds provider batch ceiling (%d)",
			ErrInvalidConfig, p.SubBatchSize, providerCeiling)
	}
	if p.SubBatchSize > p.StoreWriteCeiling {
		return fmt.Errorf("%w: sub_batch_size (%d) exceeds store write ceiling (%d)",
			ErrInvalidConfig, p.SubBatchSize, p.StoreWriteCeiling)
	}
	if !p.FailedRetry.IsValid() {
		return fmt.Errorf("%w: unknown failed_retry policy %q", ErrInvalidConfig, p.FailedRetry)
	}
	return nil
}

// RateLimitSettings controls calls to the embedding provider.
type RateLimitSettings struct {
	// RequestsPerMinute is the steady provider call rate.
	RequestsPerMinute int

	// Burst is how many calls may go out back to back.
	Burst int

	// MaxAttempts bounds tries per sub-batch, including the first.
	MaxAttempts int

	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration

	// MaxBackoff caps a single retry delay.
	MaxBackoff time.Duration

	// CallTimeout bounds one provider call.
	CallTimeout time.Duration
}

// Validate checks the rate limit settings.
func (r RateLimitSettings) Validate() error {
	if r.RequestsPerMinute <= 0 {
		return fmt.Errorf("%w: requests_per_minute must be positive", ErrInvalidConfig)
	}
	if r.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max_attempts must be positive", ErrInvalidConfig)
	}
	if r.CallTimeout <= 0 {
		return fmt.Errorf("%w: call_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// RetrievalSettings controls local retrieval and web escalation.
type RetrievalSettings struct {
	// TopK is the default number of local results.
	TopK int

	// RelevanceThreshold is the cosine distance above which a local
	// result counts as irrelevant.
	RelevanceThreshold float64

	// RecencyMarkers are query terms that force a web search.
	RecencyMarkers []string

	// WebMaxResults bounds web search results.
	WebMaxResults int
}

// WebSearchSettings configures the Google Custom Search provider.
type WebSearchSettings struct {
	APIKey         string
	SearchEngineID string
	Timeout        time.Duration
}

// IsConfigured returns true when both credentials are present.
func (w WebSearchSettings) IsConfigured() bool {
	return w.APIKey != "" && w.SearchEngineID != ""
}

// SessionSettings controls the session registry.
type SessionSettings struct {
	// IdleTimeout closes sessions with no activity for this long. Zero disables expiry.
	IdleTimeout time.Duration
}

// Settings holds all application settings.
type Settings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Chunking  ChunkingSettings
	Pipeline  PipelineSettings
	RateLimit RateLimitSettings
	Retrieval RetrievalSettings
	WebSearch WebSearchSettings
	Session   SessionSettings
	Routing   RoutingRules
	Scheduler SchedulerConfig

	// PatientsFile is the path of the patient records fixture.
	PatientsFile string

	// InboxDir is watched for new documents by "ingest watch".
	InboxDir string
}

// Validate checks every settings group that has static constraints.
func (s Settings) Validate() error {
	if err := s.Chunking.Validate(); err != nil {
		return err
	}
	if err := s.Pipeline.Validate(0); err != nil {
		return err
	}
	if err := s.RateLimit.Validate(); err != nil {
		return err
	}
	if s.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval top_k must be positive", ErrInvalidConfig)
	}
	return nil
}

// DefaultSettings returns settings with sensible defaults.
// AI providers are left unconfigured until an API key is supplied.
func DefaultSettings() Settings {
	return Settings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderGemini,
			Model:    DefaultEmbeddingModels()[AIProviderGemini],
		},
		LLM: LLMSettings{
			Provider: AIProviderGemini,
			Model:    DefaultLLMModels()[AIProviderGemini],
		},
		Chunking: ChunkingSettings{
			ChunkSize:  600,
			Overlap:    150,
			SnapWindow: 200,
		},
		Pipeline: PipelineSettings{
			SubBatchSize:      50,
			Workers:           4,
			StoreWriteCeiling: 5000,
			FailedRetry:       RetryManual,
		},
		RateLimit: RateLimitSettings{
			RequestsPerMinute: 60,
			Burst:             1,
			MaxAttempts:       5,
			InitialBackoff:    time.Second,
			MaxBackoff:        30 * time.Second,
			CallTimeout:       30 * time.Second,
		},
		Retrieval: RetrievalSettings{
			TopK:               3,
			RelevanceThreshold: 0.6,
			RecencyMarkers:     []string{"latest", "recent", "newest", "current guidelines", "this year", "new research"},
			WebMaxResults:      2,
		},
		WebSearch: WebSearchSettings{
			Timeout: 10 * time.Second,
		},
		Session: SessionSettings{
			IdleTimeout: 30 * time.Minute,
		},
		Routing:   DefaultRoutingRules(),
		Scheduler: DefaultSchedulerConfig(),
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderGemini,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderGemini,
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderGemini: "embedding-001",
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderGemini:    "gemini-1.5-flash",
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Gemini models
		"embedding-001":        768,
		"text-embedding-004":   768,
		"gemini-embedding-001": 3072,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
