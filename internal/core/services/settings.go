package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"
	keyLLMProvider   = "llm.provider"
	keyLLMModel      = "llm.model"
	keyLLMBaseURL    = "llm.base_url"
	keyLLMAPIKey     = "llm.api_key"

	keyChunkSize  = "chunking.chunk_size"
	keyOverlap    = "chunking.overlap"
	keySnapWindow = "chunking.snap_window"

	keySubBatch    = "pipeline.sub_batch_size"
	keyWorkers     = "pipeline.workers"
	keyStoreCeil   = "pipeline.store_write_ceiling"
	keyFailedRetry = "pipeline.failed_retry"

	keyRPM            = "rate_limit.requests_per_minute"
	keyBurst          = "rate_limit.burst"
	keyMaxAttempts    = "rate_limit.max_attempts"
	keyInitialBackoff = "rate_limit.initial_backoff"
	keyMaxBackoff     = "rate_limit.max_backoff"
	keyCallTimeout    = "rate_limit.call_timeout"

	keyTopK           = "retrieval.top_k"
	keyThreshold      = "retrieval.relevance_threshold"
	keyRecencyMarkers = "retrieval.recency_markers"
	keyWebMaxResults  = "retrieval.web_max_results"

	keyWebAPIKey   = "web_search.api_key"
	keyWebEngineID = "web_search.search_engine_id"
	keyWebTimeout  = "web_search.timeout"

	keyIdleTimeout = "session.idle_timeout"

	keyClinicalKeywords = "routing.clinical_keywords"
	keyDistressKeywords = "routing.distress_keywords"
	keyMonitoredContext = "routing.monitored_context"

	keyPatientsFile = "patients_file"
	keyInboxDir     = "inbox_dir"
)

// Environment variables that override the config file.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvGoogleAPIKey         = "GOOGLE_API_KEY"
	EnvOpenAIAPIKey         = "OPENAI_API_KEY"
	EnvAnthropicAPIKey      = "ANTHROPIC_API_KEY"
	EnvGeminiModel          = "GEMINI_MODEL"
	EnvGeminiEmbeddingModel = "GEMINI_EMBEDDING_MODEL"
	EnvSearchAPIKey         = "GOOGLE_SEARCH_API_KEY"
	EnvSearchEngineID       = "GOOGLE_SEARCH_ENGINE_ID"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
// The validator is optional (can be nil).
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.Settings, error) {
	d := domain.DefaultSettings()

	settings := &domain.Settings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, d.LLM.Provider),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Chunking: domain.ChunkingSettings{
			ChunkSize:  s.getInt(keyChunkSize, d.Chunking.ChunkSize),
			Overlap:    s.getInt(keyOverlap, d.Chunking.Overlap),
			SnapWindow: s.getInt(keySnapWindow, d.Chunking.SnapWindow),
		},
		Pipeline: domain.PipelineSettings{
			SubBatchSize:      s.getInt(keySubBatch, d.Pipeline.SubBatchSize),
			Workers:           s.getInt(keyWorkers, d.Pipeline.Workers),
			StoreWriteCeiling: s.getInt(keyStoreCeil, d.Pipeline.StoreWriteCeiling),
			FailedRetry:       domain.FailedRetryPolicy(s.getString(keyFailedRetry, string(d.Pipeline.FailedRetry))),
		},
		RateLimit: domain.RateLimitSettings{
			RequestsPerMinute: s.getInt(keyRPM, d.RateLimit.RequestsPerMinute),
			Burst:             s.getInt(keyBurst, d.RateLimit.Burst),
			MaxAttempts:       s.getInt(keyMaxAttempts, d.RateLimit.MaxAttempts),
			InitialBackoff:    s.getDuration(keyInitialBackoff, d.RateLimit.InitialBackoff),
			MaxBackoff:        s.getDuration(keyMaxBackoff, d.RateLimit.MaxBackoff),
			CallTimeout:       s.getDuration(keyCallTimeout, d.RateLimit.CallTimeout),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:               s.getInt(keyTopK, d.Retrieval.TopK),
			RelevanceThreshold: s.getFloat(keyThreshold, d.Retrieval.RelevanceThreshold),
			RecencyMarkers:     s.getStrings(keyRecencyMarkers, d.Retrieval.RecencyMarkers),
			WebMaxResults:      s.getInt(keyWebMaxResults, d.Retrieval.WebMaxResults),
		},
		WebSearch: domain.WebSearchSettings{
			APIKey:         s.configStore.GetString(keyWebAPIKey),
			SearchEngineID: s.configStore.GetString(keyWebEngineID),
			Timeout:        s.getDuration(keyWebTimeout, d.WebSearch.Timeout),
		},
		Session: domain.SessionSettings{
			IdleTimeout: s.getDuration(keyIdleTimeout, d.Session.IdleTimeout),
		},
		Routing: domain.RoutingRules{
			ClinicalKeywords: s.getStrings(keyClinicalKeywords, d.Routing.ClinicalKeywords),
			DistressKeywords: s.getStrings(keyDistressKeywords, d.Routing.DistressKeywords),
			MonitoredContext: s.getStrings(keyMonitoredContext, d.Routing.MonitoredContext),
		},
		Scheduler:    s.GetSchedulerConfig(),
		PatientsFile: s.configStore.GetString(keyPatientsFile),
		InboxDir:     s.configStore.GetString(keyInboxDir),
	}

	settings.Embedding.Model = s.getString(keyEmbedModel,
		domain.DefaultEmbeddingModels()[settings.Embedding.Provider])
	settings.LLM.Model = s.getString(keyLLMModel,
		domain.DefaultLLMModels()[settings.LLM.Provider])

	s.applyEnv(settings)
	return settings, nil
}

// applyEnv fills API keys and Gemini models from the environment. Values in
// the config file win over the environment.
func (s *SettingsService) applyEnv(settings *domain.Settings) {
	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.apiKeyFromEnv(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.apiKeyFromEnv(settings.LLM.Provider)
	}

	if settings.Embedding.Provider == domain.AIProviderGemini && s.configStore.GetString(keyEmbedModel) == "" {
		if v, ok := s.lookupEnv(EnvGeminiEmbeddingModel); ok && v != "" {
			settings.Embedding.Model = v
		}
	}
	if settings.LLM.Provider == domain.AIProviderGemini && s.configStore.GetString(keyLLMModel) == "" {
		if v, ok := s.lookupEnv(EnvGeminiModel); ok && v != "" {
			settings.LLM.Model = v
		}
	}

	if settings.WebSearch.APIKey == "" {
		settings.WebSearch.APIKey, _ = s.lookupEnv(EnvSearchAPIKey)
	}
	if settings.WebSearch.SearchEngineID == "" {
		settings.WebSearch.SearchEngineID, _ = s.lookupEnv(EnvSearchEngineID)
	}
}

func (s *SettingsService) apiKeyFromEnv(provider domain.AIProvider) string {
	var name string
	switch provider {
	case domain.AIProviderGemini:
		name = EnvGoogleAPIKey
	case domain.AIProviderOpenAI:
		name = EnvOpenAIAPIKey
	case domain.AIProviderAnthropic:
		name = EnvAnthropicAPIKey
	default:
		return ""
	}
	v, _ := s.lookupEnv(name)
	return v
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.Settings) error {
	type setting struct {
		key   string
		value any
	}
	values := []setting{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyChunkSize, settings.Chunking.ChunkSize},
		{keyOverlap, settings.Chunking.Overlap},
		{keySnapWindow, settings.Chunking.SnapWindow},
		{keySubBatch, settings.Pipeline.SubBatchSize},
		{keyWorkers, settings.Pipeline.Workers},
		{keyStoreCeil, settings.Pipeline.StoreWriteCeiling},
		{keyFailedRetry, string(settings.Pipeline.FailedRetry)},
		{keyTopK, settings.Retrieval.TopK},
		{keyThreshold, settings.Retrieval.RelevanceThreshold},
		{keyWebMaxResults, settings.Retrieval.WebMaxResults},
		{keyIdleTimeout, settings.Session.IdleTimeout.String()},
	}
	if settings.Embedding.APIKey != "" {
		values = append(values, setting{keyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if settings.LLM.APIKey != "" {
		values = append(values, setting{keyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// SetEmbeddingProvider updates the embedding provider configuration.
// Other settings are left untouched.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() || provider == domain.AIProviderAnthropic {
		return fmt.Errorf("%w: %s does not provide embeddings", domain.ErrInvalidConfig, provider)
	}
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}
	return s.setProvider(keyEmbedProvider, keyEmbedModel, keyEmbedAPIKey, provider, model, apiKey)
}

// SetLLMProvider updates the LLM provider configuration.
// Other settings are left untouched.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: unknown LLM provider %q", domain.ErrInvalidConfig, provider)
	}
	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}
	return s.setProvider(keyLLMProvider, keyLLMModel, keyLLMAPIKey, provider, model, apiKey)
}

func (s *SettingsService) setProvider(providerKey, modelKey, apiKeyKey string, provider domain.AIProvider, model, apiKey string) error {
	if err := s.configStore.Set(providerKey, provider.String()); err != nil {
		return fmt.Errorf("save %s: %w", providerKey, err)
	}
	if err := s.configStore.Set(modelKey, model); err != nil {
		return fmt.Errorf("save %s: %w", modelKey, err)
	}
	if apiKey != "" {
		if err := s.configStore.Set(apiKeyKey, apiKey); err != nil {
			return fmt.Errorf("save %s: %w", apiKeyKey, err)
		}
	}
	return nil
}

// Validate checks the effective settings against their constraints.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	defaults := domain.DefaultSchedulerConfig()

	if _, exists := s.configStore.Get("scheduler.enabled"); exists {
		defaults.Enabled = s.configStore.GetBool("scheduler.enabled")
	}

	// Map from task ID to config key (underscore version for TOML)
	taskKeys := map[string]string{
		domain.TaskIDRetryFailed:  "retry_failed",
		domain.TaskIDSessionSweep: "session_sweep",
	}

	for taskID, configKey := range taskKeys {
		prefix := "scheduler." + configKey + "."
		taskCfg := defaults.TaskConfigs[taskID]

		if _, exists := s.configStore.Get(prefix + "enabled"); exists {
			taskCfg.Enabled = s.configStore.GetBool(prefix + "enabled")
		}
		if d := s.configStore.GetDuration(prefix + "interval"); d > 0 {
			taskCfg.Interval = d
		}

		defaults.TaskConfigs[taskID] = taskCfg
	}

	return defaults
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if d := s.configStore.GetDuration(key); d > 0 {
		return d
	}
	return defaultVal
}

func (s *SettingsService) getStrings(key string, defaultVal []string) []string {
	vals := s.configStore.GetStringSlice(key)
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
