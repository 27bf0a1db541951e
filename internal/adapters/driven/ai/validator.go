package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// pingTimeout bounds one connectivity check.
const pingTimeout = 5 * time.Second

// ConfigValidator checks provider settings by connecting to the provider.
// With a collection dimension set, it also rejects embedding models whose
// vectors would not fit the existing reference collection.
type ConfigValidator struct {
	timeout   time.Duration
	dimension func() int
}

// ValidatorOption configures a ConfigValidator.
type ValidatorOption func(*ConfigValidator)

// WithTimeout overrides the per-check timeout.
func WithTimeout(d time.Duration) ValidatorOption {
	return func(v *ConfigValidator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithCollectionDimension makes embedding validation compare the provider's
// vector size with fn(). fn returning 0 means the collection is empty and
// any size is accepted.
func WithCollectionDimension(fn func() int) ValidatorOption {
	return func(v *ConfigValidator) { v.dimension = fn }
}

// NewConfigValidator creates a new AI config validator.
func NewConfigValidator(opts ...ValidatorOption) *ConfigValidator {
	v := &ConfigValidator{timeout: pingTimeout}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateEmbedding creates the provider, pings it and checks its vector
// size. Unconfigured settings are valid.
func (v *ConfigValidator) ValidateEmbedding(settings *domain.EmbeddingSettings) error {
	ctx := context.Background()
	svc, err := CreateEmbeddingProvider(ctx, settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	if v.dimension != nil {
		if want := v.dimension(); want != 0 && svc.Dimensions() != want {
			return fmt.Errorf("%s produces %d-dimensional vectors but the reference collection holds %d; "+
				"re-ingest after switching models: %w",
				svc.ModelName(), svc.Dimensions(), want,
				&domain.DimensionMismatchError{Expected: want, Actual: svc.Dimensions()})
		}
	}
	return v.ping(ctx, svc.Ping)
}

// ValidateLLM creates the LLM service and pings it. Unconfigured settings
// are valid.
func (v *ConfigValidator) ValidateLLM(settings *domain.LLMSettings) error {
	ctx := context.Background()
	svc, err := CreateLLMService(ctx, settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()
	return v.ping(ctx, svc.Ping)
}

func (v *ConfigValidator) ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	return fn(ctx)
}

// ping is the factory's connectivity check with the default timeout.
func ping(ctx context.Context, fn func(context.Context) error) error {
	return (&ConfigValidator{timeout: pingTimeout}).ping(ctx, fn)
}
