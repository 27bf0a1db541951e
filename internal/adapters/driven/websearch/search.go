// Package websearch provides a WebSearcher backed by the Google Custom
// Search JSON API, guarded by a circuit breaker.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/api/customsearch/v1"

	"github.com/custodia-labs/carebot/internal/adapters/driven/google"
	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
	"github.com/custodia-labs/carebot/internal/logger"
)

// Ensure Searcher implements the interface.
var _ driven.WebSearcher = (*Searcher)(nil)

// Default configuration values.
const (
	DefaultTimeout = 10 * time.Second

	// MaxResults is the per-request limit of the Custom Search API.
	MaxResults = 10

	// tripAfter consecutive failures open the breaker.
	tripAfter    = 3
	breakerReset = time.Minute

	providerName = "google-search"
)

// Config holds configuration for the web searcher.
type Config struct {
	APIKey         string
	SearchEngineID string

	// Timeout bounds each search call (default: 10s).
	Timeout time.Duration

	// Endpoint overrides the API base URL.
	Endpoint string

	// HTTPClient replaces the default transport (tests only).
	HTTPClient *http.Client
}

// Searcher queries Google Custom Search.
type Searcher struct {
	svc     *customsearch.Service
	cx      string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// New returns a Searcher, or nil when the credentials are missing so the
// caller can pass the result straight into an optional WebSearcher slot.
func New(ctx context.Context, cfg Config) (*Searcher, error) {
	if cfg.SearchEngineID == "" || (cfg.APIKey == "" && cfg.HTTPClient == nil) {
		return nil, nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	svc, err := google.NewCustomSearchService(ctx, google.ClientConfig{
		APIKey:     cfg.APIKey,
		Endpoint:   cfg.Endpoint,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("websearch: create client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    providerName,
		Timeout: breakerReset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("%s circuit breaker: %s -> %s", name, from, to)
		},
	})

	return &Searcher{
		svc:     svc,
		cx:      cfg.SearchEngineID,
		timeout: cfg.Timeout,
		breaker: breaker,
	}, nil
}

// Search returns at most maxResults results for query.
func (s *Searcher) Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	if maxResults <= 0 {
		return nil, nil
	}
	if maxResults > MaxResults {
		maxResults = MaxResults
	}

	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.search(ctx, query, maxResults)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", domain.ErrWebSearchUnavailable, err)
		}
		return nil, err
	}
	return out.([]domain.WebResult), nil
}

func (s *Searcher) search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.svc.Cse.List().
		Q(query).
		Cx(s.cx).
		Num(int64(maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, google.WrapError(providerName, err)
	}

	results := make([]domain.WebResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil {
			continue
		}
		results = append(results, domain.WebResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}
