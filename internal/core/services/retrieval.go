package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
	"github.com/custodia-labs/carebot/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService searches the local reference collection and escalates to
// web search when local coverage is insufficient.
type RetrievalService struct {
	embedder *EmbeddingClient
	vectors  driven.VectorStore
	web      driven.WebSearcher
	settings domain.RetrievalSettings
	metrics  driven.Metrics
}

// NewRetrievalService creates a retrieval service.
// The embedder, web searcher and metrics are optional (can be nil); without
// an embedder every response is degraded to web results only.
func NewRetrievalService(
	embedder *EmbeddingClient,
	vectors driven.VectorStore,
	web driven.WebSearcher,
	settings domain.RetrievalSettings,
	metrics driven.Metrics,
) *RetrievalService {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &RetrievalService{
		embedder: embedder,
		vectors:  vectors,
		web:      web,
		settings: settings,
		metrics:  metrics,
	}
}

// Retrieve returns up to topK local passages ordered by distance, followed
// by web results when the query escalates. Source failures set Degraded and
// never fail the call.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, topK int) (*domain.RetrievalResponse, error) {
	logger.Section("Retrieval")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = s.settings.TopK
	}

	start := time.Now()
	resp := &domain.RetrievalResponse{Query: query}

	local, err := s.searchLocal(ctx, query, topK)
	if err != nil {
		s.degrade(resp, "Local reference search is unavailable; results may be incomplete.", err)
	}
	resp.Results = local

	if reason := s.escalationReason(query, local); reason != "" {
		resp.EscalationReason = reason
		s.searchWeb(ctx, resp)
	}

	s.metrics.Retrieval(time.Since(start), resp.Escalated, resp.Degraded)
	logger.Audit(logger.EventRetrieval, map[string]any{
		"query":             query,
		"local_results":     len(local),
		"escalated":         resp.Escalated,
		"escalation_reason": resp.EscalationReason,
		"degraded":          resp.Degraded,
		"results":           len(resp.Results),
	})

	return resp, nil
}

func (s *RetrievalService) searchLocal(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error) {
	if s.embedder == nil || s.vectors == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	vec, err := s.embedder.Embed(ctx, query, domain.TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.vectors.Query(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}
	logger.Debug("Local search returned %d hits", len(hits))

	results := make([]domain.RetrievalResult, len(hits))
	for i, h := range hits {
		results[i] = domain.RetrievalResult{
			Text:       h.Record.Text,
			Source:     h.Record.Metadata.Source,
			Page:       h.Record.Metadata.Page,
			Distance:   h.Distance,
			Provenance: domain.ProvenanceLocal,
		}
	}
	return results, nil
}

func (s *RetrievalService) searchWeb(ctx context.Context, resp *domain.RetrievalResponse) {
	if s.web == nil {
		logger.Debug("Web search not configured; not escalating (%s)", resp.EscalationReason)
		return
	}

	resp.Escalated = true
	logger.Info("Escalating to web search: %s", resp.EscalationReason)

	found, err := s.web.Search(ctx, resp.Query, s.settings.WebMaxResults)
	if errors.Is(err, domain.ErrWebSearchUnavailable) {
		return
	}
	if err != nil {
		s.degrade(resp, "Web search is unavailable; showing reference material only.", err)
		return
	}

	for _, w := range found {
		resp.Results = append(resp.Results, domain.RetrievalResult{
			Text:       w.Snippet,
			Source:     w.URL,
			Provenance: domain.ProvenanceWeb,
			Title:      w.Title,
			URL:        w.URL,
		})
	}
}

// escalationReason returns why the query needs web search, or "" when local
// results suffice.
func (s *RetrievalService) escalationReason(query string, local []domain.RetrievalResult) string {
	if marker := s.recencyMarker(query); marker != "" {
		return fmt.Sprintf("query asks for recent information (%q)", marker)
	}
	if len(local) == 0 {
		return "no local results"
	}
	for _, r := range local {
		if r.Distance <= s.settings.RelevanceThreshold {
			return ""
		}
	}
	return fmt.Sprintf("no local result within distance %.2f", s.settings.RelevanceThreshold)
}

// recencyMarker returns the first configured marker found in the query.
// Single-word markers match whole words; phrases match as substrings.
func (s *RetrievalService) recencyMarker(query string) string {
	lower := strings.ToLower(query)
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}

	for _, marker := range s.settings.RecencyMarkers {
		m := strings.ToLower(strings.TrimSpace(marker))
		if m == "" {
			continue
		}
		if strings.Contains(m, " ") {
			if strings.Contains(lower, m) {
				return marker
			}
			continue
		}
		if words[m] {
			return marker
		}
	}
	return ""
}

func (s *RetrievalService) degrade(resp *domain.RetrievalResponse, note string, err error) {
	resp.Degraded = true
	resp.Notes = append(resp.Notes, note)
	logger.Info("%v: %v", domain.ErrRetrievalDegraded, err)
}
