package driven

import (
	"context"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// WebSearcher queries a public web search provider.
// This is an optional service - when nil, retrieval never escalates.
type WebSearcher interface {
	// Search returns at most maxResults results.
	Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error)
}
