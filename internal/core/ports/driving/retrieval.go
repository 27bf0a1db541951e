package driving

import (
	"context"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// RetrievalService finds reference passages for a query.
type RetrievalService interface {
	// Retrieve returns up to topK local results, escalating to web search
	// when local coverage is insufficient. A topK of zero uses the configured
	// default. Source failures degrade the response instead of failing it.
	Retrieve(ctx context.Context, query string, topK int) (*domain.RetrievalResponse, error)
}
