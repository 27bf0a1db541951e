package driven

import (
	"context"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// VectorStore is a single named collection of vectors with a fixed dimension.
// Distances are cosine distances.
type VectorStore interface {
	// Upsert writes records, overwriting any with the same id.
	// A call with more than MaxWriteBatch records fails with domain.ErrBatchTooLarge
	// and writes nothing. Records with the wrong dimension are rejected
	// individually; the rest of the batch is written atomically.
	Upsert(ctx context.Context, records []domain.VectorRecord) (domain.UpsertResult, error)

	// Query returns up to topK records ordered by ascending distance.
	// Equal distances keep insertion order.
	Query(ctx context.Context, vector []float32, topK int) ([]domain.QueryHit, error)

	// IDs lists every stored record id.
	IDs(ctx context.Context) ([]string, error)

	// Stats describes the collection.
	Stats(ctx context.Context) (domain.CollectionStats, error)

	// MaxWriteBatch is the store's write ceiling.
	MaxWriteBatch() int

	// Close releases resources.
	Close() error
}

// VectorIDLister is the part of a VectorStore reconciliation needs.
type VectorIDLister interface {
	IDs(ctx context.Context) ([]string, error)
}
