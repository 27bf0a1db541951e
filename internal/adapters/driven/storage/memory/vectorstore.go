package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// DefaultMaxWriteBatch is the in-memory store's write ceiling.
const DefaultMaxWriteBatch = 5000

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// Records keep their first insertion position across overwrites.
type VectorStore struct {
	mu        sync.RWMutex
	name      string
	dimension int
	maxBatch  int
	order     []string
	records   map[string]domain.VectorRecord
}

// NewVectorStore creates an empty collection. A dimension of 0 is fixed by
// the first accepted write.
func NewVectorStore(name string, dimension int) *VectorStore {
	return &VectorStore{
		name:      name,
		dimension: dimension,
		maxBatch:  DefaultMaxWriteBatch,
		records:   make(map[string]domain.VectorRecord),
	}
}

// WithMaxWriteBatch overrides the write ceiling.
func (s *VectorStore) WithMaxWriteBatch(n int) *VectorStore {
	s.maxBatch = n
	return s
}

// Upsert writes records, rejecting those with the wrong dimension.
func (s *VectorStore) Upsert(_ context.Context, records []domain.VectorRecord) (domain.UpsertResult, error) {
	if len(records) > s.maxBatch {
		return domain.UpsertResult{}, fmt.Errorf("%w: %d records, ceiling %d",
			domain.ErrBatchTooLarge, len(records), s.maxBatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result domain.UpsertResult
	for _, rec := range records {
		if s.dimension == 0 {
			s.dimension = len(rec.Vector)
		}
		if len(rec.Vector) != s.dimension {
			result.Rejected = append(result.Rejected, domain.RejectedRecord{
				ID:  rec.ID,
				Err: &domain.DimensionMismatchError{ID: rec.ID, Expected: s.dimension, Actual: len(rec.Vector)},
			})
			continue
		}
		if _, exists := s.records[rec.ID]; !exists {
			s.order = append(s.order, rec.ID)
		}
		rec.Vector = append([]float32(nil), rec.Vector...)
		s.records[rec.ID] = rec
		result.Written++
	}

	return result, nil
}

// Query returns the topK nearest records by cosine distance.
func (s *VectorStore) Query(_ context.Context, vector []float32, topK int) ([]domain.QueryHit, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, &domain.DimensionMismatchError{Expected: s.dimension, Actual: len(vector)}
	}

	hits := make([]domain.QueryHit, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		d, err := domain.CosineDistance(vector, rec.Vector)
		if err != nil {
			return nil, err
		}
		hits = append(hits, domain.QueryHit{Record: rec, Distance: d})
	}

	return domain.TopK(hits, topK), nil
}

// IDs lists every stored id in insertion order.
func (s *VectorStore) IDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

// Stats describes the collection.
func (s *VectorStore) Stats(_ context.Context) (domain.CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CollectionStats{
		TotalRecords:   len(s.order),
		CollectionName: s.name,
		Dimension:      s.dimension,
		PersistPath:    ":memory:",
	}, nil
}

// MaxWriteBatch returns the write ceiling.
func (s *VectorStore) MaxWriteBatch() int {
	return s.maxBatch
}

// Close is a no-op.
func (s *VectorStore) Close() error {
	return nil
}
