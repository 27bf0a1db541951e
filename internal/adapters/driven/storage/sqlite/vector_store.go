package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// DefaultMaxWriteBatch bounds a single Upsert call.
const DefaultMaxWriteBatch = 5000

// vectorStore implements driven.VectorStore over one named collection.
type vectorStore struct {
	store    *Store
	name     string
	maxBatch int

	mu        sync.Mutex
	dimension int
}

var _ driven.VectorStore = (*vectorStore)(nil)

// VectorStore returns the named collection, creating it if needed. A
// dimension of 0 leaves the dimension to be fixed by the first write; an
// existing collection keeps its stored dimension.
func (s *Store) VectorStore(ctx context.Context, name string, dimension, maxWriteBatch int) (driven.VectorStore, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name required", domain.ErrInvalidInput)
	}
	if maxWriteBatch <= 0 {
		maxWriteBatch = DefaultMaxWriteBatch
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO collections (name, dimension, created_at) VALUES (?, ?, ?)
	`, name, dimension, formatTime(s.now())); err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	var stored int
	if err := s.db.QueryRowContext(ctx,
		"SELECT dimension FROM collections WHERE name = ?", name).Scan(&stored); err != nil {
		return nil, fmt.Errorf("reading collection: %w", err)
	}
	if stored != 0 && dimension != 0 && stored != dimension {
		return nil, &domain.DimensionMismatchError{Expected: stored, Actual: dimension}
	}

	return &vectorStore{store: s, name: name, maxBatch: maxWriteBatch, dimension: stored}, nil
}

// Upsert writes records in one transaction. Records with the wrong
// dimension are rejected individually.
func (v *vectorStore) Upsert(ctx context.Context, records []domain.VectorRecord) (domain.UpsertResult, error) {
	if len(records) > v.maxBatch {
		return domain.UpsertResult{}, fmt.Errorf("%w: %d records, ceiling %d",
			domain.ErrBatchTooLarge, len(records), v.maxBatch)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	dimension := v.dimension
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (collection, id, vector, text, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			vector = excluded.vector,
			text = excluded.text,
			metadata = excluded.metadata
	`)
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	var result domain.UpsertResult
	for _, rec := range records {
		if dimension == 0 {
			dimension = len(rec.Vector)
		}
		if len(rec.Vector) != dimension {
			result.Rejected = append(result.Rejected, domain.RejectedRecord{
				ID:  rec.ID,
				Err: &domain.DimensionMismatchError{ID: rec.ID, Expected: dimension, Actual: len(rec.Vector)},
			})
			continue
		}

		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return domain.UpsertResult{}, fmt.Errorf("marshalling metadata for %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, v.name, rec.ID, encodeVector(rec.Vector), rec.Text, string(meta)); err != nil {
			return domain.UpsertResult{}, fmt.Errorf("writing %s: %w", rec.ID, err)
		}
		result.Written++
	}

	if dimension != v.dimension {
		if _, err := tx.ExecContext(ctx,
			"UPDATE collections SET dimension = ? WHERE name = ?", dimension, v.name); err != nil {
			return domain.UpsertResult{}, fmt.Errorf("fixing dimension: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.UpsertResult{}, fmt.Errorf("committing upsert: %w", err)
	}
	v.dimension = dimension

	return result, nil
}

// Query scans the collection in insertion order and returns the topK
// nearest records by cosine distance.
func (v *vectorStore) Query(ctx context.Context, vector []float32, topK int) ([]domain.QueryHit, error) {
	if topK <= 0 {
		return nil, nil
	}

	v.mu.Lock()
	dimension := v.dimension
	v.mu.Unlock()

	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, vector, text, metadata FROM vectors
		WHERE collection = ?
		ORDER BY seq
	`, v.name)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []domain.QueryHit
	for rows.Next() {
		if hits == nil && len(vector) != dimension {
			return nil, &domain.DimensionMismatchError{Expected: dimension, Actual: len(vector)}
		}
		rec, err := scanVectorRecord(rows)
		if err != nil {
			return nil, err
		}
		d, err := domain.CosineDistance(vector, rec.Vector)
		if err != nil {
			return nil, err
		}
		hits = append(hits, domain.QueryHit{Record: *rec, Distance: d})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	return domain.TopK(hits, topK), nil
}

// IDs lists every stored id in insertion order.
func (v *vectorStore) IDs(ctx context.Context) ([]string, error) {
	rows, err := v.store.db.QueryContext(ctx,
		"SELECT id FROM vectors WHERE collection = ? ORDER BY seq", v.name)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats describes the collection.
func (v *vectorStore) Stats(ctx context.Context) (domain.CollectionStats, error) {
	var total, dimension int
	err := v.store.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM vectors WHERE collection = c.name), c.dimension
		FROM collections c WHERE c.name = ?
	`, v.name).Scan(&total, &dimension)
	if err != nil {
		return domain.CollectionStats{}, fmt.Errorf("reading stats: %w", err)
	}
	return domain.CollectionStats{
		TotalRecords:   total,
		CollectionName: v.name,
		Dimension:      dimension,
		PersistPath:    v.store.path,
	}, nil
}

// MaxWriteBatch returns the write ceiling.
func (v *vectorStore) MaxWriteBatch() int {
	return v.maxBatch
}

// Close closes the underlying Store.
func (v *vectorStore) Close() error {
	return v.store.Close()
}

func scanVectorRecord(rows *sql.Rows) (*domain.VectorRecord, error) {
	var rec domain.VectorRecord
	var blob []byte
	var meta string
	if err := rows.Scan(&rec.ID, &blob, &rec.Text, &meta); err != nil {
		return nil, fmt.Errorf("scanning vector: %w", err)
	}
	rec.Vector = decodeVector(blob)
	if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata for %s: %w", rec.ID, err)
	}
	return &rec, nil
}
