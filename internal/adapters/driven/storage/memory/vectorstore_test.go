package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

func rec(id string, v ...float32) domain.VectorRecord {
	return domain.VectorRecord{ID: id, Vector: v, Text: "text " + id, Metadata: domain.VectorMetadata{Source: "test.pdf", DocID: "doc"}}
}

func TestVectorStore_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("medical_documents", 2)

	res, err := store.Upsert(ctx, []domain.VectorRecord{rec("a", 1, 0), rec("b", 0, 1), rec("c", 1, 1)})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Written)
	assert.Empty(t, res.Rejected)

	hits, err := store.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Record.ID)
	assert.Equal(t, 0.0, hits[0].Distance)
	assert.Equal(t, "c", hits[1].Record.ID)
}

func TestVectorStore_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("c", 2)

	_, err := store.Upsert(ctx, []domain.VectorRecord{rec("second", 0, 1), rec("first", 1, 0), rec("third", 2, 0)})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		hits, err := store.Query(ctx, []float32{1, 0}, 3)
		require.NoError(t, err)
		assert.Equal(t, "first", hits[0].Record.ID)
		assert.Equal(t, "third", hits[1].Record.ID)
		assert.Equal(t, "second", hits[2].Record.ID)
	}
}

func TestVectorStore_OverwriteKeepsPosition(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("c", 2)

	_, err := store.Upsert(ctx, []domain.VectorRecord{rec("a", 1, 0), rec("b", 1, 0)})
	require.NoError(t, err)
	updated := rec("a", 1, 0)
	updated.Text = "updated"
	_, err = store.Upsert(ctx, []domain.VectorRecord{updated})
	require.NoError(t, err)

	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	hits, err := store.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "updated", hits[0].Record.Text)
}

func TestVectorStore_RejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("c", 0)

	res, err := store.Upsert(ctx, []domain.VectorRecord{rec("a", 1, 0), rec("bad", 1, 0, 0), rec("b", 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "bad", res.Rejected[0].ID)

	var dimErr *domain.DimensionMismatchError
	assert.ErrorAs(t, res.Rejected[0].Err, &dimErr)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Dimension)
	assert.Equal(t, 2, stats.TotalRecords)
}

func TestVectorStore_BatchCeiling(t *testing.T) {
	store := NewVectorStore("c", 1).WithMaxWriteBatch(2)

	records := make([]domain.VectorRecord, 3)
	for i := range records {
		records[i] = rec(fmt.Sprintf("r%d", i), 1)
	}

	_, err := store.Upsert(context.Background(), records)
	assert.ErrorIs(t, err, domain.ErrBatchTooLarge)

	stats, _ := store.Stats(context.Background())
	assert.Zero(t, stats.TotalRecords, "oversized batch writes nothing")
}

func TestVectorStore_QueryEmptyAndMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("c", 2)

	hits, err := store.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = store.Upsert(ctx, []domain.VectorRecord{rec("a", 1, 0)})
	require.NoError(t, err)
	_, err = store.Query(ctx, []float32{1, 0, 0}, 3)
	var dimErr *domain.DimensionMismatchError
	assert.ErrorAs(t, err, &dimErr)
}
