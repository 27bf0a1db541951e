package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/adapters/driven/metrics/prom"
	"github.com/custodia-labs/carebot/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/services"
)

func TestHasVerboseFlag(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{nil, false},
		{[]string{"chat"}, false},
		{[]string{"-v", "chat"}, true},
		{[]string{"search", "--verbose", "diet"}, true},
		{[]string{"search", "--", "-v"}, false},
		{[]string{"ingest", "--verbose=true", "guide.pdf"}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hasVerboseFlag(tt.args), "%v", tt.args)
	}
}

// staticEmbedder returns the same unit vector for every text.
type staticEmbedder struct{}

func (staticEmbedder) Embed(_ context.Context, texts []string, _ domain.TaskType) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (staticEmbedder) MaxBatchSize() int            { return 16 }
func (staticEmbedder) Dimensions() int              { return 3 }
func (staticEmbedder) ModelName() string            { return "static" }
func (staticEmbedder) Ping(_ context.Context) error { return nil }
func (staticEmbedder) Close() error                 { return nil }

func seedVectors(t *testing.T, dataDir string, ids ...string) {
	t.Helper()
	db, err := sqlite.OpenVectors(dataDir)
	require.NoError(t, err)
	defer db.Close()

	vectors, err := db.VectorStore(context.Background(), collectionName, 3, 0)
	require.NoError(t, err)
	records := make([]domain.VectorRecord, len(ids))
	for i, id := range ids {
		records[i] = domain.VectorRecord{
			ID:       id,
			Vector:   []float32{0, 1, 0},
			Text:     "passage " + id,
			Metadata: domain.VectorMetadata{Source: "ckd_guide.pdf", Page: 1, DocID: "doc-ckd"},
		}
	}
	res, err := vectors.Upsert(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, len(ids), res.Written)
}

func TestBackend_OpenIngestion_RebuildsCorruptCheckpoints(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	seedVectors(t, dataDir, "doc-ckd:0", "doc-ckd:1")

	garbage := bytes.Repeat([]byte("not a sqlite file "), 300)
	checkpointsPath := filepath.Join(dataDir, sqlite.CheckpointsFile)
	require.NoError(t, os.WriteFile(checkpointsPath, garbage, 0600))

	settings := domain.DefaultSettings()
	embedder, err := services.NewEmbeddingClient(staticEmbedder{}, settings.RateLimit, nil)
	require.NoError(t, err)

	b := &backend{settings: &settings, dataDir: dataDir, metrics: prom.New(), embedder: embedder}
	defer b.close()
	b.openIngestion(ctx)

	require.NotNil(t, b.checkpointDB, "checkpoint database is recreated")
	require.NotNil(t, b.pipeline, "ingestion stays enabled")

	checkpoints := b.checkpointDB.CheckpointStore()
	for _, id := range []string{"doc-ckd:0", "doc-ckd:1"} {
		embedded, err := checkpoints.IsEmbedded(ctx, id)
		require.NoError(t, err)
		assert.True(t, embedded, id)
	}

	backup, err := os.ReadFile(checkpointsPath + sqlite.CorruptSuffix)
	require.NoError(t, err)
	assert.Equal(t, garbage, backup)
}

func TestBackend_OpenIngestion_RebuildsWithoutEmbedder(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	seedVectors(t, dataDir, "doc-ckd:0")
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, sqlite.CheckpointsFile),
		bytes.Repeat([]byte("garbage "), 600), 0600))

	settings := domain.DefaultSettings()
	b := &backend{settings: &settings, dataDir: dataDir, metrics: prom.New()}
	defer b.close()
	b.openIngestion(ctx)

	assert.Nil(t, b.pipeline)
	require.NotNil(t, b.checkpointDB)
	embedded, err := b.checkpointDB.CheckpointStore().IsEmbedded(ctx, "doc-ckd:0")
	require.NoError(t, err)
	assert.True(t, embedded)
}
