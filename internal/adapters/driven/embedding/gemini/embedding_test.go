package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

type batchRequest struct {
	Requests []struct {
		Model    string `json:"model"`
		TaskType string `json:"taskType"`
		Content  struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"requests"`
}

func newTestService(t *testing.T, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewEmbeddingService(context.Background(), Config{
		Endpoint:   srv.URL + "/",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return svc
}

func TestNewEmbeddingService_RequiresKey(t *testing.T) {
	_, err := NewEmbeddingService(context.Background(), Config{})
	assert.Error(t, err)
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc := newTestService(t, func(http.ResponseWriter, *http.Request) {})
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, 768, svc.Dimensions())
	assert.Equal(t, MaxBatchSize, svc.MaxBatchSize())
	assert.NoError(t, svc.Close())
}

func TestEmbed(t *testing.T) {
	var got batchRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/embedding-001:batchEmbedContents"), r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[0.5,1]},{"values":[0,-1]}]}`))
	})

	vecs, err := svc.Embed(context.Background(), []string{"alpha", "beta"}, domain.TaskTypeDocument)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 1}, {0, -1}}, vecs)

	require.Len(t, got.Requests, 2)
	assert.Equal(t, "models/embedding-001", got.Requests[0].Model)
	assert.Equal(t, "RETRIEVAL_DOCUMENT", got.Requests[0].TaskType)
	assert.Equal(t, "beta", got.Requests[1].Content.Parts[0].Text)
}

func TestEmbed_QueryTaskType(t *testing.T) {
	var got batchRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[1]}]}`))
	})

	_, err := svc.Embed(context.Background(), []string{"q"}, domain.TaskTypeQuery)
	require.NoError(t, err)
	assert.Equal(t, "RETRIEVAL_QUERY", got.Requests[0].TaskType)
}

func TestEmbed_Empty(t *testing.T) {
	svc := newTestService(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	vecs, err := svc.Embed(context.Background(), nil, domain.TaskTypeDocument)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbed_TooMany(t *testing.T) {
	svc := newTestService(t, func(http.ResponseWriter, *http.Request) {})
	_, err := svc.Embed(context.Background(), make([]string, MaxBatchSize+1), domain.TaskTypeDocument)
	assert.Error(t, err)
}

func TestEmbed_CountMismatch(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[1]}]}`))
	})
	_, err := svc.Embed(context.Background(), []string{"a", "b"}, domain.TaskTypeDocument)
	assert.Error(t, err)
}

func TestEmbed_ProviderErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		temporary bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad key", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope"}}`, tt.status)
			})

			_, err := svc.Embed(context.Background(), []string{"a"}, domain.TaskTypeDocument)
			var perr *domain.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "gemini", perr.Provider)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, tt.temporary, perr.Temporary())
		})
	}
}

func TestPing(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/embedding-001"), r.URL.Path)
		_, _ = w.Write([]byte(`{"name":"models/embedding-001"}`))
	})
	assert.NoError(t, svc.Ping(context.Background()))

	failing := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	assert.Error(t, failing.Ping(context.Background()))
}
