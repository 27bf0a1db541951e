package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

func newTestSearcher(t *testing.T, handler http.HandlerFunc) *Searcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), Config{
		SearchEngineID: "cx-1",
		Endpoint:       srv.URL + "/",
		HTTPClient:     srv.Client(),
	})
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func TestNew_Unconfigured(t *testing.T) {
	s, err := New(context.Background(), Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = New(context.Background(), Config{SearchEngineID: "cx"})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSearch(t *testing.T) {
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "metformin side effects", q.Get("q"))
		assert.Equal(t, "cx-1", q.Get("cx"))
		assert.Equal(t, "3", q.Get("num"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"title":"Metformin","link":"https://example.org/metformin","snippet":"Common side effects..."},
			{"title":"Diabetes","link":"https://example.org/diabetes","snippet":"Type 2..."}
		]}`))
	})

	results, err := s.Search(context.Background(), "metformin side effects", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, domain.WebResult{
		Title:   "Metformin",
		URL:     "https://example.org/metformin",
		Snippet: "Common side effects...",
	}, results[0])
}

func TestSearch_ClampsMaxResults(t *testing.T) {
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("num"))
		_, _ = w.Write([]byte(`{}`))
	})

	results, err := s.Search(context.Background(), "q", 50)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestSearch_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	s := newTestSearcher(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend down"}}`))
	})

	for i := 0; i < tripAfter; i++ {
		_, err := s.Search(context.Background(), "q", 1)
		var perr *domain.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusServiceUnavailable, perr.StatusCode)
	}

	_, err := s.Search(context.Background(), "q", 1)
	assert.ErrorIs(t, err, domain.ErrWebSearchUnavailable)
	assert.Equal(t, int32(tripAfter), calls.Load())
}
