package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnscout/vulnscout/internal/config"
)

func TestNoOpPreservesOrder(t *testing.T) {
	r := NoOpReranker{}
	results, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, 1, results[1].Index)
}

func TestNoOpEmpty(t *testing.T) {
	results, err := NoOpReranker{}.Rerank(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHTTPRerankSortsDescending(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotQuery = req.Query

		w.Write([]byte(`{"results":[
			{"index":0,"relevance_score":0.2},
			{"index":2,"relevance_score":0.9},
			{"index":1,"relevance_score":0.5}
		]}`))
	}))
	defer srv.Close()

	r := NewHTTPReranker(config.RerankConfig{Endpoint: srv.URL, Model: "m"})
	results, err := r.Rerank(context.Background(), "sql injection", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)

	assert.Equal(t, "sql injection", gotQuery)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Index)
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
	assert.Equal(t, 1, results[1].Index)
}

func TestHTTPRerankRejectsBadIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"index":7,"relevance_score":0.9}]}`))
	}))
	defer srv.Close()

	r := NewHTTPReranker(config.RerankConfig{Endpoint: srv.URL})
	_, err := r.doRerank(context.Background(), "q", []string{"only"}, 1)
	require.Error(t, err)
}

func TestHTTPRerankEmptyDocsSkipsCall(t *testing.T) {
	r := NewHTTPReranker(config.RerankConfig{Endpoint: "http://unused"})
	results, err := r.Rerank(context.Background(), "q", nil, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}
