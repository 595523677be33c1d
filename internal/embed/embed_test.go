package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnscout/vulnscout/internal/cache"
	scouterr "github.com/vulnscout/vulnscout/internal/errors"
)

func fastRetry(maxRetries int) *scouterr.RetryConfig {
	return &scouterr.RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "buffer overflow in parser", KindDocument)
	require.NoError(t, err)
	b, err := e.Embed(ctx, "buffer overflow in parser", KindDocument)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashEmbedderKindSeparation(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	doc, err := e.Embed(ctx, "same text", KindDocument)
	require.NoError(t, err)
	query, err := e.Embed(ctx, "same text", KindQuery)
	require.NoError(t, err)

	assert.NotEqual(t, doc, query)
}

func TestHashEmbedderNormalized(t *testing.T) {
	e := NewHashEmbedder(128)
	vec, err := e.Embed(context.Background(), "some text", KindDocument)
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestCachedEmbedderDocumentHits(t *testing.T) {
	store := cache.NewEmbeddingCache(t.TempDir(), 100)
	counter := NewCountingEmbedder(NewHashEmbedder(32))
	cached := NewCachedEmbedder(counter, store, nil)
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma"}
	first, err := cached.EmbedBatch(ctx, texts, KindDocument)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, int64(3), counter.Texts())

	// Second pass is served entirely from cache.
	second, err := cached.EmbedBatch(ctx, texts, KindDocument)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(3), counter.Texts())
}

func TestCachedEmbedderPartialMiss(t *testing.T) {
	store := cache.NewEmbeddingCache(t.TempDir(), 100)
	counter := NewCountingEmbedder(NewHashEmbedder(32))
	cached := NewCachedEmbedder(counter, store, nil)
	ctx := context.Background()

	_, err := cached.EmbedBatch(ctx, []string{"alpha", "beta"}, KindDocument)
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(ctx, []string{"alpha", "delta", "beta"}, KindDocument)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.NotNil(t, v)
	}
	// Only "delta" reached the provider on the second batch.
	assert.Equal(t, int64(3), counter.Texts())
}

func TestCachedEmbedderQueryLRU(t *testing.T) {
	store := cache.NewEmbeddingCache(t.TempDir(), 100)
	counter := NewCountingEmbedder(NewHashEmbedder(32))
	cached := NewCachedEmbedder(counter, store, nil)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "how is input validated", KindQuery)
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "how is input validated", KindQuery)
	require.NoError(t, err)

	assert.Equal(t, int64(1), counter.Texts())
	// Query embeddings never touch the persistent tier.
	assert.Equal(t, 0, store.MemLen())
}

func TestCachedEmbedderEmptyBatch(t *testing.T) {
	store := cache.NewEmbeddingCache(t.TempDir(), 10)
	cached := NewCachedEmbedder(NewHashEmbedder(16), store, nil)

	vecs, err := cached.EmbedBatch(context.Background(), nil, KindDocument)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestHTTPEmbedderBatch(t *testing.T) {
	var gotModel string
	var gotInputs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		gotInputs = req.Input

		resp := embedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range resp.Embeddings {
			resp.Embeddings[i] = []float32{float32(i), 1, 2}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "test-model"})
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"}, KindDocument)
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	assert.Equal(t, "test-model", gotModel)
	assert.Equal(t, []string{"a", "b"}, gotInputs)
	assert.Equal(t, 3, e.Dimensions())
}

func TestHTTPEmbedderQueryPrefix(t *testing.T) {
	var gotInputs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotInputs = req.Input
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "m"})
	defer e.Close()

	_, err := e.Embed(context.Background(), "find the bug", KindQuery)
	require.NoError(t, err)
	assert.Equal(t, []string{"search_query: find the bug"}, gotInputs)
}

func TestHTTPEmbedderRetriesTransient(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 2}}})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "m", Retry: fastRetry(3)})
	defer e.Close()

	_, err := e.Embed(context.Background(), "text", KindDocument)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestHTTPEmbedderPermanentFailsFast(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "m"})
	defer e.Close()

	_, err := e.Embed(context.Background(), "text", KindDocument)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestHTTPEmbedderCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{}})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "m", Retry: fastRetry(0)})
	defer e.Close()

	_, err := e.Embed(context.Background(), "text", KindDocument)
	require.Error(t, err)
}
