package retrieve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnscout/vulnscout/internal/chunk"
	"github.com/vulnscout/vulnscout/internal/embed"
	"github.com/vulnscout/vulnscout/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildIndex(t *testing.T, e embed.Embedder, texts []string) *store.VectorIndex {
	t.Helper()
	idx, err := store.New(store.Config{Dimensions: e.Dimensions(), Metric: store.MetricIP})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), texts, embed.KindDocument)
	require.NoError(t, err)

	meta := make([][]byte, len(texts))
	for i, text := range texts {
		blob, err := EncodeChunk(chunk.Chunk{
			ID:        text,
			File:      "main.go",
			StartLine: i*10 + 1,
			EndLine:   i*10 + 9,
			Language:  "go",
			Text:      text,
		})
		require.NoError(t, err)
		meta[i] = blob
	}
	_, err = idx.Add(vecs, meta)
	require.NoError(t, err)
	return idx
}

func TestSearchReturnsRankedResults(t *testing.T) {
	e := NewHashRetrievalEmbedder(t)
	idx := buildIndex(t, e, []string{"open the database connection", "parse the config file", "render the template"})
	r := NewRetriever(idx, nil, e, Options{}, nil)

	results, err := r.Search(context.Background(), "database connection", 3, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.Equal(t, "database connection", results[0].Query)
}

func TestSearchThresholdFilters(t *testing.T) {
	e := NewHashRetrievalEmbedder(t)
	idx := buildIndex(t, e, []string{"alpha", "beta"})
	r := NewRetriever(idx, nil, e, Options{}, nil)

	results, err := r.Search(context.Background(), "alpha", 5, 1.1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchEmptyIndex(t *testing.T) {
	e := NewHashRetrievalEmbedder(t)
	idx, err := store.New(store.Config{Dimensions: e.Dimensions(), Metric: store.MetricIP})
	require.NoError(t, err)

	r := NewRetriever(idx, nil, e, Options{}, nil)
	results, err := r.Search(context.Background(), "anything", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMergeMaxKeepsHighestScore(t *testing.T) {
	merged := MergeMax([][]Result{
		{{RecordID: 1, Score: 0.4, Query: "q1"}, {RecordID: 2, Score: 0.9, Query: "q1"}},
		{{RecordID: 1, Score: 0.7, Query: "q2"}},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, uint64(2), merged[0].RecordID)
	assert.Equal(t, uint64(1), merged[1].RecordID)
	// Record 1 keeps only its single highest score, from q2.
	assert.InDelta(t, 0.7, merged[1].Score, 1e-9)
	assert.Equal(t, "q2", merged[1].Query)
}

func TestSearchMultiMergeLaw(t *testing.T) {
	e := NewHashRetrievalEmbedder(t)
	idx := buildIndex(t, e, []string{"validate user input before the query", "log the request"})
	r := NewRetriever(idx, nil, e, Options{Parallelism: 2}, nil)

	single1, err := r.Search(context.Background(), "input validation", 2, 0)
	require.NoError(t, err)
	single2, err := r.Search(context.Background(), "query construction", 2, 0)
	require.NoError(t, err)

	merged, err := r.SearchMulti(context.Background(), []string{"input validation", "query construction"}, 2, 0)
	require.NoError(t, err)

	want := map[uint64]float64{}
	for _, res := range append(single1, single2...) {
		if res.Score > want[res.RecordID] {
			want[res.RecordID] = res.Score
		}
	}
	require.Len(t, merged, len(want))
	seen := map[uint64]bool{}
	for _, res := range merged {
		assert.False(t, seen[res.RecordID], "record %d appears twice", res.RecordID)
		seen[res.RecordID] = true
		assert.InDelta(t, want[res.RecordID], res.Score, 1e-6)
	}
}

// flakyEmbedder fails query embedding for chosen texts.
type flakyEmbedder struct {
	embed.Embedder
	failOn map[string]bool
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string, kind embed.InputKind) ([]float32, error) {
	if f.failOn[text] {
		return nil, errors.New("provider hiccup")
	}
	return f.Embedder.Embed(ctx, text, kind)
}

func TestSearchMultiSkipsFailingSubQuery(t *testing.T) {
	e := NewHashRetrievalEmbedder(t)
	idx := buildIndex(t, e, []string{"sanitize request parameters"})
	flaky := &flakyEmbedder{Embedder: e, failOn: map[string]bool{"bad query": true}}
	r := NewRetriever(idx, nil, flaky, Options{Parallelism: 2}, testLogger())

	merged, err := r.SearchMulti(context.Background(), []string{"request parameters", "bad query"}, 2, 0)
	require.NoError(t, err)
	require.NotEmpty(t, merged, "surviving sub-query results must not be dropped")
	assert.Equal(t, "request parameters", merged[0].Query)
}

func TestSearchMultiAllSubQueriesFail(t *testing.T) {
	e := NewHashRetrievalEmbedder(t)
	idx := buildIndex(t, e, []string{"anything"})
	flaky := &flakyEmbedder{Embedder: e, failOn: map[string]bool{"q1": true, "q2": true}}
	r := NewRetriever(idx, nil, flaky, Options{Parallelism: 2}, testLogger())

	_, err := r.SearchMulti(context.Background(), []string{"q1", "q2"}, 2, 0)
	require.Error(t, err)
}

func TestSearchMultiCancellationStaysFatal(t *testing.T) {
	e := NewHashRetrievalEmbedder(t)
	idx := buildIndex(t, e, []string{"anything"})
	flaky := &flakyEmbedder{Embedder: e, failOn: map[string]bool{"q1": true, "q2": true}}
	r := NewRetriever(idx, nil, flaky, Options{Parallelism: 2}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.SearchMulti(ctx, []string{"q1", "q2"}, 2, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSearchMultiEmptyQueries(t *testing.T) {
	e := NewHashRetrievalEmbedder(t)
	idx := buildIndex(t, e, []string{"something"})
	r := NewRetriever(idx, nil, e, Options{}, nil)

	results, err := r.SearchMulti(context.Background(), nil, 3, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// NewHashRetrievalEmbedder returns the deterministic embedder used across
// retrieval tests.
func NewHashRetrievalEmbedder(t *testing.T) embed.Embedder {
	t.Helper()
	return embed.NewHashEmbedder(64)
}
