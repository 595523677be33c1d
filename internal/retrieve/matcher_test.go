package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnscout/vulnscout/internal/chunk"
	scouterr "github.com/vulnscout/vulnscout/internal/errors"
	"github.com/vulnscout/vulnscout/internal/vulndb"
)

type fakeStore struct {
	records []vulndb.Record
	err     error
	calls   int
}

func (f *fakeStore) SimilaritySearch(_ context.Context, _ []float32, limit int, _ float64) ([]vulndb.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeStore) Dimensions() int { return 0 }

func testChunks() []chunk.Chunk {
	return []chunk.Chunk{
		{ID: "c1", File: "db.go", StartLine: 1, EndLine: 9, Language: "go",
			Text: "query := \"SELECT * FROM users WHERE name = '\" + name + \"'\""},
		{ID: "c2", File: "log.go", StartLine: 1, EndLine: 4, Language: "go",
			Text: "slog.Info(\"request\", \"path\", r.URL.Path)"},
	}
}

func testMatcher(t *testing.T, vstore vulndb.Store, confidence float64) *VulnMatcher {
	t.Helper()
	e := NewHashRetrievalEmbedder(t)
	texts := make([]string, 0)
	for _, c := range testChunks() {
		texts = append(texts, c.Text)
	}
	idx := buildIndex(t, e, texts)
	retriever := NewRetriever(idx, nil, e, Options{}, nil)
	return NewVulnMatcher(retriever, e, vstore, nil, MatcherOptions{
		MaxChunks:           10,
		CandidatesPerChunk:  3,
		ConfidenceThreshold: confidence,
		Decompose:           DecomposeOptions{MaxSubQueries: 3, Budget: 9},
	}, nil)
}

func TestMatchPromotesAboveThreshold(t *testing.T) {
	vstore := &fakeStore{records: []vulndb.Record{
		{ID: "CVE-2024-0001", Title: "SQL injection", Description: "String concatenation builds a statement from request input.", Score: 0.88},
	}}
	m := testMatcher(t, vstore, 0)

	matches, err := m.MatchVulnerabilities(context.Background(), testChunks())
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, "CVE-2024-0001", matches[0].Record.ID)
	assert.NotEmpty(t, matches[0].Chunk.Text)
	assert.Greater(t, matches[0].Confidence, 0.0)
	assert.NotEmpty(t, matches[0].Supporting)
}

func TestMatchConfidenceGate(t *testing.T) {
	vstore := &fakeStore{records: []vulndb.Record{
		{ID: "CVE-2024-0002", Title: "Weak candidate", Description: "Unrelated description text for this code.", Score: 0.3},
	}}
	m := testMatcher(t, vstore, 0.999)

	matches, err := m.MatchVulnerabilities(context.Background(), testChunks())
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatchNoChunks(t *testing.T) {
	m := testMatcher(t, &fakeStore{}, 0)
	matches, err := m.MatchVulnerabilities(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatchNoCandidates(t *testing.T) {
	vstore := &fakeStore{}
	m := testMatcher(t, vstore, 0)

	matches, err := m.MatchVulnerabilities(context.Background(), testChunks())
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, len(testChunks()), vstore.calls)
}

func TestMatchAllQueriesFailing(t *testing.T) {
	vstore := &fakeStore{err: scouterr.Transient("store down", nil)}
	m := testMatcher(t, vstore, 0)

	_, err := m.MatchVulnerabilities(context.Background(), testChunks())
	require.Error(t, err)
	assert.Equal(t, scouterr.ErrCodeSearchFailed, scouterr.GetCode(err))
}

func TestMatchDedupesRecordsAcrossChunks(t *testing.T) {
	// The same record comes back for both chunks; only one candidate
	// survives and at most one match is produced.
	vstore := &fakeStore{records: []vulndb.Record{
		{ID: "CVE-2024-0003", Title: "Shared", Description: "Both chunks hit this record with different scores.", Score: 0.8},
	}}
	m := testMatcher(t, vstore, 0)

	matches, err := m.MatchVulnerabilities(context.Background(), testChunks())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "CVE-2024-0003", matches[0].Record.ID)
}

func TestEncodeDecodeChunk(t *testing.T) {
	c := chunk.Chunk{ID: "x", File: "a.go", StartLine: 3, EndLine: 7, Language: "go", Text: "func a() {}"}
	blob, err := EncodeChunk(c)
	require.NoError(t, err)

	got, err := DecodeChunk(blob)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = DecodeChunk([]byte("not json"))
	require.Error(t, err)
}
