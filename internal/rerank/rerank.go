// Package rerank provides second-pass relevance re-scoring of a small
// candidate set with a model more accurate than first-pass retrieval.
package rerank

import (
	"context"
)

// Result is one re-scored candidate. Index refers into the document slice
// passed to Rerank.
type Result struct {
	Index int
	Score float64
}

// Reranker re-scores documents against a query and returns the topN,
// ranked descending.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string, topN int) ([]Result, error)
}

// NoOpReranker preserves first-pass order with neutral scores. Used when
// no rerank provider is configured.
type NoOpReranker struct{}

var _ Reranker = (*NoOpReranker)(nil)

func (NoOpReranker) Rerank(_ context.Context, _ string, docs []string, topN int) ([]Result, error) {
	n := len(docs)
	if topN > 0 && topN < n {
		n = topN
	}
	results := make([]Result, n)
	for i := range results {
		results[i] = Result{Index: i, Score: 1.0}
	}
	return results, nil
}
