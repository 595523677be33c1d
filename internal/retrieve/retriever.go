// Package retrieve answers similarity queries against the local chunk
// index and matches chunks against the external vulnerability store.
package retrieve

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vulnscout/vulnscout/internal/embed"
	scouterr "github.com/vulnscout/vulnscout/internal/errors"
	"github.com/vulnscout/vulnscout/internal/store"
)

// Result is one retrieval hit.
type Result struct {
	// RecordID is the index-local sequential id of the matched record.
	RecordID uint64

	// Score is the similarity score in [0,1], higher is better.
	Score float64

	// Query is the originating query text; after max-merge it is the
	// query that produced the winning score.
	Query string

	// Metadata is the record's opaque metadata blob.
	Metadata []byte
}

// Options bounds fan-out and scoring.
type Options struct {
	// Parallelism caps concurrent searches in SearchMulti.
	Parallelism int

	// KeywordBoost adds a fraction of the keyword score to hits that also
	// match lexically. Zero disables the boost.
	KeywordBoost float64
}

// Retriever runs similarity search over a vector index, with optional
// keyword blending when a keyword index was built alongside.
type Retriever struct {
	index    *store.VectorIndex
	keyword  *store.KeywordIndex
	embedder embed.Embedder
	opts     Options
	logger   *slog.Logger
}

func NewRetriever(index *store.VectorIndex, keyword *store.KeywordIndex, embedder embed.Embedder, opts Options, logger *slog.Logger) *Retriever {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		index:    index,
		keyword:  keyword,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

// Search embeds the query, searches the index, and drops hits below
// threshold. Results come back ranked descending by score.
func (r *Retriever) Search(ctx context.Context, query string, topK int, threshold float64) ([]Result, error) {
	vec, err := r.embedder.Embed(ctx, query, embed.KindQuery)
	if err != nil {
		return nil, scouterr.Wrap(scouterr.ErrCodeSearchFailed, err)
	}
	if r.index.Metric() == store.MetricIP {
		vec = embed.Normalize(vec)
	}

	hits, err := r.index.Search(vec, topK)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		score := float64(hit.Score)
		if score < threshold {
			continue
		}
		results = append(results, Result{
			RecordID: hit.ID,
			Score:    score,
			Query:    query,
			Metadata: hit.Metadata,
		})
	}

	if r.keyword != nil && r.opts.KeywordBoost > 0 {
		r.applyKeywordBoost(query, results)
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	}
	return results, nil
}

// applyKeywordBoost blends lexical relevance into hits that also match the
// query textually. Keyword failures degrade to no boost.
func (r *Retriever) applyKeywordBoost(query string, results []Result) {
	if len(results) == 0 {
		return
	}
	hits, err := r.keyword.Search(query, len(results)*2)
	if err != nil {
		r.logger.Debug("keyword boost skipped", "error", err)
		return
	}
	byID := make(map[uint64]float64, len(hits))
	var maxScore float64
	for _, h := range hits {
		byID[h.ID] = h.Score
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	if maxScore == 0 {
		return
	}
	for i := range results {
		if kw, ok := byID[results[i].RecordID]; ok {
			results[i].Score += r.opts.KeywordBoost * (kw / maxScore)
		}
	}
}

// SearchMulti fans out one independent search per query and merges by
// record identity, keeping for each record only its single highest score
// across all queries. The merged set is sorted descending. A failing
// sub-query is logged and contributes no results; the fan-out errors only
// when every query fails or the context is cancelled.
func (r *Retriever) SearchMulti(ctx context.Context, queries []string, topKPerQuery int, threshold float64) ([]Result, error) {
	if len(queries) == 0 {
		return []Result{}, nil
	}

	perQuery := make([][]Result, len(queries))
	errs := make([]error, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallelism)

	for i, q := range queries {
		g.Go(func() error {
			results, err := r.Search(gctx, q, topKPerQuery, threshold)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn("sub-query failed, continuing",
					"query", q,
					"error", err.Error())
				errs[i] = err
				return nil
			}
			perQuery[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var firstErr error
	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed == len(queries) {
		return nil, firstErr
	}

	return MergeMax(perQuery), nil
}

// MergeMax deduplicates result sets by record id, keeping the entry with
// the highest score for each record, and returns them sorted descending.
func MergeMax(sets [][]Result) []Result {
	best := make(map[uint64]Result)
	for _, set := range sets {
		for _, res := range set {
			if cur, ok := best[res.RecordID]; !ok || res.Score > cur.Score {
				best[res.RecordID] = res
			}
		}
	}

	merged := make([]Result, 0, len(best))
	for _, res := range best {
		merged = append(merged, res)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].RecordID < merged[j].RecordID
	})
	return merged
}
