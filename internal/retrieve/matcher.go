package retrieve

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vulnscout/vulnscout/internal/chunk"
	"github.com/vulnscout/vulnscout/internal/embed"
	scouterr "github.com/vulnscout/vulnscout/internal/errors"
	"github.com/vulnscout/vulnscout/internal/rerank"
	"github.com/vulnscout/vulnscout/internal/vulndb"
)

// Match pairs a vulnerability record with the chunk that best supports it.
type Match struct {
	Record     vulndb.Record
	Chunk      chunk.Chunk
	Confidence float64

	// Supporting holds the merged retrieval results behind the match.
	Supporting []Result
}

// MatcherOptions bounds the matching pass.
type MatcherOptions struct {
	// MaxChunks caps how many chunks are queried against the store.
	MaxChunks int

	// CandidatesPerChunk is the store-side limit per chunk query.
	CandidatesPerChunk int

	// Threshold filters first-pass store hits.
	Threshold float64

	// ConfidenceThreshold gates promotion to a match.
	ConfidenceThreshold float64

	Decompose DecomposeOptions
}

// VulnMatcher turns chunks into vulnerability matches in three passes:
// store similarity search per chunk, decomposed fan-out against the local
// index to find each candidate's best supporting chunk, then a rerank over
// supporting snippets to settle confidence.
type VulnMatcher struct {
	retriever *Retriever
	embedder  embed.Embedder
	store     vulndb.Store
	reranker  rerank.Reranker
	opts      MatcherOptions
	logger    *slog.Logger
}

func NewVulnMatcher(retriever *Retriever, embedder embed.Embedder, vstore vulndb.Store, reranker rerank.Reranker, opts MatcherOptions, logger *slog.Logger) *VulnMatcher {
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = 200
	}
	if opts.CandidatesPerChunk <= 0 {
		opts.CandidatesPerChunk = 5
	}
	if reranker == nil {
		reranker = rerank.NoOpReranker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VulnMatcher{
		retriever: retriever,
		embedder:  embedder,
		store:     vstore,
		reranker:  reranker,
		opts:      opts,
		logger:    logger,
	}
}

type candidate struct {
	record     vulndb.Record
	firstScore float64
}

// MatchVulnerabilities queries the external store with each chunk and
// promotes candidates whose settled confidence clears the threshold. A
// single chunk or candidate failing is logged and skipped; the pass fails
// only when every chunk query fails.
func (m *VulnMatcher) MatchVulnerabilities(ctx context.Context, chunks []chunk.Chunk) ([]Match, error) {
	if len(chunks) == 0 {
		return []Match{}, nil
	}
	if len(chunks) > m.opts.MaxChunks {
		chunks = chunks[:m.opts.MaxChunks]
	}

	candidates, err := m.collectCandidates(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []Match{}, nil
	}

	allowance := m.opts.Decompose.SubQueryAllowance(len(candidates))

	var matches []Match
	for _, cand := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		match, ok, err := m.settle(ctx, cand, allowance)
		if err != nil {
			m.logger.Warn("candidate settlement failed, skipping",
				"vuln", cand.record.ID, "error", err)
			continue
		}
		if ok {
			matches = append(matches, match)
		}
	}
	if matches == nil {
		matches = []Match{}
	}
	return matches, nil
}

// collectCandidates queries the store once per chunk and dedupes records
// by id, keeping the highest first-pass score.
func (m *VulnMatcher) collectCandidates(ctx context.Context, chunks []chunk.Chunk) ([]candidate, error) {
	best := make(map[string]candidate)
	order := make([]string, 0)
	var failures int

	for _, c := range chunks {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		vec, err := m.embedder.Embed(ctx, c.Text, embed.KindDocument)
		if err != nil {
			failures++
			m.logger.Warn("chunk embedding failed, skipping", "file", c.File, "error", err)
			continue
		}
		records, err := m.store.SimilaritySearch(ctx, vec, m.opts.CandidatesPerChunk, m.opts.Threshold)
		if err != nil {
			failures++
			m.logger.Warn("store query failed, skipping chunk", "file", c.File, "error", err)
			continue
		}
		for _, rec := range records {
			cur, ok := best[rec.ID]
			if !ok {
				order = append(order, rec.ID)
			}
			if !ok || rec.Score > cur.firstScore {
				best[rec.ID] = candidate{record: rec, firstScore: rec.Score}
			}
		}
	}

	if failures == len(chunks) {
		return nil, scouterr.New(scouterr.ErrCodeSearchFailed,
			fmt.Sprintf("all %d chunk queries failed", len(chunks)), nil)
	}

	out := make([]candidate, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out, nil
}

// settle finds the candidate's best supporting chunks via decomposed
// fan-out, then reranks their snippets against the record text.
func (m *VulnMatcher) settle(ctx context.Context, cand candidate, allowance int) (Match, bool, error) {
	text := cand.record.Title
	if cand.record.Description != "" {
		text += ". " + cand.record.Description
	}
	queries := Decompose(text, allowance)

	supporting, err := m.retriever.SearchMulti(ctx, queries, m.opts.CandidatesPerChunk, m.opts.Threshold)
	if err != nil {
		return Match{}, false, err
	}
	if len(supporting) == 0 {
		return Match{}, false, nil
	}

	docs := make([]string, len(supporting))
	snippets := make([]chunk.Chunk, len(supporting))
	for i, res := range supporting {
		c, err := DecodeChunk(res.Metadata)
		if err != nil {
			return Match{}, false, err
		}
		snippets[i] = c
		docs[i] = c.Text
	}

	ranked, err := m.reranker.Rerank(ctx, text, docs, 1)
	if err != nil {
		return Match{}, false, err
	}
	if len(ranked) == 0 {
		return Match{}, false, nil
	}

	bestIdx := ranked[0].Index
	confidence := ranked[0].Score * supporting[bestIdx].Score
	if confidence < m.opts.ConfidenceThreshold {
		return Match{}, false, nil
	}

	return Match{
		Record:     cand.record,
		Chunk:      snippets[bestIdx],
		Confidence: confidence,
		Supporting: supporting,
	}, true, nil
}

// EncodeChunk serializes a chunk for storage as index metadata.
func EncodeChunk(c chunk.Chunk) ([]byte, error) {
	return json.Marshal(c)
}

// DecodeChunk is the inverse of EncodeChunk.
func DecodeChunk(data []byte) (chunk.Chunk, error) {
	var c chunk.Chunk
	if err := json.Unmarshal(data, &c); err != nil {
		return chunk.Chunk{}, scouterr.New(scouterr.ErrCodeInternal, "decode chunk metadata", err)
	}
	return c, nil
}
