package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/vulnscout/vulnscout/internal/cache"
	"github.com/vulnscout/vulnscout/internal/chunk"
	"github.com/vulnscout/vulnscout/internal/embed"
	scouterr "github.com/vulnscout/vulnscout/internal/errors"
	"github.com/vulnscout/vulnscout/internal/report"
	"github.com/vulnscout/vulnscout/internal/retrieve"
	"github.com/vulnscout/vulnscout/internal/store"
	"github.com/vulnscout/vulnscout/internal/vcsx"
)

// Stage labels in execution order.
const (
	StageAcquire  = "acquire"
	StageResolve  = "resolve-index"
	StageRetrieve = "retrieve"
	StageValidate = "validate"
	StageReport   = "report"
	StageFinalize = "finalize"
)

// Orchestrator executes analysis runs through the ordered stage sequence.
// A stage-level failure transitions the run to failed, records the error,
// halts later stages, and still runs cleanup.
type Orchestrator struct {
	svc *Services
}

func NewOrchestrator(svc *Services) *Orchestrator {
	return &Orchestrator{svc: svc}
}

// workspace is the local tree a run operates on. Cache-backed copies
// (trees the caller handed us) are never removed by cleanup; only
// disposable clones are.
type workspace struct {
	path       string
	revision   string
	disposable bool
}

// resolved is the outcome of the resolve-index stage.
type resolved struct {
	index   *store.VectorIndex
	keyword *store.KeywordIndex
	chunks  []chunk.Chunk
	reused  bool
}

// Execute runs a full analysis of repoURL and returns the report. The run
// record is persisted at every state change, so a reader polling the store
// sees pending, running with advancing stages, then a terminal state.
func (o *Orchestrator) Execute(ctx context.Context, repoURL, branch string) (*report.Report, error) {
	r := NewAnalysisRun(repoURL, branch)
	if err := o.svc.Runs.Create(r); err != nil {
		return nil, err
	}

	if err := r.Transition(StatusRunning); err != nil {
		return nil, err
	}
	o.persist(r)

	rep, err := o.execute(ctx, r)
	if err != nil {
		r.Error = err.Error()
		if terr := r.Transition(StatusFailed); terr == nil {
			o.persist(r)
		}
		o.svc.Logger.Error("run failed", "run", r.ID, "stage", r.Stage, "error", err)
		return nil, err
	}

	if err := r.Transition(StatusCompleted); err != nil {
		return nil, err
	}
	r.SetProgress(StageFinalize, 100)
	o.persist(r)
	return rep, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *AnalysisRun) (rep *report.Report, err error) {
	started := time.Now()

	o.progress(r, StageAcquire, 5, "acquiring source")
	ws, err := o.acquire(ctx, r)
	if err != nil {
		return nil, err
	}
	defer o.cleanup(ws)

	o.progress(r, StageResolve, 20, "resolving index")
	res, err := o.resolveIndex(ctx, r, ws)
	if err != nil {
		return nil, err
	}
	if res.keyword != nil {
		defer res.keyword.Close()
	}

	rep = &report.Report{
		RunID:       r.ID,
		RepoURL:     r.RepoURL,
		Revision:    ws.revision,
		GeneratedAt: time.Now().UTC(),
		Summary: report.Summary{
			FilesScanned:  r.FileCount,
			ChunksIndexed: len(res.chunks),
			IndexReused:   res.reused,
		},
		Findings: []report.Finding{},
	}

	// A tree with nothing to analyze completes with zero findings.
	if len(res.chunks) > 0 {
		o.progress(r, StageRetrieve, 60, "matching vulnerability records")
		matches, err := o.retrieveCandidates(ctx, res)
		if err != nil {
			return nil, err
		}

		o.progress(r, StageValidate, 80, "validating candidates")
		rep.Findings, err = o.validateMatches(ctx, matches)
		if err != nil {
			return nil, err
		}
	}

	o.progress(r, StageReport, 90, "assembling report")
	rep.Summary.DurationMS = time.Since(started).Milliseconds()
	rep.Finalize()
	r.FindingCount = rep.Summary.FindingCount
	if _, err := rep.WriteJSON(o.svc.Config.ReportsDir()); err != nil {
		return nil, err
	}

	o.progress(r, StageFinalize, 95, "finalizing")
	return rep, nil
}

// acquire obtains a local working copy and refreshes the structural
// metadata cache for (url, revision).
func (o *Orchestrator) acquire(ctx context.Context, r *AnalysisRun) (workspace, error) {
	ws := workspace{}

	if info, err := os.Stat(r.RepoURL); err == nil && info.IsDir() {
		// Caller-provided local tree; cleanup must leave it alone.
		ws.path = r.RepoURL
	} else {
		path, err := o.svc.VCS.Clone(ctx, r.RepoURL, r.Branch)
		if err != nil {
			return ws, err
		}
		ws.path = path
		ws.disposable = true
	}

	if rev, err := vcsx.HeadRevision(ctx, ws.path); err == nil {
		ws.revision = rev
	}

	meta, err := o.repoMetadata(r.RepoURL, ws)
	if err != nil {
		return ws, err
	}
	r.FileCount = meta.TotalFiles
	o.persist(r)

	if meta.TotalFiles == 0 {
		o.svc.Logger.Info("repository has no analyzable files", "run", r.ID)
	}
	return ws, nil
}

// repoMetadata serves the structural analysis from the TTL cache, keyed by
// (url, revision), recomputing on miss or when the tree has no revision.
func (o *Orchestrator) repoMetadata(repoURL string, ws workspace) (*chunk.RepoMetadata, error) {
	if ws.revision != "" {
		if raw := o.svc.RepoMeta.Get(repoURL, ws.revision, o.svc.Config.RepoMetaTTL()); raw != nil {
			var meta chunk.RepoMetadata
			if err := json.Unmarshal(raw, &meta); err == nil {
				return &meta, nil
			}
		}
	}

	meta, err := chunk.AnalyzeStructure(ws.path)
	if err != nil {
		return nil, err
	}

	if ws.revision != "" {
		if raw, err := json.Marshal(meta); err == nil {
			o.svc.RepoMeta.Set(repoURL, raw, ws.revision)
		}
	}
	return meta, nil
}

// resolveIndex reuses a valid persisted index for the tree's fingerprint
// or builds one under the per-fingerprint lock. The double resolve inside
// the lock picks up an index a concurrent run finished while we waited.
func (o *Orchestrator) resolveIndex(ctx context.Context, r *AnalysisRun, ws workspace) (resolved, error) {
	first, err := o.svc.Reuse.Resolve(ctx, r.RepoURL, ws.path)
	if err != nil {
		return resolved{}, err
	}

	var out resolved
	err = o.svc.Locks.WithLock(ctx, first.Key, func() error {
		res, err := o.svc.Reuse.Resolve(ctx, r.RepoURL, ws.path)
		if err != nil {
			return err
		}

		if res.Valid {
			idx, err := store.Load(res.IndexPath)
			if err == nil {
				out, err = o.openResolved(idx, res)
				if err == nil {
					return nil
				}
			}
			if !scouterr.IsAbsent(err) {
				return err
			}
			// Absence after a positive resolve means the pair vanished
			// underneath us; fall through to a rebuild.
		}
		out, err = o.buildIndex(ctx, r, ws, res)
		return err
	})
	if err != nil {
		return resolved{}, err
	}

	r.ChunkCount = len(out.chunks)
	o.persist(r)
	return out, nil
}

// openResolved loads the chunks back out of a reused index's metadata.
func (o *Orchestrator) openResolved(idx *store.VectorIndex, res cache.Resolution) (resolved, error) {
	blobs := idx.AllMetadata()
	chunks := make([]chunk.Chunk, 0, len(blobs))
	for _, blob := range blobs {
		c, err := retrieve.DecodeChunk(blob)
		if err != nil {
			return resolved{}, err
		}
		chunks = append(chunks, c)
	}

	out := resolved{index: idx, chunks: chunks, reused: true}
	if o.svc.Config.Index.Keyword {
		if kw, err := store.OpenKeywordIndex(res.KeywordPath); err == nil {
			out.keyword = kw
		} else {
			o.svc.Logger.Debug("keyword index unavailable for reuse", "error", err)
		}
	}
	o.svc.Logger.Info("index reused", "records", idx.Count())
	return out, nil
}

// buildIndex chunks, embeds, and persists a fresh index pair.
func (o *Orchestrator) buildIndex(ctx context.Context, r *AnalysisRun, ws workspace, res cache.Resolution) (resolved, error) {
	chunks, err := o.svc.Chunker.Process(ctx, ws.path)
	if err != nil {
		return resolved{}, err
	}
	if len(chunks) == 0 {
		return resolved{chunks: nil}, nil
	}

	o.progress(r, StageResolve, 30, fmt.Sprintf("embedding %d chunks", len(chunks)))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := o.svc.Embedder.EmbedBatch(ctx, texts, embed.KindDocument)
	if err != nil {
		return resolved{}, err
	}

	metadata := make([][]byte, len(chunks))
	for i, c := range chunks {
		blob, err := retrieve.EncodeChunk(c)
		if err != nil {
			return resolved{}, err
		}
		metadata[i] = blob
	}

	idx, err := store.New(store.Config{
		Dimensions:      len(vectors[0]),
		Metric:          store.Metric(o.svc.Config.Index.Metric),
		M:               o.svc.Config.Index.M,
		EfSearch:        o.svc.Config.Index.EfSearch,
		Path:            res.IndexPath,
		CheckpointEvery: o.svc.Config.Index.CheckpointEvery,
	})
	if err != nil {
		return resolved{}, err
	}

	o.progress(r, StageResolve, 45, "building index")
	ids, err := idx.Add(vectors, metadata)
	if err != nil {
		return resolved{}, err
	}
	if err := idx.Save(); err != nil {
		return resolved{}, err
	}

	out := resolved{index: idx, chunks: chunks}
	if o.svc.Config.Index.Keyword {
		kw, err := store.NewKeywordIndex(res.KeywordPath)
		if err != nil {
			o.svc.Logger.Warn("keyword index build failed, continuing without", "error", err)
		} else {
			files := make([]string, len(chunks))
			for i, c := range chunks {
				files[i] = c.File
			}
			if err := kw.Index(ids, texts, files); err != nil {
				o.svc.Logger.Warn("keyword indexing failed, continuing without", "error", err)
				kw.Close()
			} else {
				out.keyword = kw
			}
		}
	}

	o.svc.Logger.Info("index built", "chunks", len(chunks), "dimensions", idx.Dimensions())
	return out, nil
}

// retrieveCandidates matches the indexed chunks against the external
// vulnerability store.
func (o *Orchestrator) retrieveCandidates(ctx context.Context, res resolved) ([]retrieve.Match, error) {
	cfg := o.svc.Config.Retrieval

	retriever := retrieve.NewRetriever(res.index, res.keyword, o.svc.Embedder, retrieve.Options{
		Parallelism:  cfg.Parallelism,
		KeywordBoost: cfg.KeywordBoost,
	}, o.svc.Logger)

	matcher := retrieve.NewVulnMatcher(retriever, o.svc.Embedder, o.svc.VulnStore, o.svc.Reranker,
		retrieve.MatcherOptions{
			MaxChunks:           cfg.MaxChunksMatched,
			CandidatesPerChunk:  cfg.TopKPerQuery,
			Threshold:           cfg.Threshold,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			Decompose: retrieve.DecomposeOptions{
				MaxSubQueries: cfg.MaxSubQueries,
				Budget:        cfg.DecompositionBudget,
			},
		}, o.svc.Logger)

	return matcher.MatchVulnerabilities(ctx, res.chunks)
}

// cleanup removes a disposable working copy. Cache-backed trees are never
// touched.
func (o *Orchestrator) cleanup(ws workspace) {
	if !ws.disposable || ws.path == "" {
		return
	}
	if err := os.RemoveAll(ws.path); err != nil {
		o.svc.Logger.Warn("workspace cleanup failed", "path", ws.path, "error", err)
	}
}

// progress records a stage transition and notifies observers without
// blocking.
func (o *Orchestrator) progress(r *AnalysisRun, stage string, percent int, message string) {
	r.SetProgress(stage, percent)
	o.persist(r)
	o.svc.Notifier.Notify(ProgressEvent{
		RunID:   r.ID,
		Percent: r.Progress,
		Stage:   stage,
		Message: message,
	})
}

// persist best-effort saves the run record; persistence failures are
// logged, not fatal to the run.
func (o *Orchestrator) persist(r *AnalysisRun) {
	if err := o.svc.Runs.Update(r); err != nil {
		o.svc.Logger.Warn("run persistence failed", "run", r.ID, "error", err)
	}
}
