package run

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/vulnscout/vulnscout/internal/cache"
	"github.com/vulnscout/vulnscout/internal/chunk"
	"github.com/vulnscout/vulnscout/internal/config"
	"github.com/vulnscout/vulnscout/internal/embed"
	"github.com/vulnscout/vulnscout/internal/rerank"
	"github.com/vulnscout/vulnscout/internal/validate"
	"github.com/vulnscout/vulnscout/internal/vcsx"
	"github.com/vulnscout/vulnscout/internal/vulndb"
)

// Services is the single explicit context object holding every
// collaborator an orchestrator stage needs. It is constructed once per
// process and passed in; there is no package-level mutable state, which
// keeps per-test isolation trivial.
type Services struct {
	Config *config.Config
	Logger *slog.Logger

	VCS      vcsx.Client
	Chunker  *chunk.Chunker
	Embedder embed.Embedder

	Embeddings *cache.EmbeddingCache
	RepoMeta   *cache.RepoMetadataCache
	Reuse      *cache.IndexReuseCache

	VulnStore vulndb.Store
	Reranker  rerank.Reranker
	Validator validate.Provider

	Runs     *RunStore
	Locks    *BuildLock
	Notifier *Notifier
}

// NewServices wires the default production collaborators from config.
// The validation provider is left nil when no API key is available; the
// orchestrator downgrades the validate stage accordingly.
func NewServices(cfg *config.Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	runs, err := OpenRunStore(cfg.RunsDBPath())
	if err != nil {
		return nil, err
	}

	embeddings := cache.NewEmbeddingCache(
		filepath.Join(cfg.Cache.Dir, "embeddings"), cfg.Cache.EmbeddingMemoryCap)

	httpEmbedder := embed.NewHTTPEmbedder(embed.HTTPConfig{
		Endpoint:      cfg.Providers.Embedding.Endpoint,
		Model:         cfg.Providers.Embedding.Model,
		Dimensions:    cfg.Providers.Embedding.Dimensions,
		BatchSize:     cfg.Providers.Embedding.BatchSize,
		Timeout:       time.Duration(cfg.Providers.Embedding.TimeoutSeconds) * time.Second,
		RatePerSecond: cfg.Providers.Embedding.RatePerSecond,
	})

	var reranker rerank.Reranker = rerank.NoOpReranker{}
	if cfg.Providers.Rerank.Enabled && cfg.Providers.Rerank.Endpoint != "" {
		reranker = rerank.NewHTTPReranker(cfg.Providers.Rerank)
	}

	var validator validate.Provider
	if p, err := validate.NewAnthropicProvider(cfg.Providers.Validation); err == nil {
		validator = p
	} else {
		logger.Warn("validation provider unavailable", "error", err)
	}

	return &Services{
		Config:   cfg,
		Logger:   logger,
		VCS:      vcsx.NewGitClient(cfg.ClonesDir(), cfg.Run.CloneDepth),
		Chunker: chunk.New(chunk.Options{
			MaxFiles:         cfg.Chunking.MaxFiles,
			MaxChunksPerFile: cfg.Chunking.MaxChunksPerFile,
			MaxFileSize:      int64(cfg.Chunking.MaxFileSizeKB) * 1024,
			WindowLines:      cfg.Chunking.WindowLines,
			WindowOverlap:    cfg.Chunking.WindowOverlap,
		}),
		Embedder:   embed.NewCachedEmbedder(httpEmbedder, embeddings, logger),
		Embeddings: embeddings,
		RepoMeta:   cache.NewRepoMetadataCache(filepath.Join(cfg.Cache.Dir, "repometa")),
		Reuse:      cache.NewIndexReuseCache(filepath.Join(cfg.Cache.Dir, "indexes")),
		VulnStore:  vulndb.NewHTTPStore(cfg.Providers.VulnDB, logger),
		Reranker:   reranker,
		Validator:  validator,
		Runs:       runs,
		Locks:      NewBuildLock(filepath.Join(cfg.Cache.Dir, "locks")),
		Notifier:   NewNotifier(cfg.Run.ProgressBuffer),
	}, nil
}

// Close releases held resources.
func (s *Services) Close() error {
	s.Notifier.Close()
	if s.Embedder != nil {
		s.Embedder.Close()
	}
	if s.Chunker != nil {
		s.Chunker.Close()
	}
	if s.Runs != nil {
		return s.Runs.Close()
	}
	return nil
}
