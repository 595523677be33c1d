// Package config provides configuration loading and validation for vulnscout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Run tiers gate how much work the validate stage performs.
const (
	TierQuick    = "quick"    // no validation, score-threshold promotion only
	TierStandard = "standard" // single-shot validation per candidate
	TierDeep     = "deep"     // bounded investigation loop per candidate
)

// Config is the complete vulnscout configuration.
type Config struct {
	Version   int             `yaml:"version"`
	DataDir   string          `yaml:"data_dir"`
	Cache     CacheConfig     `yaml:"cache"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Providers ProvidersConfig `yaml:"providers"`
	Run       RunConfig       `yaml:"run"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CacheConfig configures the shared cache layer.
type CacheConfig struct {
	// Dir is the root directory for all caches (embeddings, repo metadata, indexes).
	Dir string `yaml:"dir"`

	// EmbeddingMemoryCap is the hard capacity of the in-process embedding tier.
	// Once full, further inserts are rejected, not evicted.
	EmbeddingMemoryCap int `yaml:"embedding_memory_cap"`

	// QueryCacheSize is the LRU size for query embeddings.
	QueryCacheSize int `yaml:"query_cache_size"`

	// RepoMetaTTLHours is the max age of a repository-metadata entry at read time.
	RepoMetaTTLHours int `yaml:"repo_meta_ttl_hours"`

	// SweepAgeDays is the age threshold for the coarse disk sweep.
	SweepAgeDays int `yaml:"sweep_age_days"`
}

// ChunkingConfig bounds the chunker.
type ChunkingConfig struct {
	MaxFiles         int `yaml:"max_files"`
	MaxChunksPerFile int `yaml:"max_chunks_per_file"`
	MaxFileSizeKB    int `yaml:"max_file_size_kb"`
	WindowLines      int `yaml:"window_lines"`
	WindowOverlap    int `yaml:"window_overlap"`
}

// IndexConfig configures the local vector index.
type IndexConfig struct {
	// Metric is "ip" (inner product on normalized vectors) or "l2".
	Metric string `yaml:"metric"`

	// CheckpointEvery bounds data loss: the index saves itself after this
	// many inserted records.
	CheckpointEvery int `yaml:"checkpoint_every"`

	// M and EfSearch are HNSW graph parameters.
	M        int `yaml:"m"`
	EfSearch int `yaml:"ef_search"`

	// Keyword enables the bleve keyword index built next to the vector index.
	Keyword bool `yaml:"keyword"`
}

// RetrievalConfig tunes candidate retrieval and promotion.
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k"`
	TopKPerQuery        int     `yaml:"top_k_per_query"`
	Threshold           float64 `yaml:"threshold"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MaxSubQueries       int     `yaml:"max_sub_queries"`

	// DecompositionBudget caps (candidates considered x sub-queries per candidate).
	DecompositionBudget int `yaml:"decomposition_budget"`

	MaxChunksMatched int     `yaml:"max_chunks_matched"`
	Parallelism      int     `yaml:"parallelism"`
	KeywordBoost     float64 `yaml:"keyword_boost"`
}

// ProvidersConfig groups the external provider endpoints.
type ProvidersConfig struct {
	Embedding  EmbeddingProviderConfig `yaml:"embedding"`
	VulnDB     VulnDBConfig            `yaml:"vulndb"`
	Rerank     RerankConfig            `yaml:"rerank"`
	Validation ValidationConfig        `yaml:"validation"`
}

// EmbeddingProviderConfig configures the embedding provider.
type EmbeddingProviderConfig struct {
	Endpoint       string  `yaml:"endpoint"`
	Model          string  `yaml:"model"`
	Dimensions     int     `yaml:"dimensions"`
	BatchSize      int     `yaml:"batch_size"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
}

// VulnDBConfig configures the external vulnerability-record vector store.
type VulnDBConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Collection     string `yaml:"collection"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	// StrictDimensions turns a width mismatch into a hard input error instead
	// of the default pad/truncate adaptation.
	StrictDimensions bool `yaml:"strict_dimensions"`
}

// RerankConfig configures the second-pass reranker.
type RerankConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ValidationConfig configures the validation provider.
type ValidationConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// RunConfig configures run execution.
type RunConfig struct {
	Tier           string `yaml:"tier"`
	StepBudget     int    `yaml:"step_budget"`
	ProgressBuffer int    `yaml:"progress_buffer"`
	CloneDepth     int    `yaml:"clone_depth"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the default configuration rooted under the user home dir.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".vulnscout")
	return &Config{
		Version: 1,
		DataDir: base,
		Cache: CacheConfig{
			Dir:                filepath.Join(base, "cache"),
			EmbeddingMemoryCap: 4096,
			QueryCacheSize:     1000,
			RepoMetaTTLHours:   24,
			SweepAgeDays:       30,
		},
		Chunking: ChunkingConfig{
			MaxFiles:         2000,
			MaxChunksPerFile: 50,
			MaxFileSizeKB:    1024,
			WindowLines:      120,
			WindowOverlap:    15,
		},
		Index: IndexConfig{
			Metric:          "ip",
			CheckpointEvery: 500,
			M:               16,
			EfSearch:        40,
			Keyword:         true,
		},
		Retrieval: RetrievalConfig{
			TopK:                10,
			TopKPerQuery:        10,
			Threshold:           0.25,
			ConfidenceThreshold: 0.6,
			MaxSubQueries:       4,
			DecompositionBudget: 40,
			MaxChunksMatched:    200,
			Parallelism:         4,
			KeywordBoost:        0.1,
		},
		Providers: ProvidersConfig{
			Embedding: EmbeddingProviderConfig{
				Endpoint:       "http://localhost:11434",
				Model:          "embeddinggemma",
				BatchSize:      32,
				TimeoutSeconds: 120,
				RatePerSecond:  10,
			},
			VulnDB: VulnDBConfig{
				Collection:     "vulnerabilities",
				TimeoutSeconds: 30,
			},
			Rerank: RerankConfig{
				TimeoutSeconds: 30,
			},
			Validation: ValidationConfig{
				Model:     "claude-sonnet-4-5",
				MaxTokens: 1024,
				APIKeyEnv: "ANTHROPIC_API_KEY",
			},
		},
		Run: RunConfig{
			Tier:           TierStandard,
			StepBudget:     8,
			ProgressBuffer: 64,
			CloneDepth:     1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, layering it over defaults and applying
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides for endpoints.
func (c *Config) applyEnv() {
	if v := os.Getenv("VULNSCOUT_EMBED_ENDPOINT"); v != "" {
		c.Providers.Embedding.Endpoint = v
	}
	if v := os.Getenv("VULNSCOUT_VULNDB_ENDPOINT"); v != "" {
		c.Providers.VulnDB.Endpoint = v
	}
	if v := os.Getenv("VULNSCOUT_RERANK_ENDPOINT"); v != "" {
		c.Providers.Rerank.Endpoint = v
		c.Providers.Rerank.Enabled = true
	}
	if v := os.Getenv("VULNSCOUT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Index.Metric != "ip" && c.Index.Metric != "l2" {
		return fmt.Errorf("index.metric must be \"ip\" or \"l2\", got %q", c.Index.Metric)
	}
	if c.Index.CheckpointEvery <= 0 {
		return fmt.Errorf("index.checkpoint_every must be positive")
	}
	if c.Chunking.WindowOverlap >= c.Chunking.WindowLines {
		return fmt.Errorf("chunking.window_overlap (%d) must be smaller than window_lines (%d)",
			c.Chunking.WindowOverlap, c.Chunking.WindowLines)
	}
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("retrieval.threshold must be in [0, 1]")
	}
	if c.Retrieval.ConfidenceThreshold < 0 || c.Retrieval.ConfidenceThreshold > 1 {
		return fmt.Errorf("retrieval.confidence_threshold must be in [0, 1]")
	}
	if c.Retrieval.DecompositionBudget <= 0 {
		return fmt.Errorf("retrieval.decomposition_budget must be positive")
	}
	switch c.Run.Tier {
	case TierQuick, TierStandard, TierDeep:
	default:
		return fmt.Errorf("run.tier must be one of quick, standard, deep; got %q", c.Run.Tier)
	}
	return nil
}

// RepoMetaTTL returns the repository-metadata TTL as a duration.
func (c *Config) RepoMetaTTL() time.Duration {
	return time.Duration(c.Cache.RepoMetaTTLHours) * time.Hour
}

// RunsDBPath returns the path of the SQLite run store.
func (c *Config) RunsDBPath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// ReportsDir returns the directory reports are written to.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.DataDir, "reports")
}

// ClonesDir returns the directory for disposable working copies.
func (c *Config) ClonesDir() string {
	return filepath.Join(c.DataDir, "clones")
}
