package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ip", cfg.Index.Metric)
	assert.Equal(t, TierStandard, cfg.Run.Tier)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Retrieval.TopK, cfg.Retrieval.TopK)
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
index:
  metric: l2
  checkpoint_every: 100
retrieval:
  top_k: 25
run:
  tier: deep
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "l2", cfg.Index.Metric)
	assert.Equal(t, 100, cfg.Index.CheckpointEvery)
	assert.Equal(t, 25, cfg.Retrieval.TopK)
	assert.Equal(t, TierDeep, cfg.Run.Tier)
	// Untouched fields keep defaults.
	assert.Equal(t, Default().Chunking.WindowLines, cfg.Chunking.WindowLines)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  metric: cosine\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.metric")
}

func TestValidate_TierChecked(t *testing.T) {
	cfg := Default()
	cfg.Run.Tier = "turbo"
	assert.Error(t, cfg.Validate())
}

func TestApplyEnv_EndpointOverride(t *testing.T) {
	t.Setenv("VULNSCOUT_EMBED_ENDPOINT", "http://example:9999")
	t.Setenv("VULNSCOUT_RERANK_ENDPOINT", "http://rerank:8080")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://example:9999", cfg.Providers.Embedding.Endpoint)
	assert.True(t, cfg.Providers.Rerank.Enabled)
}
