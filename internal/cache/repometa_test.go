package cache

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoMetadataCache_RoundTrip(t *testing.T) {
	c := NewRepoMetadataCache(t.TempDir())
	result := json.RawMessage(`{"primary_language":"go"}`)

	c.Set("https://example.com/repo.git", result, "rev1")

	got := c.Get("https://example.com/repo.git", "rev1", time.Hour)
	assert.JSONEq(t, string(result), string(got))
}

func TestRepoMetadataCache_MissForUnknown(t *testing.T) {
	c := NewRepoMetadataCache(t.TempDir())
	assert.Nil(t, c.Get("https://example.com/repo.git", "rev1", time.Hour))
}

func TestRepoMetadataCache_RevisionsIndependent(t *testing.T) {
	c := NewRepoMetadataCache(t.TempDir())

	c.Set("url", json.RawMessage(`{"v":1}`), "rev1")
	c.Set("url", json.RawMessage(`{"v":2}`), "rev2")

	assert.JSONEq(t, `{"v":1}`, string(c.Get("url", "rev1", time.Hour)))
	assert.JSONEq(t, `{"v":2}`, string(c.Get("url", "rev2", time.Hour)))
}

func TestRepoMetadataCache_LazyExpiry(t *testing.T) {
	c := NewRepoMetadataCache(t.TempDir())
	c.Set("url", json.RawMessage(`{}`), "rev")

	path := c.path("url", "rev")
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, stale, stale))

	assert.Nil(t, c.Get("url", "rev", time.Hour), "entry past maxAge is a miss")
	assert.NotNil(t, c.Get("url", "rev", 3*time.Hour), "larger maxAge still hits")
}

func TestRepoMetadataCache_ClearOlderThan(t *testing.T) {
	c := NewRepoMetadataCache(t.TempDir())
	c.Set("url", json.RawMessage(`{}`), "old")
	c.Set("url", json.RawMessage(`{}`), "new")

	stale := time.Now().AddDate(0, 0, -31)
	require.NoError(t, os.Chtimes(c.path("url", "old"), stale, stale))

	removed, err := c.ClearOlderThan(30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Nil(t, c.Get("url", "old", 100*24*time.Hour))
}
