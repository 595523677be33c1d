package cache

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RepoMetadataCache maps (repository URL, revision) to a structural-analysis
// result. Expiry is evaluated lazily at read time against the cache file's
// write time; there is no background sweep thread. Distinct revisions of the
// same repository produce distinct, independently-expiring entries.
type RepoMetadataCache struct {
	dir string
}

// metaEnvelope is the on-disk shape of one entry.
type metaEnvelope struct {
	URL      string          `json:"url"`
	Revision string          `json:"revision"`
	Result   json.RawMessage `json:"result"`
}

// NewRepoMetadataCache creates the cache rooted at dir.
func NewRepoMetadataCache(dir string) *RepoMetadataCache {
	return &RepoMetadataCache{dir: dir}
}

// Get returns the cached result for (repoURL, revision) when its file is
// younger than maxAge, or nil on miss or expiry.
func (c *RepoMetadataCache) Get(repoURL, revision string, maxAge time.Duration) json.RawMessage {
	path := c.path(repoURL, revision)

	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if time.Since(info.ModTime()) > maxAge {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var env metaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Debug("repo metadata entry unreadable, treating as miss",
			slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}
	return env.Result
}

// Set stores result under (repoURL, revision). Failures degrade silently;
// the next Get is simply a miss.
func (c *RepoMetadataCache) Set(repoURL string, result json.RawMessage, revision string) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		slog.Debug("repo metadata write skipped", slog.String("error", err.Error()))
		return
	}

	env := metaEnvelope{URL: repoURL, Revision: revision, Result: result}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	path := c.path(repoURL, revision)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
	}
}

// ClearOlderThan is the coarser disk sweep, independent of the per-read TTL.
func (c *RepoMetadataCache) ClearOlderThan(days int) (int, error) {
	return sweepDir(c.dir, days)
}

func (c *RepoMetadataCache) path(repoURL, revision string) string {
	return filepath.Join(c.dir, Key(repoURL, revision)+".json")
}
