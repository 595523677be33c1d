package cache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/vulnscout/vulnscout/internal/fingerprint"
)

// Resolution names the persisted index pair for one (repoURL, fingerprint)
// key and whether it can be reused as-is.
type Resolution struct {
	// Key is hash(repoURL ‖ fingerprint), the index directory name.
	Key string

	// Fingerprint is the tree state the key was computed from.
	Fingerprint string

	// IndexPath and MetaPath are where the index pair lives (or will live).
	IndexPath string
	MetaPath  string

	// KeywordPath is where the optional keyword index lives.
	KeywordPath string

	// Valid holds iff both persisted files exist and the index file is
	// non-empty. When true the caller skips chunking and embedding
	// entirely and loads the existing index.
	Valid bool
}

// IndexReuseCache maps (repository URL, fingerprint) to an existing
// persisted vector index. Validity is a function purely of the pair's cache
// directory, never of wall-clock time. This reuse check is the system's
// central performance invariant: re-analyzing an unchanged repository costs
// O(1) disk reads instead of O(files) chunk/embed round trips.
type IndexReuseCache struct {
	dir string
}

// NewIndexReuseCache creates the cache rooted at dir.
func NewIndexReuseCache(dir string) *IndexReuseCache {
	return &IndexReuseCache{dir: dir}
}

// Resolve fingerprints repoPath fresh (cheap, never itself cached) and
// reports whether a valid persisted index exists for (repoURL, fingerprint).
func (c *IndexReuseCache) Resolve(ctx context.Context, repoURL, repoPath string) (Resolution, error) {
	fp, err := fingerprint.Compute(ctx, repoPath)
	if err != nil {
		return Resolution{}, err
	}
	return c.resolveFingerprint(repoURL, fp), nil
}

func (c *IndexReuseCache) resolveFingerprint(repoURL, fp string) Resolution {
	key := Key(repoURL, fp)
	dir := filepath.Join(c.dir, key)

	res := Resolution{
		Key:         key,
		Fingerprint: fp,
		IndexPath:   filepath.Join(dir, "vectors.hnsw"),
		MetaPath:    filepath.Join(dir, "vectors.hnsw.meta"),
		KeywordPath: filepath.Join(dir, "keyword.bleve"),
	}

	idx, err := os.Stat(res.IndexPath)
	if err != nil || idx.Size() == 0 {
		// Missing or zero-length index is "no index exists", never corruption.
		return res
	}
	if _, err := os.Stat(res.MetaPath); err != nil {
		return res
	}
	res.Valid = true
	return res
}

// Dir returns the root directory of all persisted indexes.
func (c *IndexReuseCache) Dir() string {
	return c.dir
}
