// Package cache implements the shared content-addressed cache layer:
// a two-tier embedding cache, a TTL repository-metadata cache, and the
// index-reuse cache that decides rebuild vs. reuse per fingerprint.
//
// Cache reads and writes never raise to the caller: any I/O failure
// degrades to a cache miss.
package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EmbeddingCache maps (model, text) to an embedding vector across two
// tiers: a bounded in-process map with a hard capacity — once full,
// further inserts are rejected, not evicted — and an unbounded disk tier
// keyed identically. Entries are immutable once written; re-writing the
// same key is last-writer-wins.
type EmbeddingCache struct {
	dir    string
	memCap int

	mu  sync.RWMutex
	mem map[string][]float32
}

// NewEmbeddingCache creates the cache rooted at dir with the given
// in-memory capacity.
func NewEmbeddingCache(dir string, memCap int) *EmbeddingCache {
	return &EmbeddingCache{
		dir:    dir,
		memCap: memCap,
		mem:    make(map[string][]float32, memCap),
	}
}

// Key derives the cache key: hash(model ‖ text).
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for (model, text), or nil on miss.
func (c *EmbeddingCache) Get(model, text string) []float32 {
	key := Key(model, text)

	c.mu.RLock()
	vec, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		return vec
	}

	vec = c.readDisk(key)
	if vec != nil {
		c.memPut(key, vec)
	}
	return vec
}

// Put stores a vector in both tiers. The memory tier silently rejects the
// insert when full; the disk tier is unbounded.
func (c *EmbeddingCache) Put(model, text string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	key := Key(model, text)
	c.memPut(key, vec)
	c.writeDisk(key, vec)
}

// GetBatch looks up a batch of texts at once. The first return value has
// one slot per input text, nil for misses; the second lists the indices of
// the misses so the caller can issue exactly one upstream request covering
// only those.
func (c *EmbeddingCache) GetBatch(model string, texts []string) ([][]float32, []int) {
	vectors := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		vectors[i] = c.Get(model, text)
		if vectors[i] == nil {
			missing = append(missing, i)
		}
	}
	return vectors, missing
}

// PutBatch populates both tiers for the given texts and vectors. Length
// mismatches store the shorter prefix.
func (c *EmbeddingCache) PutBatch(model string, texts []string, vectors [][]float32) {
	n := len(texts)
	if len(vectors) < n {
		n = len(vectors)
	}
	for i := 0; i < n; i++ {
		c.Put(model, texts[i], vectors[i])
	}
}

// ClearOlderThan removes disk entries whose files are older than the given
// number of days. Returns the number removed.
func (c *EmbeddingCache) ClearOlderThan(days int) (int, error) {
	return sweepDir(c.dir, days)
}

// MemLen returns the current memory-tier size.
func (c *EmbeddingCache) MemLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mem)
}

func (c *EmbeddingCache) memPut(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.mem[key]; ok {
		c.mem[key] = vec
		return
	}
	// Hard capacity: reject rather than evict. Trades peak hit rate for
	// zero eviction bookkeeping.
	if len(c.mem) >= c.memCap {
		return
	}
	c.mem[key] = vec
}

func (c *EmbeddingCache) path(key string) string {
	return filepath.Join(c.dir, key+".gob")
}

func (c *EmbeddingCache) readDisk(key string) []float32 {
	f, err := os.Open(c.path(key))
	if err != nil {
		return nil
	}
	defer f.Close()

	var vec []float32
	if err := gob.NewDecoder(f).Decode(&vec); err != nil {
		slog.Debug("embedding cache entry unreadable, treating as miss",
			slog.String("key", key), slog.String("error", err.Error()))
		return nil
	}
	return vec
}

func (c *EmbeddingCache) writeDisk(key string, vec []float32) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		slog.Debug("embedding cache write skipped", slog.String("error", err.Error()))
		return
	}
	tmp := c.path(key) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		slog.Debug("embedding cache write skipped", slog.String("error", err.Error()))
		return
	}
	if err := gob.NewEncoder(f).Encode(vec); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return
	}
	if err := os.Rename(tmp, c.path(key)); err != nil {
		_ = os.Remove(tmp)
	}
}

// sweepDir removes regular files under dir older than days. Shared by the
// age-based sweeps of the disk-backed caches.
func sweepDir(dir string, days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
