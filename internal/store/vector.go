// Package store implements the persisted similarity indexes: an append-only
// vector index with a parallel metadata table, and an optional keyword index
// used for hybrid score boosting.
package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	scouterr "github.com/vulnscout/vulnscout/internal/errors"
)

// Metric selects the similarity function, fixed for the index's lifetime.
type Metric string

const (
	// MetricIP is inner-product similarity on length-normalized vectors,
	// equivalent to cosine similarity.
	MetricIP Metric = "ip"

	// MetricL2 is raw Euclidean distance.
	MetricL2 Metric = "l2"
)

// Config configures a VectorIndex.
type Config struct {
	// Dimensions is the fixed vector width. Inserts of any other width are rejected.
	Dimensions int

	// Metric is chosen once per index.
	Metric Metric

	// M and EfSearch are HNSW graph parameters.
	M        int
	EfSearch int

	// Path is where Save persists the index. Empty disables checkpointing.
	Path string

	// CheckpointEvery auto-saves after this many inserted records to bound
	// data loss on an unexpected stop. Zero disables.
	CheckpointEvery int
}

// Result is one ranked search hit.
type Result struct {
	ID       uint64
	Score    float32
	Distance float32
	Metadata []byte
}

// VectorIndex is an append-only nearest-neighbor structure over fixed-width
// vectors plus parallel metadata. Record ids are sequential, contiguous, and
// equal to insertion order; they are never reused or reassigned.
type VectorIndex struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	cfg      Config
	metadata [][]byte
	next     uint64

	sinceCheckpoint int
	readOnly        bool
}

// indexMeta is the gob sidecar persisted next to the graph file.
type indexMeta struct {
	Dimensions int
	Metric     Metric
	Next       uint64
	Metadata   [][]byte
}

// New creates an empty index.
func New(cfg Config) (*VectorIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricIP
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 40
	}

	graph := hnsw.NewGraph[uint64]()
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25
	switch cfg.Metric {
	case MetricL2:
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}

	return &VectorIndex{graph: graph, cfg: cfg}, nil
}

// Add appends vectors with their metadata and returns the assigned ids,
// which run from the pre-insert record count onward. It rejects a
// vector/metadata length mismatch and any vector whose width differs from
// the configured dimension.
func (x *VectorIndex) Add(vectors [][]float32, metadata [][]byte) ([]uint64, error) {
	if len(vectors) != len(metadata) {
		return nil, scouterr.New(scouterr.ErrCodeInvalidInput,
			fmt.Sprintf("vectors and metadata length mismatch: %d vs %d", len(vectors), len(metadata)), nil)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.readOnly {
		return nil, scouterr.New(scouterr.ErrCodeInvalidInput, "index is read-only", nil)
	}

	for _, v := range vectors {
		if len(v) != x.cfg.Dimensions {
			return nil, scouterr.New(scouterr.ErrCodeDimensionMismatch,
				fmt.Sprintf("expected vector width %d, got %d", x.cfg.Dimensions, len(v)), nil)
		}
	}

	ids := make([]uint64, len(vectors))
	for i, v := range vectors {
		vec := make([]float32, len(v))
		copy(vec, v)
		if x.cfg.Metric == MetricIP {
			normalizeInPlace(vec)
		}

		id := x.next
		x.next++
		x.graph.Add(hnsw.MakeNode(id, vec))
		x.metadata = append(x.metadata, metadata[i])
		ids[i] = id
	}

	x.sinceCheckpoint += len(vectors)
	if x.cfg.Path != "" && x.cfg.CheckpointEvery > 0 && x.sinceCheckpoint >= x.cfg.CheckpointEvery {
		if err := x.saveLocked(); err != nil {
			slog.Warn("index checkpoint failed", slog.String("error", err.Error()))
		} else {
			x.sinceCheckpoint = 0
		}
	}

	return ids, nil
}

// Search returns up to topK records ranked descending by similarity
// (ascending by distance for l2). Searching an empty index returns an
// empty list without error.
func (x *VectorIndex) Search(query []float32, topK int) ([]Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(query) != x.cfg.Dimensions {
		return nil, scouterr.New(scouterr.ErrCodeDimensionMismatch,
			fmt.Sprintf("expected query width %d, got %d", x.cfg.Dimensions, len(query)), nil)
	}
	if x.graph.Len() == 0 {
		return []Result{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if x.cfg.Metric == MetricIP {
		normalizeInPlace(q)
	}

	nodes := x.graph.Search(q, topK)
	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		dist := x.graph.Distance(q, node.Value)
		var meta []byte
		if node.Key < uint64(len(x.metadata)) {
			meta = x.metadata[node.Key]
		}
		results = append(results, Result{
			ID:       node.Key,
			Score:    distanceToScore(dist, x.cfg.Metric),
			Distance: dist,
			Metadata: meta,
		})
	}
	return results, nil
}

// Count returns the number of records.
func (x *VectorIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return int(x.next)
}

// Dimensions returns the fixed vector width.
func (x *VectorIndex) Dimensions() int {
	return x.cfg.Dimensions
}

// Metric returns the index's similarity metric.
func (x *VectorIndex) Metric() Metric {
	return x.cfg.Metric
}

// Metadata returns the metadata blob for id, or nil when out of range.
func (x *VectorIndex) Metadata(id uint64) []byte {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if id >= uint64(len(x.metadata)) {
		return nil
	}
	return x.metadata[id]
}

// AllMetadata returns the metadata table in insertion order.
func (x *VectorIndex) AllMetadata() [][]byte {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([][]byte, len(x.metadata))
	copy(out, x.metadata)
	return out
}

// Save persists the graph and its metadata table as one atomic pair
// (temp file + rename for each half).
func (x *VectorIndex) Save() error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.saveLocked()
}

func (x *VectorIndex) saveLocked() error {
	if x.cfg.Path == "" {
		return fmt.Errorf("index has no persisted path")
	}
	if err := os.MkdirAll(filepath.Dir(x.cfg.Path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp := x.cfg.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := x.graph.Export(f); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, x.cfg.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename index file: %w", err)
	}

	metaPath := x.cfg.Path + ".meta"
	metaTmp := metaPath + ".tmp"
	mf, err := os.Create(metaTmp)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	meta := indexMeta{
		Dimensions: x.cfg.Dimensions,
		Metric:     x.cfg.Metric,
		Next:       x.next,
		Metadata:   x.metadata,
	}
	if err := gob.NewEncoder(mf).Encode(meta); err != nil {
		mf.Close()
		_ = os.Remove(metaTmp)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := mf.Close(); err != nil {
		_ = os.Remove(metaTmp)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(metaTmp, metaPath)
}

// Load restores a persisted index pair, opened read-only for search. A
// missing file or a zero-length index file is reported as absence
// (errors.IsAbsent), never as corruption requiring repair.
func Load(path string) (*VectorIndex, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, scouterr.Absent(fmt.Sprintf("no index at %s", path))
		}
		return nil, fmt.Errorf("stat index: %w", err)
	}
	if info.Size() == 0 {
		return nil, scouterr.Absent(fmt.Sprintf("zero-length index at %s", path))
	}

	metaPath := path + ".meta"
	mf, err := os.Open(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, scouterr.Absent(fmt.Sprintf("no index metadata at %s", metaPath))
		}
		return nil, fmt.Errorf("open index metadata: %w", err)
	}
	defer mf.Close()

	var meta indexMeta
	if err := gob.NewDecoder(mf).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode index metadata: %w", err)
	}

	x, err := New(Config{Dimensions: meta.Dimensions, Metric: meta.Metric, Path: path})
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := x.graph.Import(bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}

	x.metadata = meta.Metadata
	x.next = meta.Next
	x.readOnly = true
	return x, nil
}

// normalizeInPlace normalizes a vector to unit length in place.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore converts a distance to a similarity score in [0, 1].
// Cosine distance ranges 0-2; L2 ranges 0-inf.
func distanceToScore(distance float32, metric Metric) float32 {
	switch metric {
	case MetricL2:
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
