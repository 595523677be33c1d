package store

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// KeywordIndex is a bleve full-text index over chunk text, built next to the
// vector index and used by the retriever for hybrid score boosting. Its
// absence is always tolerated: retrieval degrades to vector-only.
type KeywordIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	path  string
}

// keywordDoc is the indexed document shape.
type keywordDoc struct {
	Text string `json:"text"`
	File string `json:"file"`
}

// KeywordHit is one keyword search hit. ID parses back to a vector record id.
type KeywordHit struct {
	ID    uint64
	Score float64
}

// NewKeywordIndex creates a fresh index at path, replacing any existing one.
func NewKeywordIndex(path string) (*KeywordIndex, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("clear keyword index: %w", err)
	}
	mapping := bleve.NewIndexMapping()
	index, err := bleve.New(path, mapping)
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &KeywordIndex{index: index, path: path}, nil
}

// OpenKeywordIndex opens an existing index at path.
func OpenKeywordIndex(path string) (*KeywordIndex, error) {
	index, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}
	return &KeywordIndex{index: index, path: path}, nil
}

// Index adds a batch of records, keyed by their vector record ids.
func (k *KeywordIndex) Index(ids []uint64, texts []string, files []string) error {
	if len(ids) != len(texts) {
		return fmt.Errorf("ids and texts length mismatch: %d vs %d", len(ids), len(texts))
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	batch := k.index.NewBatch()
	for i, id := range ids {
		doc := keywordDoc{Text: texts[i]}
		if i < len(files) {
			doc.File = files[i]
		}
		if err := batch.Index(strconv.FormatUint(id, 10), doc); err != nil {
			return fmt.Errorf("batch index: %w", err)
		}
	}
	return k.index.Batch(batch)
}

// Search runs a match query and returns hits with parseable record ids.
func (k *KeywordIndex) Search(query string, limit int) ([]KeywordHit, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := k.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]KeywordHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, KeywordHit{ID: id, Score: hit.Score})
	}
	return hits, nil
}

// Close releases the underlying index.
func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.index == nil {
		return nil
	}
	err := k.index.Close()
	k.index = nil
	return err
}
