// Package vulndb talks to the external vulnerability-record vector store.
// The store lives behind an HTTP API; records carry pre-computed embeddings
// of a width chosen by whoever built the corpus, which may not match the
// local embedding width.
package vulndb

import (
	"context"
)

// Record is one vulnerability entry returned by similarity search.
type Record struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CWE         string   `json:"cwe,omitempty"`
	Severity    string   `json:"severity,omitempty"`
	References  []string `json:"references,omitempty"`
	Score       float64  `json:"score"`
}

// Store is the narrow similarity-search surface the matcher depends on.
type Store interface {
	// SimilaritySearch returns at most limit records whose similarity to
	// vector is at or above threshold, ranked descending.
	SimilaritySearch(ctx context.Context, vector []float32, limit int, threshold float64) ([]Record, error)

	// Dimensions is the store-side vector width, 0 when unknown.
	Dimensions() int
}
