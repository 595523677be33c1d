// Package embed defines the embedding provider interface and its
// implementations: an HTTP provider, a deterministic offline embedder, and
// caching/instrumentation wrappers.
package embed

import (
	"context"
	"math"
	"time"
)

// InputKind tells asymmetric embedding models whether the text is a stored
// document or a search query.
type InputKind string

const (
	KindDocument InputKind = "document"
	KindQuery    InputKind = "query"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize caps batch size to prevent memory exhaustion upstream.
	MaxBatchSize = 256

	// DefaultTimeout is the per-request timeout for embedding calls.
	DefaultTimeout = 120 * time.Second
)

// Embedder generates vector embeddings for text. Vectors have a fixed,
// provider-defined width reported by Dimensions.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string, kind InputKind) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one upstream call.
	EmbedBatch(ctx context.Context, texts []string, kind InputKind) ([][]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Normalize returns a unit-length copy of v. Zero vectors pass through.
func Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
