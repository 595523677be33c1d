package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// HashEmbedder produces deterministic pseudo-embeddings from a sha256
// expansion of the input. It has no semantic power and exists for offline
// runs and tests where only determinism and dimensionality matter.
type HashEmbedder struct {
	dims int
}

var _ Embedder = (*HashEmbedder)(nil)

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Embed(_ context.Context, text string, kind InputKind) ([]float32, error) {
	// The kind participates in the hash so query and document embeddings
	// of identical text stay distinct, matching asymmetric models.
	seed := sha256.Sum256([]byte(string(kind) + "\x00" + text))

	vec := make([]float32, h.dims)
	block := seed[:]
	for i := 0; i < h.dims; i++ {
		if i%8 == 0 && i > 0 {
			next := sha256.Sum256(block)
			block = next[:]
		}
		bits := binary.LittleEndian.Uint32(block[(i%8)*4 : (i%8)*4+4])
		vec[i] = float32(bits%2000)/1000.0 - 1.0
	}
	return Normalize(vec), nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string, kind InputKind) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := h.Embed(ctx, t, kind)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (h *HashEmbedder) Dimensions() int { return h.dims }

func (h *HashEmbedder) ModelName() string { return "hash-v1" }

func (h *HashEmbedder) Available(context.Context) bool { return true }

func (h *HashEmbedder) Close() error { return nil }
