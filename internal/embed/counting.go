package embed

import (
	"context"
	"sync/atomic"
)

// CountingEmbedder records how many texts reach the underlying provider.
// Used to verify cache reuse paths make zero upstream calls.
type CountingEmbedder struct {
	inner Embedder
	calls atomic.Int64
	texts atomic.Int64
}

var _ Embedder = (*CountingEmbedder)(nil)

func NewCountingEmbedder(inner Embedder) *CountingEmbedder {
	return &CountingEmbedder{inner: inner}
}

// Calls returns the number of upstream invocations.
func (c *CountingEmbedder) Calls() int64 { return c.calls.Load() }

// Texts returns the total number of texts embedded upstream.
func (c *CountingEmbedder) Texts() int64 { return c.texts.Load() }

func (c *CountingEmbedder) Embed(ctx context.Context, text string, kind InputKind) ([]float32, error) {
	c.calls.Add(1)
	c.texts.Add(1)
	return c.inner.Embed(ctx, text, kind)
}

func (c *CountingEmbedder) EmbedBatch(ctx context.Context, texts []string, kind InputKind) ([][]float32, error) {
	c.calls.Add(1)
	c.texts.Add(int64(len(texts)))
	return c.inner.EmbedBatch(ctx, texts, kind)
}

func (c *CountingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CountingEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *CountingEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

func (c *CountingEmbedder) Close() error { return c.inner.Close() }
