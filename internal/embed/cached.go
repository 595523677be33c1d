package embed

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vulnscout/vulnscout/internal/cache"
)

// CachedEmbedder wraps an Embedder with the content-addressed embedding
// cache for document texts and a small LRU for query texts. Queries are
// not persisted: they are cheap, numerous, and rarely repeat across runs.
type CachedEmbedder struct {
	inner   Embedder
	store   *cache.EmbeddingCache
	queries *lru.Cache[string, []float32]
	logger  *slog.Logger
}

var _ Embedder = (*CachedEmbedder)(nil)

const queryCacheSize = 512

func NewCachedEmbedder(inner Embedder, store *cache.EmbeddingCache, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	queries, _ := lru.New[string, []float32](queryCacheSize)
	return &CachedEmbedder{
		inner:   inner,
		store:   store,
		queries: queries,
		logger:  logger,
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string, kind InputKind) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text}, kind)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch serves hits from cache and embeds only the misses, in order.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string, kind InputKind) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if kind == KindQuery {
		return c.embedQueries(ctx, texts)
	}

	model := c.inner.ModelName()
	vectors, missing := c.store.GetBatch(model, texts)
	if len(missing) == 0 {
		return vectors, nil
	}

	missTexts := make([]string, len(missing))
	for i, idx := range missing {
		missTexts[i] = texts[idx]
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts, kind)
	if err != nil {
		return nil, err
	}

	c.store.PutBatch(model, missTexts, fresh)
	for i, idx := range missing {
		vectors[idx] = fresh[i]
	}

	c.logger.Debug("embedding batch served",
		"total", len(texts),
		"hits", len(texts)-len(missing),
		"misses", len(missing))
	return vectors, nil
}

func (c *CachedEmbedder) embedQueries(ctx context.Context, texts []string) ([][]float32, error) {
	model := c.inner.ModelName()
	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, t := range texts {
		if vec, ok := c.queries.Get(cache.Key(model, t)); ok {
			vectors[i] = vec
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts, KindQuery)
	if err != nil {
		return nil, err
	}
	for i, idx := range missIdx {
		vectors[idx] = fresh[i]
		c.queries.Add(cache.Key(model, missTexts[i]), fresh[i])
	}
	return vectors, nil
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

func (c *CachedEmbedder) Close() error { return c.inner.Close() }
