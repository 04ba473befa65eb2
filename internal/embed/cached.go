package embed

import (
	"context"
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbeddingCacheSize bounds the LRU cache. At 1024 dimensions times
// 4 bytes per entry, a thousand entries cost about 4MB.
const DefaultEmbeddingCacheSize = 1000

// CachedEmbedder puts an LRU cache in front of another Embedder so repeated
// texts, above all repeated search queries, skip the embedding round trip.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

var _ Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// key hashes text together with the model name and the query flag. The flag
// belongs in the key because asymmetric models embed the same text
// differently as a query than as a document.
func (c *CachedEmbedder) key(text string, query bool) string {
	side := "doc"
	if query {
		side = "query"
	}
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName() + "\x00" + side))
	return fmt.Sprintf("%x", sum)
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string, query bool) ([]float32, error) {
	k := c.key(text, query)
	if vec, hit := c.cache.Get(k); hit {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text, query)
	if err != nil {
		return nil, err
	}
	c.cache.Add(k, vec)
	return vec, nil
}

// EmbedBatch checks and fills the cache per text, so batches that partially
// overlap earlier ones only pay for their misses.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string, query bool) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	type miss struct {
		pos  int
		text string
	}
	out := make([][]float32, len(texts))
	var misses []miss
	for i, t := range texts {
		if vec, hit := c.cache.Get(c.key(t, query)); hit {
			out[i] = vec
			continue
		}
		misses = append(misses, miss{i, t})
	}
	if len(misses) == 0 {
		return out, nil
	}

	payload := make([]string, len(misses))
	for i, m := range misses {
		payload[i] = m.text
	}
	vecs, err := c.inner.EmbedBatch(ctx, payload, query)
	if err != nil {
		return nil, err
	}

	for i, vec := range vecs {
		out[misses[i].pos] = vec
		c.cache.Add(c.key(misses[i].text, query), vec)
	}
	return out, nil
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Close drops the cache and closes the wrapped embedder.
func (c *CachedEmbedder) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

// Len reports how many embeddings are currently cached.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }
