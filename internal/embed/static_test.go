package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()
	ctx := context.Background()

	a, err := e.Embed(ctx, "victorian fireplace prop", false)
	require.NoError(t, err)
	b, err := e.Embed(ctx, "victorian fireplace prop", false)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
}

func TestStaticEmbedderUnitLength(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vec, err := e.Embed(context.Background(), "long curly hair for genesis 9", false)
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestStaticEmbedderEmptyText(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vec, err := e.Embed(context.Background(), "   ", false)
	require.NoError(t, err)
	assert.Equal(t, make([]float32, StaticDimensions), vec)
}

func TestStaticEmbedderSimilarTextsCloser(t *testing.T) {
	// Given embeddings of two related texts and one unrelated text
	e := NewStaticEmbedder()
	defer e.Close()
	ctx := context.Background()

	hair1, err := e.Embed(ctx, "long curly hair style", false)
	require.NoError(t, err)
	hair2, err := e.Embed(ctx, "curly hair for characters", false)
	require.NoError(t, err)
	sword, err := e.Embed(ctx, "medieval sword weapon prop", false)
	require.NoError(t, err)

	// Then related texts score higher similarity
	simRelated := dot(hair1, hair2)
	simUnrelated := dot(hair1, sword)
	assert.Greater(t, simRelated, simUnrelated)
}

func TestStaticEmbedderBatch(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two", ""}, false)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.NotEqual(t, vecs[0], vecs[1])
	assert.Equal(t, make([]float32, StaticDimensions), vecs[2])
}

func TestStaticEmbedderClosed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "text", false)
	require.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestApplyQueryPrefix(t *testing.T) {
	// mxbai models get the retrieval instruction on queries only
	q := applyQueryPrefix("mxbai-embed-large", "red dress", true)
	assert.Equal(t, mxbaiQueryPrefix+"red dress", q)

	doc := applyQueryPrefix("mxbai-embed-large", "red dress", false)
	assert.Equal(t, "red dress", doc)

	// Other models pass through untouched
	other := applyQueryPrefix("nomic-embed-text", "red dress", true)
	assert.Equal(t, "red dress", other)
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
