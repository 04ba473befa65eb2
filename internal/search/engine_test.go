package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vabrowser/vab/internal/embed"
	"github.com/vabrowser/vab/internal/store"
)

// newTestEngine builds an engine over a small indexed corpus using the
// static embedder, so corpus documents and prompts share a vector space.
func newTestEngine(t *testing.T, docs map[string]string, metas map[string]store.Metadata) *Engine {
	t.Helper()

	embedder := embed.NewStaticEmbedder()
	t.Cleanup(func() { embedder.Close() })

	index, err := store.NewHNSWIndex(store.VectorIndexConfig{Dimensions: embedder.Dimensions()})
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	var ids []string
	var vectors [][]float32
	var metaList []store.Metadata
	var docList []string
	for id, doc := range docs {
		vec, err := embedder.Embed(context.Background(), doc, false)
		require.NoError(t, err)
		ids = append(ids, id)
		vectors = append(vectors, vec)
		metaList = append(metaList, metas[id])
		docList = append(docList, doc)
	}
	require.NoError(t, index.Upsert(ids, vectors, metaList, docList))

	return NewEngine(embedder, index, EngineConfig{})
}

func corpusEngine(t *testing.T) *Engine {
	t.Helper()
	return newTestEngine(t,
		map[string]string{
			"hair-long":  "long flowing hair for characters",
			"hair-short": "short pixie hair style",
			"prop-sword": "medieval steel sword weapon prop",
			"env-castle": "castle courtyard environment scene",
		},
		map[string]store.Metadata{
			"hair-long":  {"category": "hair", "artists": "OutOfTouch", "name": "Flowing Hair", "last_updated": "2025-05-01T00:00:00Z"},
			"hair-short": {"category": "hair", "artists": "Propschick", "name": "Pixie Cut", "last_updated": "2025-06-01T00:00:00Z"},
			"prop-sword": {"category": "props", "artists": "Stonemason", "name": "Steel Sword", "last_updated": "2025-04-01T00:00:00Z"},
			"env-castle": {"category": "environments", "artists": "Stonemason", "name": "Castle Yard", "last_updated": "2025-03-01T00:00:00Z"},
		})
}

func TestSearchUnfilteredCountsAllHits(t *testing.T) {
	// Given a 4 item corpus and a permissive threshold
	e := corpusEngine(t)

	opts := DefaultOptions()
	opts.ScoreThreshold = 2.0

	resp, err := e.Search(context.Background(), "hair", opts)
	require.NoError(t, err)

	// Then every document survives and total hits counts them all
	assert.Equal(t, 4, resp.TotalHits)
	assert.Len(t, resp.Results, 4)
}

func TestSearchRelevanceOrderNonDecreasing(t *testing.T) {
	e := corpusEngine(t)

	opts := DefaultOptions()
	opts.ScoreThreshold = 2.0

	resp, err := e.Search(context.Background(), "hair style", opts)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	for i := 1; i < len(resp.Results); i++ {
		assert.LessOrEqual(t, resp.Results[i-1].Distance, resp.Results[i].Distance)
	}
}

func TestSearchLimitRespected(t *testing.T) {
	e := corpusEngine(t)

	opts := DefaultOptions()
	opts.ScoreThreshold = 2.0
	opts.Limit = 2

	resp, err := e.Search(context.Background(), "asset", opts)
	require.NoError(t, err)

	// At most limit results, but total hits still counts the full set
	assert.LessOrEqual(t, len(resp.Results), 2)
	assert.Equal(t, 4, resp.TotalHits)
}

func TestSearchPagination(t *testing.T) {
	e := corpusEngine(t)

	opts := DefaultOptions()
	opts.ScoreThreshold = 2.0
	opts.Limit = 2

	first, err := e.Search(context.Background(), "asset", opts)
	require.NoError(t, err)

	opts.Offset = 2
	second, err := e.Search(context.Background(), "asset", opts)
	require.NoError(t, err)

	require.Len(t, first.Results, 2)
	require.Len(t, second.Results, 2)

	// Pages never overlap
	seen := map[string]bool{}
	for _, hit := range append(first.Results, second.Results...) {
		assert.False(t, seen[hit.ID], "duplicate %s across pages", hit.ID)
		seen[hit.ID] = true
	}

	// Offset beyond the result set yields an empty page, not an error
	opts.Offset = 100
	beyond, err := e.Search(context.Background(), "asset", opts)
	require.NoError(t, err)
	assert.Empty(t, beyond.Results)
	assert.Equal(t, 4, beyond.TotalHits)
}

func TestSearchFacetFilter(t *testing.T) {
	e := corpusEngine(t)

	opts := DefaultOptions()
	opts.ScoreThreshold = 2.0
	opts.Facets = Facets{Categories: []string{"hair"}}

	resp, err := e.Search(context.Background(), "hair", opts)
	require.NoError(t, err)

	assert.Equal(t, 2, resp.TotalHits)
	for _, hit := range resp.Results {
		assert.Equal(t, "hair", hit.Metadata.GetString("category"))
	}
}

func TestSearchScoreThreshold(t *testing.T) {
	e := corpusEngine(t)

	// A threshold of zero admits only exact matches; no document embeds
	// exactly onto the prompt, so nothing passes
	opts := DefaultOptions()
	opts.ScoreThreshold = 0.000001

	resp, err := e.Search(context.Background(), "completely unrelated query", opts)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.TotalHits)
	assert.Empty(t, resp.Results)
}

func TestSearchMetadataSort(t *testing.T) {
	e := corpusEngine(t)

	opts := DefaultOptions()
	opts.ScoreThreshold = 2.0
	opts.SortBy = "name"
	opts.SortOrder = SortAscending

	resp, err := e.Search(context.Background(), "asset", opts)
	require.NoError(t, err)
	require.Len(t, resp.Results, 4)

	for i := 1; i < len(resp.Results); i++ {
		prev := resp.Results[i-1].Metadata.GetString("name")
		curr := resp.Results[i].Metadata.GetString("name")
		assert.LessOrEqual(t, prev, curr)
	}

	opts.SortOrder = SortDescending
	resp, err = e.Search(context.Background(), "asset", opts)
	require.NoError(t, err)
	assert.Equal(t, "Steel Sword", resp.Results[0].Metadata.GetString("name"))
}

func TestSearchSortMissingFieldFallsBackToEmpty(t *testing.T) {
	// Documents without the sort field sort as "" and stay stable
	e := newTestEngine(t,
		map[string]string{"a": "first doc", "b": "second doc"},
		map[string]store.Metadata{
			"a": {"name": "Named"},
			"b": {},
		})

	opts := DefaultOptions()
	opts.ScoreThreshold = 2.0
	opts.SortBy = "name"
	opts.SortOrder = SortAscending

	resp, err := e.Search(context.Background(), "doc", opts)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "b", resp.Results[0].ID)
}

func TestSearchMissingIndexReturnsEmpty(t *testing.T) {
	// A nil index (nothing built yet) is not an error
	embedder := embed.NewStaticEmbedder()
	defer embedder.Close()
	e := NewEngine(embedder, nil, EngineConfig{})

	resp, err := e.Search(context.Background(), "anything", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, resp.TotalHits)
	assert.Empty(t, resp.Results)
	assert.Equal(t, DefaultLimit, resp.Limit)
}

func TestSearchInvalidOptions(t *testing.T) {
	e := corpusEngine(t)

	opts := DefaultOptions()
	opts.Offset = -1
	_, err := e.Search(context.Background(), "x", opts)
	require.Error(t, err)

	opts = DefaultOptions()
	opts.SortOrder = "sideways"
	_, err = e.Search(context.Background(), "x", opts)
	require.Error(t, err)
}

func TestQueryLimitFormula(t *testing.T) {
	opts := Options{Limit: 10, Offset: 0}
	assert.Equal(t, 70, opts.queryLimit(5, 20))

	opts = Options{Limit: 10, Offset: 30}
	assert.Equal(t, 220, opts.queryLimit(5, 20))
}
