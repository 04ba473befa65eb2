package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *CatalogStore {
	t.Helper()
	s, err := NewCatalogStore("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleProduct(sku string, updated time.Time) *Product {
	return &Product{
		SKU:           sku,
		URL:           "https://example.com/" + sku,
		Name:          "Test Product " + sku,
		Artists:       []string{"Stonemason", "DAZ Originals"},
		Price:         "$19.95",
		Description:   "A test product.",
		Tags:          []string{"fantasy", "medieval"},
		Category:      "Props",
		Subcategories: []string{"Weapons"},
		EmbeddingText: "A 3D asset package titled 'Test Product'.",
		LastUpdated:   updated,
	}
}

func TestCatalogUpsertAndGet(t *testing.T) {
	// Given a product written to the catalog
	s := newTestCatalog(t)
	ctx := context.Background()
	updated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	p := sampleProduct("sku-1", updated)
	p.EnrichedAt = updated.Add(time.Hour)
	require.NoError(t, s.UpsertProducts(ctx, []*Product{p}))

	// When reading it back
	got, err := s.GetProduct(ctx, "sku-1")
	require.NoError(t, err)

	// Then every field survives the round trip
	assert.Equal(t, "sku-1", got.SKU)
	assert.Equal(t, "Test Product sku-1", got.Name)
	assert.Equal(t, []string{"Stonemason", "DAZ Originals"}, got.Artists)
	assert.Equal(t, []string{"fantasy", "medieval"}, got.Tags)
	assert.Equal(t, "Props", got.Category)
	assert.Equal(t, []string{"Weapons"}, got.Subcategories)
	assert.Equal(t, p.EmbeddingText, got.EmbeddingText)
	assert.True(t, got.LastUpdated.Equal(updated))
	assert.True(t, got.EnrichedAt.Equal(updated.Add(time.Hour)))
	assert.False(t, got.Mature)
}

func TestCatalogUpsertReplaces(t *testing.T) {
	s := newTestCatalog(t)
	ctx := context.Background()
	updated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertProducts(ctx, []*Product{sampleProduct("sku-1", updated)}))

	changed := sampleProduct("sku-1", updated.Add(time.Hour))
	changed.Name = "Renamed"
	require.NoError(t, s.UpsertProducts(ctx, []*Product{changed}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.GetProduct(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestCatalogUpsertRejectsEmptySKU(t *testing.T) {
	s := newTestCatalog(t)
	err := s.UpsertProducts(context.Background(), []*Product{
		sampleProduct("", time.Now()),
	})
	require.Error(t, err)
}

func TestCatalogGetUnknownSKU(t *testing.T) {
	s := newTestCatalog(t)
	_, err := s.GetProduct(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCatalogChangedSince(t *testing.T) {
	// Given products on both sides of a checkpoint
	s := newTestCatalog(t)
	ctx := context.Background()
	checkpoint := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	old := sampleProduct("sku-old", checkpoint.Add(-time.Hour))
	fresh := sampleProduct("sku-new", checkpoint.Add(time.Hour))
	enriched := sampleProduct("sku-enriched", checkpoint.Add(-time.Hour))
	enriched.EnrichedAt = checkpoint.Add(2 * time.Hour)
	noText := sampleProduct("sku-notext", checkpoint.Add(time.Hour))
	noText.EmbeddingText = ""
	require.NoError(t, s.UpsertProducts(ctx, []*Product{old, fresh, enriched, noText}))

	// When extracting changes
	got, err := s.ChangedSince(ctx, checkpoint, 0)
	require.NoError(t, err)

	// Then updated and freshly enriched products come back, ordered by SKU,
	// and products without embedding text are skipped
	require.Len(t, got, 2)
	assert.Equal(t, "sku-enriched", got[0].SKU)
	assert.Equal(t, "sku-new", got[1].SKU)
}

func TestCatalogChangedSinceEpoch(t *testing.T) {
	// A fresh checkpoint (epoch) selects the entire indexable catalog
	s := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertProducts(ctx, []*Product{
		sampleProduct("a", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
		sampleProduct("b", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
	}))

	got, err := s.ChangedSince(ctx, time.Unix(0, 0).UTC(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCatalogChangedSinceLimit(t *testing.T) {
	s := newTestCatalog(t)
	ctx := context.Background()
	updated := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertProducts(ctx, []*Product{
		sampleProduct("a", updated),
		sampleProduct("b", updated),
		sampleProduct("c", updated),
	}))

	got, err := s.ChangedSince(ctx, time.Unix(0, 0).UTC(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].SKU)
	assert.Equal(t, "b", got[1].SKU)
}

func TestCatalogNeedingDerivation(t *testing.T) {
	s := newTestCatalog(t)
	ctx := context.Background()
	updated := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	derived := sampleProduct("derived", updated)
	raw := sampleProduct("raw", updated)
	raw.EmbeddingText = ""
	require.NoError(t, s.UpsertProducts(ctx, []*Product{derived, raw}))

	// Default: only products missing embedding text
	got, err := s.NeedingDerivation(ctx, false, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "raw", got[0].SKU)

	// Forced: everything
	got, err = s.NeedingDerivation(ctx, true, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCatalogStoreDerived(t *testing.T) {
	// Given a product without derived fields
	s := newTestCatalog(t)
	ctx := context.Background()
	raw := sampleProduct("sku-1", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	raw.EmbeddingText = ""
	raw.Category = ""
	require.NoError(t, s.UpsertProducts(ctx, []*Product{raw}))

	// When storing derivation results
	at := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	err := s.StoreDerived(ctx, "sku-1",
		"A 3D asset package titled 'Test'.", "Props",
		[]string{"Weapons"}, []string{"Genesis 9"}, at)
	require.NoError(t, err)

	// Then the derived fields land and enriched_at is stamped
	got, err := s.GetProduct(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, "A 3D asset package titled 'Test'.", got.EmbeddingText)
	assert.Equal(t, "Props", got.Category)
	assert.Equal(t, []string{"Weapons"}, got.Subcategories)
	assert.Equal(t, []string{"Genesis 9"}, got.CompatibleFigures)
	assert.True(t, got.EnrichedAt.Equal(at))

	// And the stamped product is now visible to incremental extraction
	changed, err := s.ChangedSince(ctx, at.Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "sku-1", changed[0].SKU)
}

func TestCatalogStoreDerivedUnknownSKU(t *testing.T) {
	s := newTestCatalog(t)
	err := s.StoreDerived(context.Background(), "ghost", "text", "Props", nil, nil, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestProductIndexable(t *testing.T) {
	p := sampleProduct("sku-1", time.Now())
	assert.True(t, p.Indexable())

	noText := sampleProduct("sku-2", time.Now())
	noText.EmbeddingText = ""
	assert.False(t, noText.Indexable())

	noSKU := sampleProduct("", time.Now())
	assert.False(t, noSKU.Indexable())
}
