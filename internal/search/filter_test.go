package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vabrowser/vab/internal/store"
)

func TestBuildFilterEmpty(t *testing.T) {
	// No facets means no filter at all
	assert.Nil(t, BuildFilter(Facets{}))
}

func TestBuildFilterSingleValueIsBareLeaf(t *testing.T) {
	// A single value collapses to a leaf without OR or AND wrappers
	f := BuildFilter(Facets{Categories: []string{"hair"}})

	leaf, ok := f.(store.Leaf)
	require.True(t, ok, "expected bare leaf, got %T", f)
	assert.Equal(t, "category", leaf.Field)
	assert.Equal(t, store.OpEquals, leaf.Op)
	assert.Equal(t, "hair", leaf.Value)
}

func TestBuildFilterMultipleValuesSameField(t *testing.T) {
	// Values within one field are alternatives
	f := BuildFilter(Facets{Tags: []string{"fantasy", "scifi"}})

	or, ok := f.(store.Or)
	require.True(t, ok, "expected Or, got %T", f)
	require.Len(t, or, 2)

	assert.True(t, f.Match(store.Metadata{"tags": "fantasy,medieval"}))
	assert.True(t, f.Match(store.Metadata{"tags": "scifi"}))
	assert.False(t, f.Match(store.Metadata{"tags": "modern"}))
}

func TestBuildFilterMultipleFieldsConjoin(t *testing.T) {
	// Fields combine conjunctively
	f := BuildFilter(Facets{
		Categories: []string{"hair"},
		Artists:    []string{"OutOfTouch"},
	})

	and, ok := f.(store.And)
	require.True(t, ok, "expected And, got %T", f)
	require.Len(t, and, 2)

	assert.True(t, f.Match(store.Metadata{"category": "hair", "artists": "OutOfTouch"}))
	assert.False(t, f.Match(store.Metadata{"category": "hair", "artists": "Stonemason"}))
	assert.False(t, f.Match(store.Metadata{"category": "props", "artists": "OutOfTouch"}))
}

func TestBuildFilterCategoryExactOthersSubstring(t *testing.T) {
	f := BuildFilter(Facets{Categories: []string{"hair"}})
	// Category matching is exact: a superstring does not match
	assert.False(t, f.Match(store.Metadata{"category": "hairstyles"}))

	f = BuildFilter(Facets{CompatibleFigures: []string{"Genesis 9"}})
	// List fields match substrings of the joined form
	assert.True(t, f.Match(store.Metadata{"compatible_figures": "Genesis 9,Victoria 9"}))
}

func TestBuildFilterValidates(t *testing.T) {
	f := BuildFilter(Facets{
		Tags:              []string{"a", "b"},
		Artists:           []string{"c"},
		Categories:        []string{"d", "e"},
		CompatibleFigures: []string{"f"},
	})
	require.NoError(t, f.Validate())
}
