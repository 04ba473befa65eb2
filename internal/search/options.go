// Package search implements the query side: facet filter construction,
// the hybrid retrieval engine, and catalog statistics.
package search

import (
	"fmt"
)

// Sort parameter values. Any other SortBy value names a metadata field.
const (
	SortByRelevance = "relevance"

	SortAscending  = "ascending"
	SortDescending = "descending"
)

// Default search parameters.
const (
	DefaultLimit          = 10
	DefaultScoreThreshold = 1.0

	// Over-fetch parameters. The index is asked for
	// (offset+limit)*multiplier + floor candidates so that threshold
	// filtering and pagination still leave a full page.
	DefaultOverFetchMultiplier = 5
	DefaultOverFetchFloor      = 20
)

// Facets restricts search results by metadata. Values within one field are
// alternatives; fields combine conjunctively.
type Facets struct {
	Tags              []string `json:"tags,omitempty"`
	Artists           []string `json:"artists,omitempty"`
	Categories        []string `json:"categories,omitempty"`
	CompatibleFigures []string `json:"compatible_figures,omitempty"`
}

// Empty reports whether no facet values are set.
func (f Facets) Empty() bool {
	return len(f.Tags) == 0 && len(f.Artists) == 0 &&
		len(f.Categories) == 0 && len(f.CompatibleFigures) == 0
}

// Options are the parameters of one search call.
type Options struct {
	Facets         Facets
	Limit          int
	Offset         int
	ScoreThreshold float64
	SortBy         string
	SortOrder      string
}

// DefaultOptions returns the default search parameters.
func DefaultOptions() Options {
	return Options{
		Limit:          DefaultLimit,
		Offset:         0,
		ScoreThreshold: DefaultScoreThreshold,
		SortBy:         SortByRelevance,
		SortOrder:      SortDescending,
	}
}

// normalize fills zero values with defaults and validates the rest.
func (o *Options) normalize() error {
	if o.Limit == 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit < 0 {
		return fmt.Errorf("limit must be positive, got %d", o.Limit)
	}
	if o.Offset < 0 {
		return fmt.Errorf("offset must be non-negative, got %d", o.Offset)
	}
	if o.ScoreThreshold == 0 {
		o.ScoreThreshold = DefaultScoreThreshold
	}
	if o.SortBy == "" {
		o.SortBy = SortByRelevance
	}
	if o.SortOrder == "" {
		o.SortOrder = SortDescending
	}
	if o.SortOrder != SortAscending && o.SortOrder != SortDescending {
		return fmt.Errorf("sort order must be %q or %q, got %q", SortAscending, SortDescending, o.SortOrder)
	}
	return nil
}

// queryLimit is the candidate count requested from the index before
// threshold filtering, sorting, and pagination.
func (o Options) queryLimit(multiplier, floor int) int {
	return (o.Offset+o.Limit)*multiplier + floor
}
