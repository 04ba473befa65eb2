package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/vabrowser/vab/internal/embed"
	"github.com/vabrowser/vab/internal/store"
)

// Response is the result of one search call. TotalHits counts everything
// that survived the score threshold, before pagination, so callers can page
// through the full result set.
type Response struct {
	TotalHits int          `json:"total_hits"`
	Limit     int          `json:"limit"`
	Offset    int          `json:"offset"`
	Results   []*store.Hit `json:"results"`
}

// EngineConfig tunes the retrieval engine.
type EngineConfig struct {
	OverFetchMultiplier int
	OverFetchFloor      int
}

// Engine performs hybrid retrieval: vector similarity narrowed by facet
// predicates, then threshold filtering, sorting, and pagination.
type Engine struct {
	embedder embed.Embedder
	index    store.VectorIndex // nil when no index has been built yet
	config   EngineConfig
}

// NewEngine creates a search engine. A nil index is legal and means no
// index exists yet; every search then returns an empty response.
func NewEngine(embedder embed.Embedder, index store.VectorIndex, cfg EngineConfig) *Engine {
	if cfg.OverFetchMultiplier <= 0 {
		cfg.OverFetchMultiplier = DefaultOverFetchMultiplier
	}
	if cfg.OverFetchFloor <= 0 {
		cfg.OverFetchFloor = DefaultOverFetchFloor
	}
	return &Engine{
		embedder: embedder,
		index:    index,
		config:   cfg,
	}
}

// Search runs the full query pipeline for a prompt.
func (e *Engine) Search(ctx context.Context, prompt string, opts Options) (*Response, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	// No index yet is a normal state for a fresh install, not an error.
	if e.index == nil || e.index.Count() == 0 {
		slog.Debug("search against missing or empty index",
			slog.String("prompt", prompt))
		return &Response{
			TotalHits: 0,
			Limit:     opts.Limit,
			Offset:    opts.Offset,
			Results:   []*store.Hit{},
		}, nil
	}

	start := time.Now()

	queryVec, err := e.embedder.Embed(ctx, prompt, true)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	where := BuildFilter(opts.Facets)
	queryLimit := opts.queryLimit(e.config.OverFetchMultiplier, e.config.OverFetchFloor)

	hits, err := e.index.Query(queryVec, queryLimit, where)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	// Threshold filter: keep hits at least as similar as the cutoff.
	filtered := make([]*store.Hit, 0, len(hits))
	for _, hit := range hits {
		if float64(hit.Distance) <= opts.ScoreThreshold {
			filtered = append(filtered, hit)
		}
	}

	sortHits(filtered, opts.SortBy, opts.SortOrder)

	totalHits := len(filtered)
	paginated := paginate(filtered, opts.Offset, opts.Limit)

	slog.Debug("search completed",
		slog.String("prompt", prompt),
		slog.Int("candidates", len(hits)),
		slog.Int("total_hits", totalHits),
		slog.Int("returned", len(paginated)),
		slog.Duration("elapsed", time.Since(start)))

	return &Response{
		TotalHits: totalHits,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
		Results:   paginated,
	}, nil
}

// sortHits orders hits in place. Relevance order (distance ascending) comes
// from the index and is kept as-is; metadata sorts are stable with an
// empty-string fallback for missing fields, so relevance breaks ties.
func sortHits(hits []*store.Hit, sortBy, sortOrder string) {
	if sortBy == SortByRelevance {
		return
	}
	descending := sortOrder == SortDescending
	sort.SliceStable(hits, func(i, j int) bool {
		a := hits[i].Metadata.GetString(sortBy)
		b := hits[j].Metadata.GetString(sortBy)
		if descending {
			return a > b
		}
		return a < b
	})
}

func paginate(hits []*store.Hit, offset, limit int) []*store.Hit {
	if offset >= len(hits) {
		return []*store.Hit{}
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}
