package search

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vabrowser/vab/internal/store"
)

// MinTagCount prunes the long tail of the tag histogram; tags used fewer
// times than this are dropped from stats output.
const MinTagCount = 10

// Stats summarizes the indexed catalog for facet discovery.
type Stats struct {
	TotalDocs  int                       `json:"total_docs"`
	LastUpdate string                    `json:"last_update"`
	Histograms map[string]map[string]int `json:"histograms"`
}

// histogram fields aggregated from joined-list metadata values.
var listHistogramFields = []string{"tags", "artists", "compatible_figures"}

// CollectStats walks all index metadata and builds facet histograms. The
// metadata snapshot is partitioned across workers; each worker counts its
// slice independently and the partial counts are merged at the end.
func CollectStats(ctx context.Context, index store.VectorIndex) (*Stats, error) {
	stats := &Stats{
		LastUpdate: "N/A",
		Histograms: map[string]map[string]int{},
	}
	if index == nil {
		return stats, nil
	}

	metas := index.AllMetadata()
	stats.TotalDocs = len(metas)
	if len(metas) == 0 {
		return stats, nil
	}

	workers := runtime.NumCPU()
	if workers > len(metas) {
		workers = len(metas)
	}
	chunk := (len(metas) + workers - 1) / workers

	type partial struct {
		counts     map[string]map[string]int
		lastUpdate string
	}

	var mu sync.Mutex
	var partials []partial

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(metas); start += chunk {
		end := start + chunk
		if end > len(metas) {
			end = len(metas)
		}
		slice := metas[start:end]

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := partial{counts: newCounts()}
			for _, meta := range slice {
				countMetadata(meta, p.counts)
				if updated := meta.GetString("last_updated"); updated > p.lastUpdate {
					p.lastUpdate = updated
				}
			}
			mu.Lock()
			partials = append(partials, p)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := newCounts()
	lastUpdate := ""
	for _, p := range partials {
		for field, counts := range p.counts {
			for value, n := range counts {
				merged[field][value] += n
			}
		}
		// RFC3339 strings compare chronologically
		if p.lastUpdate > lastUpdate {
			lastUpdate = p.lastUpdate
		}
	}
	if lastUpdate != "" {
		stats.LastUpdate = lastUpdate
	}

	// Prune rare tags so the histogram stays browsable
	for value, n := range merged["tags"] {
		if n < MinTagCount {
			delete(merged["tags"], value)
		}
	}

	stats.Histograms = merged
	return stats, nil
}

func newCounts() map[string]map[string]int {
	counts := map[string]map[string]int{
		"categories": {},
	}
	for _, field := range listHistogramFields {
		counts[field] = map[string]int{}
	}
	return counts
}

func countMetadata(meta store.Metadata, counts map[string]map[string]int) {
	if category := meta.GetString("category"); category != "" {
		counts["categories"][category]++
	}
	for _, field := range listHistogramFields {
		joined := meta.GetString(field)
		if joined == "" {
			continue
		}
		for _, item := range strings.Split(joined, store.ListSeparator) {
			if item = strings.TrimSpace(item); item != "" {
				counts[field][item]++
			}
		}
	}
}
