package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vabrowser/vab/internal/embed"
	"github.com/vabrowser/vab/internal/search"
	"github.com/vabrowser/vab/internal/store"
)

// statsHistogramOrder fixes the display order of histogram sections.
var statsHistogramOrder = []string{"categories", "tags", "artists", "compatible_figures"}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	var top int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog index statistics",
		Long: `Display statistics about the indexed catalog.

Reports the document count, the newest last_updated timestamp, and value
histograms for categories, tags, artists, and compatible figures. Rare
tags are pruned so the list stays useful for facet discovery.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput, top)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&top, "top", 15, "Number of values to show per histogram (0 = all)")

	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool, top int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Stats never embed, so the construction dimensions only need a sane
	// default; Load restores the persisted dimensions from the sidecar.
	dimensions := cfg.Embeddings.Dimensions
	if dimensions <= 0 {
		dimensions = embed.StaticDimensions
	}
	idx, err := openIndex(cfg, dimensions, false)
	if err != nil {
		return err
	}
	var vectorIndex store.VectorIndex
	if idx != nil {
		defer func() { _ = idx.Close() }()
		vectorIndex = idx
	}

	stats, err := search.CollectStats(cmd.Context(), vectorIndex)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Indexed documents: %d\n", stats.TotalDocs)
	_, _ = fmt.Fprintf(out, "Last update:       %s\n", stats.LastUpdate)
	for _, field := range statsHistogramOrder {
		counts := stats.Histograms[field]
		if len(counts) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s (%d values):\n", field, len(counts))
		for _, vc := range topValues(counts, top) {
			_, _ = fmt.Fprintf(out, "  %6d  %s\n", vc.count, vc.value)
		}
	}
	return nil
}

type valueCount struct {
	value string
	count int
}

// topValues sorts a histogram by descending count, breaking ties by
// value, and truncates to limit entries when limit is positive.
func topValues(counts map[string]int, limit int) []valueCount {
	out := make([]valueCount, 0, len(counts))
	for value, count := range counts {
		out = append(out, valueCount{value: value, count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].value < out[j].value
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
