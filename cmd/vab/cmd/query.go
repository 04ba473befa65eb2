package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vabrowser/vab/internal/search"
	"github.com/vabrowser/vab/internal/store"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	limit     int
	offset    int
	threshold float64
	sortBy    string
	sortOrder string
	tags      []string
	artists   []string
	category  []string
	figures   []string
	format    string // "text", "json"
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the catalog with a natural-language prompt",
		Long: `Search indexed assets by semantic similarity.

The prompt is embedded and matched against the vector index; facet flags
narrow the candidate set by metadata before results are ranked.

Examples:
  vab query "victorian ballgown"
  vab query "red hair" --category hair --figure "Genesis 9"
  vab query "medieval tavern" --limit 5 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			return runQuery(cmd.Context(), cmd, prompt, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", search.DefaultLimit, "Maximum number of results per page")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of results to skip")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", search.DefaultScoreThreshold, "Maximum cosine distance to keep a result")
	cmd.Flags().StringVar(&opts.sortBy, "sort", search.SortByRelevance, "Sort field: relevance or a metadata field (e.g. last_updated)")
	cmd.Flags().StringVar(&opts.sortOrder, "order", search.SortDescending, "Sort order: ascending, descending")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "Filter by tag (repeatable)")
	cmd.Flags().StringSliceVar(&opts.artists, "artist", nil, "Filter by artist (repeatable)")
	cmd.Flags().StringSliceVar(&opts.category, "category", nil, "Filter by category (repeatable)")
	cmd.Flags().StringSliceVar(&opts.figures, "figure", nil, "Filter by compatible figure (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, prompt string, opts queryOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	// A missing index is a normal fresh-install state; the engine treats
	// a nil index as an empty result set.
	idx, err := openIndex(cfg, embedder.Dimensions(), false)
	if err != nil {
		return err
	}
	var vectorIndex store.VectorIndex
	if idx != nil {
		defer func() { _ = idx.Close() }()
		vectorIndex = idx
	}

	engine := search.NewEngine(embedder, vectorIndex, search.EngineConfig{
		OverFetchMultiplier: cfg.Search.OverFetchMultiplier,
		OverFetchFloor:      cfg.Search.OverFetchFloor,
	})

	slog.Info("query_started", slog.String("prompt", prompt), slog.Int("limit", opts.limit))
	resp, err := engine.Search(ctx, prompt, search.Options{
		Facets: search.Facets{
			Tags:              opts.tags,
			Artists:           opts.artists,
			Categories:        opts.category,
			CompatibleFigures: opts.figures,
		},
		Limit:          opts.limit,
		Offset:         opts.offset,
		ScoreThreshold: opts.threshold,
		SortBy:         opts.sortBy,
		SortOrder:      opts.sortOrder,
	})
	if err != nil {
		return err
	}
	slog.Info("query_complete", slog.Int("total_hits", resp.TotalHits), slog.Int("returned", len(resp.Results)))

	switch opts.format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		return printQueryText(cmd, prompt, resp)
	}
}

func printQueryText(cmd *cobra.Command, prompt string, resp *search.Response) error {
	out := cmd.OutOrStdout()
	if resp.TotalHits == 0 {
		_, _ = fmt.Fprintf(out, "No results found for %q\n", prompt)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Found %d results for %q (showing %d from offset %d):\n\n",
		resp.TotalHits, prompt, len(resp.Results), resp.Offset)
	for i, hit := range resp.Results {
		name := hit.Metadata.GetString("name")
		if name == "" {
			name = hit.ID
		}
		_, _ = fmt.Fprintf(out, "%d. %s [%s] (distance: %.4f)\n", resp.Offset+i+1, name, hit.ID, hit.Distance)
		if category := hit.Metadata.GetString("category"); category != "" {
			_, _ = fmt.Fprintf(out, "   category: %s\n", category)
		}
		if artists := hit.Metadata.GetString("artists"); artists != "" {
			_, _ = fmt.Fprintf(out, "   artists:  %s\n", artists)
		}
		if figures := hit.Metadata.GetString("compatible_figures"); figures != "" {
			_, _ = fmt.Fprintf(out, "   figures:  %s\n", figures)
		}
	}
	return nil
}
