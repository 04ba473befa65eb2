package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/vabrowser/vab/internal/index"
	"github.com/vabrowser/vab/internal/jobs"
	"github.com/vabrowser/vab/internal/store"
)

func newIndexCmd() *cobra.Command {
	var (
		force      bool
		all        bool
		limit      int
		phase      string
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run an incremental indexing pass over the catalog",
		Long: `Index catalog rows changed since the last committed checkpoint.

The run first derives searchable fields (embedding text, category,
compatible figures) for rows that lack them, then embeds and upserts the
changed rows into the vector index in batches. The checkpoint advances
only after the index has been persisted.

Use --force to reset the index and rebuild from the whole catalog.
Use --phase to run a single half: etl (derive fields only) or embed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runIndex(ctx, cmd, index.RunOptions{
				Force: force,
				All:   all,
				Limit: limit,
				Phase: index.Phase(phase),
			}, noProgress)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reset the vector index and reindex the whole catalog")
	cmd.Flags().BoolVar(&all, "all", false, "Re-derive fields even for rows that already have them")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap the number of rows processed per phase (0 = no cap)")
	cmd.Flags().StringVar(&phase, "phase", "all", "Phase to run: all, etl, embed")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts index.RunOptions, noProgress bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	catalog, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	idx, err := store.NewHNSWIndex(store.VectorIndexConfig{Dimensions: embedder.Dimensions()})
	if err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}
	if !opts.Force && store.IndexExists(cfg.IndexPath()) {
		if err := idx.Load(cfg.IndexPath()); err != nil {
			return fmt.Errorf("loading vector index: %w", err)
		}
	}

	progress := newProgressReporter(noProgress)
	pipeline := index.NewPipeline(catalog, store.NewFileCheckpoint(cfg.CheckpointPath()), idx, embedder, index.Config{
		BatchSize: cfg.Index.BatchSize,
		IndexPath: cfg.IndexPath(),
		LockDir:   filepath.Dir(cfg.IndexPath()),
		Figures:   cfg.Index.Figures,
		Progress:  progress.update,
	})

	// The run executes as a tracked job so its stage and progress are
	// observable while it works.
	var (
		report *index.RunReport
		runErr error
	)
	registry := jobs.NewRegistry()
	id := registry.Submit(ctx, "index", func(jobCtx context.Context, t *jobs.Tracker) error {
		progress.tracker = t
		report, runErr = pipeline.Run(jobCtx, opts)
		return runErr
	})

	_, err = registry.Wait(ctx, id)
	progress.finish()
	if err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Indexing complete in %s\n", report.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(out, "  derived:   %d\n", report.Derived)
	_, _ = fmt.Fprintf(out, "  extracted: %d\n", report.Extracted)
	_, _ = fmt.Fprintf(out, "  upserted:  %d (%d batches)\n", report.Upserted, report.Batches)
	if !report.Checkpoint.IsZero() {
		_, _ = fmt.Fprintf(out, "  checkpoint: %s\n", report.Checkpoint.Format(time.RFC3339))
	}
	return nil
}

// progressReporter renders pipeline progress. On a TTY it drives a
// progress bar; otherwise it stays quiet and only feeds the job tracker.
type progressReporter struct {
	bar     *progressbar.ProgressBar
	tracker *jobs.Tracker
	stage   index.RunState
	enabled bool
}

func newProgressReporter(noProgress bool) *progressReporter {
	enabled := !noProgress && isatty.IsTerminal(os.Stdout.Fd())
	return &progressReporter{enabled: enabled}
}

func (p *progressReporter) update(stage index.RunState, done, total int) {
	if p.tracker != nil {
		p.tracker.SetStage(string(stage))
		p.tracker.SetProgress(done, total)
	}
	if !p.enabled {
		return
	}

	if p.bar == nil || p.stage != stage {
		p.finish()
		p.stage = stage
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(string(stage)),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(done)
}

func (p *progressReporter) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
