// Package index drives incremental catalog indexing: it derives searchable
// fields for new products, embeds changed rows in batches, upserts them into
// the vector index, and advances a durable checkpoint only after the index
// has been persisted.
package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/vabrowser/vab/internal/derive"
	"github.com/vabrowser/vab/internal/embed"
	vaberrors "github.com/vabrowser/vab/internal/errors"
	"github.com/vabrowser/vab/internal/store"
)

// DefaultBatchSize is the number of products embedded and upserted per batch.
const DefaultBatchSize = 512

// ProgressFunc receives per-stage progress updates during a run.
type ProgressFunc func(stage RunState, done, total int)

// Config wires a Pipeline's collaborators together.
type Config struct {
	// BatchSize is the number of rows per embed/upsert batch.
	// Zero means DefaultBatchSize.
	BatchSize int
	// IndexPath is where the vector index is persisted on commit.
	IndexPath string
	// LockDir holds the run lock file. Empty means IndexPath's directory.
	LockDir string
	// Figures is the known-figure vocabulary used for compatibility
	// derivation.
	Figures []string
	// Progress, when set, receives progress updates. Called from the
	// run's own goroutine.
	Progress ProgressFunc
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// RunOptions controls a single indexing run.
type RunOptions struct {
	// Force resets the vector index and reindexes the whole catalog,
	// ignoring the checkpoint.
	Force bool
	// All re-derives fields even for rows that already have them.
	All bool
	// Limit caps the number of rows processed per phase. Zero means no cap.
	Limit int
	// Phase selects derivation, embedding, or both. Empty means PhaseAll.
	Phase Phase
}

// RunReport summarizes a completed or failed run.
type RunReport struct {
	State      RunState      `json:"state"`
	Derived    int           `json:"derived"`
	Extracted  int           `json:"extracted"`
	Embedded   int           `json:"embedded"`
	Upserted   int           `json:"upserted"`
	Batches    int           `json:"batches"`
	Checkpoint time.Time     `json:"checkpoint,omitzero"`
	Duration   time.Duration `json:"duration"`
}

// Pipeline runs incremental indexing over a product catalog.
type Pipeline struct {
	catalog    *store.CatalogStore
	checkpoint store.CheckpointStore
	index      store.VectorIndex
	embedder   embed.Embedder
	cfg        Config
	logger     *slog.Logger

	mu    sync.Mutex
	state RunState
}

// NewPipeline creates a pipeline over the given stores and embedder.
func NewPipeline(catalog *store.CatalogStore, checkpoint store.CheckpointStore, idx store.VectorIndex, embedder embed.Embedder, cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.LockDir == "" {
		cfg.LockDir = filepath.Dir(cfg.IndexPath)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		catalog:    catalog,
		checkpoint: checkpoint,
		index:      idx,
		embedder:   embedder,
		cfg:        cfg,
		logger:     logger.With("component", "index"),
		state:      StateIdle,
	}
}

// State returns the pipeline's current run state.
func (p *Pipeline) State() RunState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s RunState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pipeline) progress(stage RunState, done, total int) {
	if p.cfg.Progress != nil {
		p.cfg.Progress(stage, done, total)
	}
}

// Run executes one indexing run. Only one run may execute at a time per
// index directory; concurrent runs fail with ERR_505_RUN_IN_PROGRESS.
// The checkpoint advances only after the index has been saved, so a
// failed run leaves the next run with the same work to redo.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	phase := opts.Phase
	if phase == "" {
		phase = PhaseAll
	}
	if !phase.Valid() {
		return nil, vaberrors.ValidationError("unknown phase: "+string(phase), nil).
			WithSuggestion("Use one of: all, etl, embed")
	}

	lock := NewRunLock(p.cfg.LockDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, vaberrors.InternalError("acquiring run lock", err)
	}
	if !acquired {
		return nil, vaberrors.New(vaberrors.ErrCodeRunInProgress,
			"another indexing run holds the lock", nil).
			WithDetail("lock", lock.Path()).
			WithSuggestion("Wait for the other run to finish")
	}
	defer lock.Unlock()

	started := time.Now()
	report := &RunReport{}

	fail := func(runErr error) (*RunReport, error) {
		p.setState(StateFailed)
		report.State = StateFailed
		report.Duration = time.Since(started)
		p.logger.Error("indexing run failed", "error", runErr, "duration", report.Duration)
		return report, runErr
	}

	if opts.Force {
		if err := p.index.Reset(); err != nil {
			return fail(vaberrors.Wrap(vaberrors.ErrCodeIndexFailed, err))
		}
		p.logger.Info("index reset, full reindex forced")
	}

	if phase == PhaseAll || phase == PhaseETL {
		n, err := p.runDerive(ctx, opts)
		if err != nil {
			return fail(err)
		}
		report.Derived = n
	}

	if phase == PhaseAll || phase == PhaseEmbed {
		if err := p.runEmbed(ctx, opts, report); err != nil {
			return fail(err)
		}
	}

	p.setState(StateDone)
	report.State = StateDone
	report.Duration = time.Since(started)
	p.logger.Info("indexing run complete",
		"derived", report.Derived,
		"extracted", report.Extracted,
		"upserted", report.Upserted,
		"batches", report.Batches,
		"duration", report.Duration)
	return report, nil
}

// runDerive fills in embedding text, category, and compatible figures for
// rows that need them.
func (p *Pipeline) runDerive(ctx context.Context, opts RunOptions) (int, error) {
	p.setState(StateExtracting)

	rows, err := p.catalog.NeedingDerivation(ctx, opts.All, opts.Limit)
	if err != nil {
		return 0, vaberrors.DataError("loading rows needing derivation", err)
	}
	p.logger.Info("deriving fields", "rows", len(rows))

	now := time.Now().UTC()
	for i, prod := range rows {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		category, subs := derive.ClassifyCategory(prod.ContentType)
		figures := derive.Compatibility(prod.RawCompatibility, prod.Name, prod.Description, p.cfg.Figures)
		text := derive.EmbeddingText(derive.TextInput{
			Name:        prod.Name,
			Artists:     prod.Artists,
			ContentType: prod.ContentType,
			Description: prod.Description,
		})

		if err := p.catalog.StoreDerived(ctx, prod.SKU, text, category, subs, figures, now); err != nil {
			return i, vaberrors.DataError("storing derived fields for "+prod.SKU, err)
		}
		p.progress(StateExtracting, i+1, len(rows))
	}
	return len(rows), nil
}

// runEmbed extracts changed rows, embeds and upserts them in batches, then
// saves the index and commits the checkpoint.
func (p *Pipeline) runEmbed(ctx context.Context, opts RunOptions, report *RunReport) error {
	p.setState(StateExtracting)

	// Captured before any batch work so changes landing mid-run are
	// picked up again next time.
	runStart := time.Now().UTC()

	since := time.Unix(0, 0).UTC()
	if !opts.Force {
		cp, err := p.checkpoint.Load()
		if err != nil {
			return vaberrors.New(vaberrors.ErrCodeCheckpointCorrupt, "loading checkpoint", err)
		}
		since = cp
	}

	products, err := p.catalog.ChangedSince(ctx, since, opts.Limit)
	if err != nil {
		return vaberrors.DataError("extracting changed rows", err)
	}
	report.Extracted = len(products)
	p.logger.Info("extracted changed rows", "rows", len(products), "since", since)

	for _, prod := range products {
		if prod.SKU == "" {
			return vaberrors.New(vaberrors.ErrCodeEmptySKU,
				"catalog row with empty SKU cannot be indexed", nil).
				WithSuggestion("Fix the catalog import; SKUs are the index identity")
		}
	}

	for start := 0; start < len(products); start += p.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + p.cfg.BatchSize
		if end > len(products) {
			end = len(products)
		}
		batch := products[start:end]

		p.setState(StateEmbedding)
		texts := make([]string, len(batch))
		for i, prod := range batch {
			texts[i] = prod.EmbeddingText
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts, false)
		if err != nil {
			return vaberrors.Wrap(vaberrors.ErrCodeEmbeddingFailed, err)
		}
		report.Embedded += len(vectors)
		p.progress(StateEmbedding, report.Embedded, len(products))

		p.setState(StateUpserting)
		ids := make([]string, len(batch))
		metas := make([]store.Metadata, len(batch))
		for i, prod := range batch {
			ids[i] = prod.SKU
			metas[i] = derive.CleanMetadata(derive.Metadata(prod))
		}
		if err := p.index.Upsert(ids, vectors, metas, texts); err != nil {
			return vaberrors.Wrap(vaberrors.ErrCodeIndexFailed, err)
		}
		report.Upserted += len(batch)
		report.Batches++
		p.progress(StateUpserting, report.Upserted, len(products))

		p.logger.Debug("batch upserted",
			"batch", report.Batches,
			"rows", len(batch),
			"index_size", p.index.Count())
	}

	p.setState(StateCommitting)
	if report.Upserted > 0 || opts.Force {
		if err := p.index.Save(p.cfg.IndexPath); err != nil {
			return vaberrors.Wrap(vaberrors.ErrCodeIndexFailed, err)
		}
	}
	if err := p.checkpoint.Commit(runStart); err != nil {
		return vaberrors.New(vaberrors.ErrCodeCheckpointCorrupt, "committing checkpoint", err)
	}
	report.Checkpoint = runStart
	return nil
}
