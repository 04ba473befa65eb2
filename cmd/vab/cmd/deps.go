package cmd

import (
	"context"
	"fmt"

	"github.com/vabrowser/vab/internal/config"
	"github.com/vabrowser/vab/internal/embed"
	"github.com/vabrowser/vab/internal/store"
)

// embedderProvider shares one lazily built embedder across commands running
// in this process.
var embedderProvider = embed.NewProvider()

// newEmbedder returns the process-shared embedder, building it from the
// configuration on first use.
func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	return embedderProvider.Get(ctx, func(ctx context.Context) (embed.Embedder, error) {
		return buildEmbedder(ctx, cfg)
	})
}

func buildEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	ollamaCfg := embed.DefaultOllamaConfig()
	if cfg.Embeddings.Model != "" {
		ollamaCfg.Model = cfg.Embeddings.Model
	}
	if cfg.Embeddings.OllamaHost != "" {
		ollamaCfg.Host = cfg.Embeddings.OllamaHost
	}
	if cfg.Embeddings.Dimensions > 0 {
		ollamaCfg.Dimensions = cfg.Embeddings.Dimensions
	}
	if cfg.Embeddings.BatchSize > 0 {
		ollamaCfg.BatchSize = cfg.Embeddings.BatchSize
	}
	if cfg.Embeddings.RequestsPerSecond > 0 {
		ollamaCfg.RequestsPerSecond = cfg.Embeddings.RequestsPerSecond
	}

	embedder, err := embed.NewEmbedder(ctx, embed.ProviderType(cfg.Embeddings.Provider), ollamaCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}
	return embedder, nil
}

// openIndex creates a vector index with the given dimensions and loads the
// persisted state when present. Returns nil when no index exists and
// mustExist is false, so read paths can serve empty results.
func openIndex(cfg *config.Config, dimensions int, mustExist bool) (*store.HNSWIndex, error) {
	path := cfg.IndexPath()
	if !store.IndexExists(path) {
		if mustExist {
			return nil, fmt.Errorf("no index found at %s. Run 'vab index' first", path)
		}
		return nil, nil
	}

	idx, err := store.NewHNSWIndex(store.VectorIndexConfig{Dimensions: dimensions})
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	if err := idx.Load(path); err != nil {
		return nil, fmt.Errorf("loading vector index from %s: %w", path, err)
	}
	return idx, nil
}

// openCatalog opens the catalog store.
func openCatalog(cfg *config.Config) (*store.CatalogStore, error) {
	catalog, err := store.NewCatalogStore(cfg.CatalogPath())
	if err != nil {
		return nil, fmt.Errorf("opening catalog at %s: %w", cfg.CatalogPath(), err)
	}
	return catalog, nil
}
