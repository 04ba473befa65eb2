package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ProviderType selects an embedding backend.
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings (default)
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (offline fallback)
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates an embedder for the given provider. The VAB_EMBEDDER
// environment variable overrides the configured provider:
//   - "ollama": use the Ollama API
//   - "static": use hash-based embeddings (no network)
//
// When Ollama is explicitly requested but unreachable the error propagates;
// with automatic selection the static embedder is used with a warning, so
// queries keep working offline against an existing index.
//
// Embedding caching is enabled by default. Set VAB_EMBED_CACHE=false to
// disable it.
func NewEmbedder(ctx context.Context, provider ProviderType, cfg OllamaConfig) (Embedder, error) {
	explicit := false
	if env := os.Getenv("VAB_EMBEDDER"); env != "" {
		provider = ProviderType(strings.ToLower(env))
		explicit = true
	}

	var embedder Embedder
	switch provider {
	case ProviderStatic:
		embedder = NewStaticEmbedder()

	case ProviderOllama, "":
		ollama, err := NewOllamaEmbedder(ctx, cfg)
		if err != nil {
			if explicit {
				return nil, err
			}
			slog.Warn("ollama unavailable, falling back to static embedder",
				slog.String("error", err.Error()))
			embedder = NewStaticEmbedder()
		} else {
			embedder = ollama
		}

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}

	if strings.EqualFold(os.Getenv("VAB_EMBED_CACHE"), "false") {
		return embedder, nil
	}
	return NewCachedEmbedder(embedder, DefaultEmbeddingCacheSize), nil
}

// Provider shares one lazily constructed Embedder per process. The indexing
// and query pipelines embed through the same instance, so the model is
// initialized at most once no matter which pipeline touches it first.
type Provider struct {
	mu       sync.Mutex
	embedder *sharedEmbedder
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Get returns the shared embedder, constructing it with build on first use.
// A failed construction is not cached; the next call retries.
func (p *Provider) Get(ctx context.Context, build func(context.Context) (Embedder, error)) (Embedder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.embedder != nil {
		return p.embedder, nil
	}
	embedder, err := build(ctx)
	if err != nil {
		return nil, err
	}
	p.embedder = &sharedEmbedder{Embedder: embedder}
	return p.embedder, nil
}

// Close releases the underlying embedder. Subsequent Get calls construct a
// fresh one.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.embedder == nil {
		return nil
	}
	err := p.embedder.Embedder.Close()
	p.embedder = nil
	return err
}

// sharedEmbedder swallows Close so one pipeline finishing does not tear the
// embedder down under the other. The Provider owns the real Close.
type sharedEmbedder struct {
	Embedder
}

func (s *sharedEmbedder) Close() error { return nil }
