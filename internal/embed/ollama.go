package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	vaberrors "github.com/vabrowser/vab/internal/errors"
)

// OllamaEmbedder talks to a local Ollama server over its /api/embed endpoint.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	modelName string
	dims      int
	limiter   *rate.Limiter
	breaker   *vaberrors.CircuitBreaker

	mu        sync.RWMutex
	closed    bool
	warmSince time.Time // last successful call, picks warm vs cold timeout
}

var _ Embedder = (*OllamaEmbedder)(nil)

func fillOllamaDefaults(cfg OllamaConfig) OllamaConfig {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.FallbackModels == nil {
		cfg.FallbackModels = FallbackOllamaModels
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = OllamaPoolSize
	}
	return cfg
}

// newPoolTransport builds the HTTP transport for the embedder. Idle
// connections expire fast so short CLI runs do not leave sockets behind.
func newPoolTransport(pool int, dropKeepAlives bool) *http.Transport {
	return &http.Transport{
		MaxIdleConns:        pool,
		MaxIdleConnsPerHost: pool,
		MaxConnsPerHost:     pool * 2,
		IdleConnTimeout:     10 * time.Second,
		DisableKeepAlives:   dropKeepAlives,
	}
}

// NewOllamaEmbedder connects to Ollama, resolves a usable embedding model
// and probes its output dimensions unless the config pins them.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	cfg = fillOllamaDefaults(cfg)

	transport := newPoolTransport(cfg.PoolSize, false)

	// Request deadlines come from per-call contexts so the warm and cold
	// timeouts can differ; a client-level timeout would flatten them.
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BatchSize)
	}

	e := &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
		limiter:   limiter,
		breaker: vaberrors.NewCircuitBreaker("ollama",
			vaberrors.WithMaxFailures(5),
			vaberrors.WithResetTimeout(30*time.Second)),
	}

	if !cfg.SkipHealthCheck {
		// A cold model can take well over a minute to load.
		probeCtx, cancel := context.WithTimeout(ctx, DefaultColdTimeout)
		defer cancel()

		name, err := e.resolveModel(probeCtx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, fmt.Errorf("failed to connect to Ollama or find model: %w", err)
		}
		e.modelName = name

		if e.dims == 0 {
			dims, err := e.probeDimensions(probeCtx)
			if err != nil {
				transport.CloseIdleConnections()
				return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
			}
			e.dims = dims
		}
	}

	if e.dims == 0 {
		e.dims = DefaultDimensions
	}
	return e, nil
}

// installedModels asks the server for its model inventory.
func (e *OllamaEmbedder) installedModels(ctx context.Context) ([]OllamaModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(detail))
	}

	var listing OllamaModelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return listing.Models, nil
}

// resolveModel matches the configured model, then each fallback, against the
// installed inventory. Matching ignores case and a missing ":tag" suffix.
func (e *OllamaEmbedder) resolveModel(ctx context.Context) (string, error) {
	installed, err := e.installedModels(ctx)
	if err != nil {
		return "", err
	}

	byName := make(map[string]string, len(installed)*2)
	for _, m := range installed {
		lower := strings.ToLower(m.Name)
		byName[lower] = m.Name
		if base, _, found := strings.Cut(lower, ":"); found {
			if _, taken := byName[base]; !taken {
				byName[base] = m.Name
			}
		}
	}

	candidates := append([]string{e.config.Model}, e.config.FallbackModels...)
	for i, want := range candidates {
		key := strings.ToLower(want)
		actual, ok := byName[key]
		if !ok {
			base, _, _ := strings.Cut(key, ":")
			actual, ok = byName[base]
		}
		if !ok {
			continue
		}
		if i > 0 {
			slog.Warn("primary embedding model unavailable, using fallback",
				slog.String("primary", e.config.Model),
				slog.String("fallback", actual))
		}
		return actual, nil
	}

	return "", fmt.Errorf("no embedding model available (tried %s and %v)", e.config.Model, e.config.FallbackModels)
}

// probeDimensions embeds a throwaway string to learn the model's vector size.
func (e *OllamaEmbedder) probeDimensions(ctx context.Context) (int, error) {
	vecs, err := e.requestEmbeddings(ctx, []string{"dimension detection"})
	if err != nil {
		return 0, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("empty embedding returned")
	}
	return len(vecs[0]), nil
}

func (e *OllamaEmbedder) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

func (e *OllamaEmbedder) zeroVector() []float32 {
	return make([]float32, e.dims)
}

// Embed generates an embedding for a single text. The text goes to the model
// as-is; prompts are never rewritten beyond the query prefix, an empty prompt
// included.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string, query bool) ([]float32, error) {
	if e.isClosed() {
		return nil, fmt.Errorf("embedder is closed")
	}

	vecs, err := e.embedWithRetry(ctx, []string{applyQueryPrefix(e.modelName, text, query)})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vecs[0], nil
}

// EmbedBatch embeds many texts, splitting the work into server-side batches.
// Blank texts stay local as zero vectors and keep their positions.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string, query bool) ([][]float32, error) {
	if e.isClosed() {
		return nil, fmt.Errorf("embedder is closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	type slot struct {
		pos  int
		text string
	}
	results := make([][]float32, len(texts))
	var pending []slot
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = e.zeroVector()
			continue
		}
		pending = append(pending, slot{i, applyQueryPrefix(e.modelName, text, query)})
	}
	if len(pending) == 0 {
		return results, nil
	}

	for start := 0; start < len(pending); start += e.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+e.config.BatchSize, len(pending))
		chunk := pending[start:end]
		payload := make([]string, len(chunk))
		for i, s := range chunk {
			payload[i] = s.text
		}

		vecs, err := e.embedWithRetry(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}
		for i, v := range vecs {
			results[chunk[i].pos] = v
		}

		if e.config.ProgressFunc != nil {
			e.config.ProgressFunc(end, len(pending))
		}
	}

	return results, nil
}

// requestTimeout picks the cold timeout when the model has likely been
// unloaded since the last call, the warm one otherwise.
func (e *OllamaEmbedder) requestTimeout() time.Duration {
	e.mu.RLock()
	last := e.warmSince
	e.mu.RUnlock()

	if last.IsZero() || time.Since(last) > ModelUnloadThreshold {
		return DefaultColdTimeout
	}
	return DefaultWarmTimeout
}

func (e *OllamaEmbedder) markWarm() {
	e.mu.Lock()
	e.warmSince = time.Now()
	e.mu.Unlock()
}

// embedWithRetry wraps requestEmbeddings with rate limiting, the circuit
// breaker and jittered exponential backoff.
func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	if !e.breaker.Allow() {
		return nil, fmt.Errorf("embedding service unavailable: %w", vaberrors.ErrCircuitOpen)
	}

	retryCfg := vaberrors.RetryConfig{
		MaxRetries:   max(e.config.MaxRetries-1, 0), // retries beyond the initial attempt
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}

	attempt := 0
	return vaberrors.RetryWithResult(ctx, retryCfg, func() ([][]float32, error) {
		attempt++
		if !e.breaker.Allow() {
			return nil, fmt.Errorf("embedding service unavailable: %w", vaberrors.ErrCircuitOpen)
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, e.requestTimeout())
		vecs, err := e.requestEmbeddings(callCtx, texts)
		cancel()

		if err != nil {
			e.breaker.RecordFailure()
			slog.Debug("embedding_attempt_failed",
				slog.Int("attempt", attempt),
				slog.Int("texts_count", len(texts)),
				slog.String("error", err.Error()))
			return nil, err
		}
		e.breaker.RecordSuccess()
		e.markWarm()
		return vecs, nil
	})
}

// requestEmbeddings performs one /api/embed call. The request runs in its own
// goroutine so a cancelled context returns immediately instead of waiting out
// a slow server.
func (e *OllamaEmbedder) requestEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	// The endpoint accepts either a bare string or an array.
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(OllamaEmbedRequest{Model: e.modelName, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	type outcome struct {
		vecs [][]float32
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		vecs, err := e.roundTrip(req)
		done <- outcome{vecs, err}
	}()

	select {
	case <-ctx.Done():
		// Tear down connections so the in-flight request unblocks.
		e.ForceCloseConnections()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
		return nil, ctx.Err()
	case out := <-done:
		return out.vecs, out.err
	}
}

func (e *OllamaEmbedder) roundTrip(req *http.Request) ([][]float32, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(detail))
	}

	var decoded OllamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	vecs := make([][]float32, len(decoded.Embeddings))
	for i, raw := range decoded.Embeddings {
		v := make([]float32, len(raw))
		for j, x := range raw {
			v[j] = float32(x)
		}
		vecs[i] = normalizeVector(v)
	}
	return vecs, nil
}

func (e *OllamaEmbedder) Dimensions() int { return e.dims }

func (e *OllamaEmbedder) ModelName() string { return e.modelName }

// Available reports whether the server is reachable and still lists the
// resolved model.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	if e.isClosed() {
		return false
	}

	installed, err := e.installedModels(ctx)
	if err != nil {
		return false
	}

	want := strings.ToLower(e.modelName)
	for _, m := range installed {
		have := strings.ToLower(m.Name)
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return true
		}
	}
	return false
}

// SetProgressFunc installs a callback invoked after each completed batch.
func (e *OllamaEmbedder) SetProgressFunc(fn func(completed, total int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.ProgressFunc = fn
}

func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if e.transport != nil {
		e.transport.CloseIdleConnections()
	}
	return nil
}

// ForceCloseConnections drops every connection, active ones included, by
// swapping in a fresh transport. Pending reads fail fast so Ctrl+C does not
// hang on a slow embed call.
func (e *OllamaEmbedder) ForceCloseConnections() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.transport == nil {
		return
	}
	e.transport.CloseIdleConnections()
	e.transport = newPoolTransport(e.config.PoolSize, true)
	e.client.Transport = e.transport
}
