package embed

import "time"

const (
	// DefaultOllamaHost is the local Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is mxbai-embed-large, an asymmetric retrieval
	// model: queries get an instruction prefix, documents do not.
	DefaultOllamaModel = "mxbai-embed-large"

	// OllamaConnectTimeout bounds the initial health check.
	OllamaConnectTimeout = 5 * time.Second

	// OllamaPoolSize sizes the HTTP connection pool.
	OllamaPoolSize = 4

	// DefaultRequestsPerSecond throttles embedding calls so sustained
	// indexing runs do not starve an Ollama instance shared with other
	// workloads. Zero disables throttling.
	DefaultRequestsPerSecond = 10
)

// FallbackOllamaModels are tried in order if the primary model is not
// installed. All are general text retrieval models suited to product copy.
var FallbackOllamaModels = []string{
	"nomic-embed-text",
	"embeddinggemma",
}

// OllamaConfig configures the Ollama embedder. Zero values fall back to the
// package defaults.
type OllamaConfig struct {
	Host              string                     // API endpoint
	Model             string                     // embedding model name
	FallbackModels    []string                   // tried in order when Model is missing
	Dimensions        int                        // 0 auto-detects from a probe call
	BatchSize         int                        // texts per /api/embed request
	MaxRetries        int                        // attempts for transient failures
	PoolSize          int                        // HTTP connection pool size
	RequestsPerSecond float64                    // 0 disables the rate limit
	SkipHealthCheck   bool                       // skip startup probing, used by tests
	ProgressFunc      func(completed, total int) // batch progress callback
}

func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:              DefaultOllamaHost,
		Model:             DefaultOllamaModel,
		FallbackModels:    FallbackOllamaModels,
		BatchSize:         DefaultBatchSize,
		MaxRetries:        DefaultMaxRetries,
		PoolSize:          OllamaPoolSize,
		RequestsPerSecond: DefaultRequestsPerSecond,
	}
}

// OllamaEmbedRequest is the /api/embed request body. Input takes a bare
// string or a string array.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// OllamaEmbedResponse is the /api/embed response body.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaModelListResponse is the /api/tags response body.
type OllamaModelListResponse struct {
	Models []OllamaModelInfo `json:"models"`
}

// OllamaModelInfo is one installed model from /api/tags.
type OllamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
