package embed

import (
	"context"
	"math"
	"strings"
	"time"
)

const (
	// DefaultBatchSize is how many texts go into one embedding request.
	DefaultBatchSize = 32

	// DefaultWarmTimeout applies while the model is resident in memory.
	DefaultWarmTimeout = 60 * time.Second

	// DefaultColdTimeout applies when the model may still need loading,
	// which can take Ollama over a minute for large models.
	DefaultColdTimeout = 180 * time.Second

	// ModelUnloadThreshold is how long after the last call the model is
	// treated as cold again. Ollama evicts idle models after about five
	// minutes.
	ModelUnloadThreshold = 5 * time.Minute

	// DefaultMaxRetries bounds attempts against a flaky embedding server.
	DefaultMaxRetries = 3

	// DefaultDimensions matches mxbai-embed-large output.
	DefaultDimensions = 1024

	// StaticDimensions is the vector size of the offline hash embedder.
	StaticDimensions = 256
)

// mxbaiQueryPrefix is the retrieval instruction the mxbai model family was
// trained with. It is prepended to queries only, never to documents.
const mxbaiQueryPrefix = "Represent this sentence for searching relevant passages: "

// Embedder turns text into vectors. The query flag marks search queries as
// opposed to catalog documents; asymmetric models embed the two differently.
type Embedder interface {
	Embed(ctx context.Context, text string, query bool) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, query bool) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// applyQueryPrefix rewrites a query text for asymmetric retrieval models.
// Document texts pass through unchanged.
func applyQueryPrefix(model, text string, query bool) string {
	if query && strings.Contains(strings.ToLower(model), "mxbai") {
		return mxbaiQueryPrefix + text
	}
	return text
}

// normalizeVector scales v to unit length. Zero vectors come back unchanged.
func normalizeVector(v []float32) []float32 {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sq)
	if norm == 0 {
		return v
	}

	scaled := make([]float32, len(v))
	for i, x := range v {
		scaled[i] = float32(float64(x) / norm)
	}
	return scaled
}
