package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync/atomic"
)

// StaticEmbedder hashes text into a fixed-size vector with no network and no
// model download. Deterministic and fast at the cost of semantic quality; it
// keeps queries and tests working when Ollama is unreachable.
type StaticEmbedder struct {
	closed atomic.Bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// High-frequency words that carry no signal in product copy.
var englishStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "in": true, "is": true, "it": true, "its": true,
	"of": true, "on": true, "or": true, "that": true, "the": true,
	"this": true, "to": true, "was": true, "will": true, "with": true,
}

// Whole words dominate the vector; character trigrams contribute a smaller
// share so partial-word matches still overlap.
const (
	wordWeight    = 0.7
	trigramWeight = 0.3
	trigramLen    = 3
)

var wordPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed hashes one text into a unit vector. The query flag is accepted for
// interface compatibility; hash embeddings are symmetric.
func (e *StaticEmbedder) Embed(ctx context.Context, text string, query bool) ([]float32, error) {
	if e.closed.Load() {
		return nil, fmt.Errorf("embedder is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return make([]float32, StaticDimensions), nil
	}
	return normalizeVector(e.hashVector(text)), nil
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string, query bool) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t, query)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// hashVector accumulates word and trigram buckets into a raw vector.
func (e *StaticEmbedder) hashVector(text string) []float32 {
	vec := make([]float32, StaticDimensions)

	for _, w := range wordPattern.FindAllString(text, -1) {
		w = strings.ToLower(w)
		if englishStopWords[w] {
			continue
		}
		vec[bucket(w)] += wordWeight
	}

	lower := strings.ToLower(text)
	for i := 0; i+trigramLen <= len(lower); i++ {
		gram := lower[i : i+trigramLen]
		if strings.ContainsAny(gram, " \t\n") {
			continue
		}
		vec[bucket(gram)] += trigramWeight
	}

	return vec
}

// bucket maps a string to a vector slot via FNV-1a.
func bucket(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(StaticDimensions))
}

func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

func (e *StaticEmbedder) ModelName() string { return "static-hash-v1" }

func (e *StaticEmbedder) Available(ctx context.Context) bool {
	return !e.closed.Load()
}

func (e *StaticEmbedder) Close() error {
	e.closed.Store(true)
	return nil
}
