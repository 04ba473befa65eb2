// Package store provides the persistence layer: the HNSW vector index with
// metadata filtering, the SQLite catalog staging table, and the indexing
// checkpoint file.
package store

import (
	"fmt"
	"time"
)

// ListSeparator joins multi-valued product fields into the single string form
// stored in catalog rows and index metadata. Facet "contains" predicates match
// against these joined strings.
const ListSeparator = ","

// Product is a catalog row keyed by SKU. Multi-valued fields are slices in
// memory and comma-joined strings at rest.
type Product struct {
	SKU               string
	URL               string
	ImageURL          string
	Name              string
	Artists           []string
	Price             string
	Description       string
	ContentType       string // raw vendor content-type string, input to classification
	Tags              []string
	RawCompatibility  string // formal compatibility string from the vendor, verbatim
	CompatibleFigures []string
	Category          string // empty = unclassified
	Subcategories     []string
	EmbeddingText     string
	Mature            bool
	LastUpdated       time.Time
	EnrichedAt        time.Time // zero = never enriched
}

// Indexable reports whether the product can be embedded and upserted.
// An empty SKU is a hard data error surfaced by the indexing pipeline;
// a missing embedding text simply excludes the row from extraction.
func (p *Product) Indexable() bool {
	return p.SKU != "" && p.EmbeddingText != ""
}

// Metadata is the scalar facet snapshot stored alongside each vector.
// Values must be string, int, int64, float64, or bool; CleanMetadata in the
// derive package enforces this before upsert.
type Metadata map[string]any

// GetString returns the metadata value for key as a string, or "" when the
// key is absent or not a string. Sorting and filtering both fall back to the
// empty string for missing fields.
func (m Metadata) GetString(key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Hit is a single vector query result.
type Hit struct {
	ID       string   `json:"id"`
	Distance float32  `json:"distance"` // cosine distance, lower is more similar
	Metadata Metadata `json:"metadata"`
	Document string   `json:"-"`
}

// VectorIndexConfig configures the vector index.
type VectorIndexConfig struct {
	// Dimensions is the embedding dimension (e.g. 1024 for mxbai-embed-large).
	Dimensions int

	// M is HNSW max connections per layer (default: 16).
	M int

	// EfSearch is HNSW query-time search width (default: 20).
	EfSearch int
}

// DefaultVectorIndexConfig returns sensible defaults for the vector index.
func DefaultVectorIndexConfig(dimensions int) VectorIndexConfig {
	return VectorIndexConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   20,
	}
}

// VectorIndex is the persistent SKU-keyed collection of vector + metadata +
// document text. Upsert is idempotent per ID, which makes indexing runs safely
// re-runnable.
type VectorIndex interface {
	// Upsert inserts or replaces entries. ids, vectors, metas, and docs must
	// have equal length.
	Upsert(ids []string, vectors [][]float32, metas []Metadata, docs []string) error

	// Query finds the k nearest neighbors of query, optionally restricted to
	// entries whose metadata matches where. A nil where means no restriction.
	// Results are ordered by ascending distance.
	Query(query []float32, k int, where Filter) ([]*Hit, error)

	// Count returns the number of live entries.
	Count() int

	// AllMetadata returns a snapshot of every entry's metadata, used by the
	// stats aggregator.
	AllMetadata() []Metadata

	// Reset drops all entries, keeping the configuration.
	Reset() error

	// Persistence.
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector whose dimension does not match the
// index configuration.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'vab index --force')", e.Expected, e.Got)
}
