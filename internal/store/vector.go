package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex implements VectorIndex using the coder/hnsw pure Go HNSW graph.
// Metadata, document text, and a normalized copy of each vector are kept in
// sidecar maps so that filtered queries can be answered exactly.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig

	// ID mapping (string SKU <-> uint64 graph key)
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	// Per-ID sidecars. vectors holds the normalized vector so filtered
	// queries can compute exact distances without graph lookups.
	vectors  map[string][]float32
	metadata map[string]Metadata
	docs     map[string]string

	closed bool
}

// hnswSidecar holds everything outside the graph for persistence.
type hnswSidecar struct {
	IDMap    map[string]uint64
	NextKey  uint64
	Config   VectorIndexConfig
	Vectors  map[string][]float32
	Metadata map[string]Metadata
	Docs     map[string]string
}

// Verify interface implementation at compile time.
var _ VectorIndex = (*HNSWIndex)(nil)

// NewHNSWIndex creates an empty HNSW-backed vector index.
func NewHNSWIndex(cfg VectorIndexConfig) (*HNSWIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector index requires positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	s := &HNSWIndex{config: cfg}
	s.initGraph()
	return s, nil
}

// initGraph resets the graph and all sidecar maps. Caller holds the lock (or
// is the constructor).
func (s *HNSWIndex) initGraph() {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = s.config.M
	graph.EfSearch = s.config.EfSearch
	graph.Ml = 0.25

	s.graph = graph
	s.idMap = make(map[string]uint64)
	s.keyMap = make(map[uint64]string)
	s.nextKey = 0
	s.vectors = make(map[string][]float32)
	s.metadata = make(map[string]Metadata)
	s.docs = make(map[string]string)
}

// Upsert inserts or replaces entries keyed by ID.
func (s *HNSWIndex) Upsert(ids []string, vectors [][]float32, metas []Metadata, docs []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) || len(ids) != len(metas) || len(ids) != len(docs) {
		return fmt.Errorf("upsert length mismatch: %d ids, %d vectors, %d metadatas, %d documents",
			len(ids), len(vectors), len(metas), len(docs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	for i, id := range ids {
		if id == "" {
			return fmt.Errorf("upsert entry %d has empty ID", i)
		}
		if len(vectors[i]) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(vectors[i])}
		}
	}

	for i, id := range ids {
		// Existing IDs are lazily deleted: the old graph node is orphaned
		// rather than removed, which sidesteps coder/hnsw delete edge cases.
		if existingKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))

		s.idMap[id] = key
		s.keyMap[key] = id
		s.vectors[id] = vec
		s.metadata[id] = metas[i]
		s.docs[id] = docs[i]
	}

	return nil
}

// Query finds the k nearest live entries to query breaking through lazy
// deletions, optionally restricted by a metadata filter.
//
// Unfiltered queries use the HNSW graph. Filtered queries scan the matching
// subset exactly: facet filters are often highly selective, and an
// approximate graph walk constrained after the fact can silently miss valid
// neighbors.
func (s *HNSWIndex) Query(query []float32, k int, where Filter) ([]*Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if k <= 0 || len(s.idMap) == 0 {
		return []*Hit{}, nil
	}
	if where != nil {
		if err := where.Validate(); err != nil {
			return nil, err
		}
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	if where == nil {
		return s.graphQuery(normalized, k), nil
	}
	return s.scanQuery(normalized, k, where), nil
}

// graphQuery walks the HNSW graph. Orphaned nodes from lazy deletion are
// skipped, so the search width is padded by the current orphan count.
func (s *HNSWIndex) graphQuery(query []float32, k int) []*Hit {
	orphans := s.graph.Len() - len(s.idMap)
	width := k + orphans
	if width > s.graph.Len() {
		width = s.graph.Len()
	}

	nodes := s.graph.Search(query, width)

	hits := make([]*Hit, 0, k)
	for _, node := range nodes {
		id, live := s.keyMap[node.Key]
		if !live {
			continue
		}
		hits = append(hits, &Hit{
			ID:       id,
			Distance: s.graph.Distance(query, node.Value),
			Metadata: s.metadata[id],
			Document: s.docs[id],
		})
		if len(hits) == k {
			break
		}
	}
	return hits
}

// scanQuery computes exact distances over the filter-matching subset.
func (s *HNSWIndex) scanQuery(query []float32, k int, where Filter) []*Hit {
	hits := make([]*Hit, 0, k)
	for id := range s.idMap {
		meta := s.metadata[id]
		if !where.Match(meta) {
			continue
		}
		hits = append(hits, &Hit{
			ID:       id,
			Distance: cosineDistance(query, s.vectors[id]),
			Metadata: meta,
			Document: s.docs[id],
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Count returns the number of live entries.
func (s *HNSWIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Contains checks whether an ID exists.
func (s *HNSWIndex) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	_, exists := s.idMap[id]
	return exists
}

// AllMetadata returns a snapshot of every live entry's metadata.
func (s *HNSWIndex) AllMetadata() []Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	metas := make([]Metadata, 0, len(s.idMap))
	for id := range s.idMap {
		metas = append(metas, s.metadata[id])
	}
	return metas
}

// Reset drops all entries, keeping the configuration. Used by forced
// full rebuilds.
func (s *HNSWIndex) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}
	s.initGraph()
	return nil
}

// Save persists the graph and sidecar atomically (temp file + rename).
func (s *HNSWIndex) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	if err := s.saveSidecar(path + ".meta"); err != nil {
		return fmt.Errorf("save index sidecar: %w", err)
	}
	return nil
}

func (s *HNSWIndex) saveSidecar(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp sidecar file: %w", err)
	}

	side := hnswSidecar{
		IDMap:    s.idMap,
		NextKey:  s.nextKey,
		Config:   s.config,
		Vectors:  s.vectors,
		Metadata: s.metadata,
		Docs:     s.docs,
	}

	if err := gob.NewEncoder(file).Encode(side); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp sidecar during cleanup", slog.String("error", closeErr.Error()))
		}
		os.Remove(tmpPath)
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close sidecar file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores the graph and sidecar from disk.
func (s *HNSWIndex) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector index is closed")
	}

	if err := s.loadSidecar(path + ".meta"); err != nil {
		return fmt.Errorf("load index sidecar: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (s *HNSWIndex) loadSidecar(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open sidecar file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close sidecar file", slog.String("error", err.Error()))
		}
	}()

	var side hnswSidecar
	if err := gob.NewDecoder(file).Decode(&side); err != nil {
		return fmt.Errorf("decode sidecar: %w", err)
	}

	s.idMap = side.IDMap
	s.nextKey = side.NextKey
	s.config = side.Config
	s.vectors = side.Vectors
	s.metadata = side.Metadata
	s.docs = side.Docs

	s.keyMap = make(map[uint64]string, len(s.idMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	return nil
}

// Close releases resources.
func (s *HNSWIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// IndexExists reports whether a persisted index (graph + sidecar) is present
// at path. A missing index is the normal state before the first run; queries
// against it return empty results.
func IndexExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	_, err := os.Stat(path + ".meta")
	return err == nil
}

// normalizeInPlace normalizes a vector to unit length in place.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// cosineDistance computes 1 - dot(a, b) for unit vectors (range 0-2).
func cosineDistance(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return 1 - dot
}
