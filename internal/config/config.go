// Package config loads vab configuration from defaults, the user config
// file, the project config file, and VAB_* environment variables, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete vab configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	LogLevel   string           `yaml:"log_level" json:"log_level"`
}

// PathsConfig locates the catalog database and index artifacts.
// Relative paths are resolved against DataDir.
type PathsConfig struct {
	// DataDir is the root for all vab state. Default: ~/.vab
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// Catalog is the SQLite catalog database file.
	Catalog string `yaml:"catalog" json:"catalog"`
	// Index is the persisted vector index file.
	Index string `yaml:"index" json:"index"`
	// Checkpoint is the indexing checkpoint file.
	Checkpoint string `yaml:"checkpoint" json:"checkpoint"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama", "static", or empty for
	// auto-detection (Ollama when reachable, static otherwise).
	Provider string `yaml:"provider" json:"provider"`
	// Model is the Ollama embedding model.
	Model string `yaml:"model" json:"model"`
	// OllamaHost is the Ollama API endpoint. Empty uses the default
	// http://localhost:11434
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// Dimensions is the embedding dimension. Zero auto-detects from the
	// model.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// BatchSize is texts per embedding request batch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// RequestsPerSecond rate-limits embedding calls. Zero disables
	// limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
}

// SearchConfig tunes query behavior.
type SearchConfig struct {
	// Limit is the default page size.
	Limit int `yaml:"limit" json:"limit"`
	// ScoreThreshold is the maximum cosine distance a hit may have.
	ScoreThreshold float64 `yaml:"score_threshold" json:"score_threshold"`
	// OverFetchMultiplier and OverFetchFloor size the candidate pool
	// fetched before post-filtering: (offset+limit)*multiplier + floor.
	OverFetchMultiplier int `yaml:"over_fetch_multiplier" json:"over_fetch_multiplier"`
	OverFetchFloor      int `yaml:"over_fetch_floor" json:"over_fetch_floor"`
}

// IndexConfig tunes indexing runs.
type IndexConfig struct {
	// BatchSize is products per embed/upsert batch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// Figures is the known-figure vocabulary for compatibility
	// derivation. FiguresFile, when set, replaces it at load time.
	Figures []string `yaml:"figures" json:"figures"`
	// FiguresFile points at a JSON array of figure names.
	FiguresFile string `yaml:"figures_file" json:"figures_file"`
}

// defaultFigures seeds compatibility derivation when no figures file is
// configured.
var defaultFigures = []string{
	"Genesis 9",
	"Genesis 8.1",
	"Genesis 8",
	"Genesis 3",
	"Genesis 2",
	"Victoria 9",
	"Victoria 8",
	"Michael 9",
	"Michael 8",
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:    defaultDataDir(),
			Catalog:    "catalog.db",
			Index:      "vectors.idx",
			Checkpoint: "checkpoint",
		},
		Embeddings: EmbeddingsConfig{
			Provider:          "",
			Model:             "mxbai-embed-large",
			OllamaHost:        "",
			Dimensions:        0,
			BatchSize:         32,
			RequestsPerSecond: 10,
		},
		Search: SearchConfig{
			Limit:               10,
			ScoreThreshold:      1.0,
			OverFetchMultiplier: 5,
			OverFetchFloor:      20,
		},
		Index: IndexConfig{
			BatchSize: 512,
			Figures:   defaultFigures,
		},
		LogLevel: "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".vab")
	}
	return filepath.Join(home, ".vab")
}

// CatalogPath returns the absolute catalog database path.
func (c *Config) CatalogPath() string { return c.resolve(c.Paths.Catalog) }

// IndexPath returns the absolute vector index path.
func (c *Config) IndexPath() string { return c.resolve(c.Paths.Index) }

// CheckpointPath returns the absolute checkpoint file path.
func (c *Config) CheckpointPath() string { return c.resolve(c.Paths.Checkpoint) }

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Paths.DataDir, path)
}

// GetUserConfigPath returns the path to the user configuration file,
// following the XDG Base Directory layout.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vab", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "vab", "config.yaml")
	}
	return filepath.Join(home, ".config", "vab", "config.yaml")
}

// Load loads configuration for the given project directory. Precedence,
// lowest to highest:
//  1. Hardcoded defaults
//  2. User config (~/.config/vab/config.yaml)
//  3. Project config (.vab.yaml in dir)
//  4. VAB_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if cfg.Index.FiguresFile != "" {
		figures, err := LoadFigures(cfg.Index.FiguresFile)
		if err != nil {
			return nil, err
		}
		cfg.Index.Figures = figures
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile loads .vab.yaml or .vab.yml from dir, if present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".vab.yaml", ".vab.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML loads and merges a YAML config file over c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.Catalog != "" {
		c.Paths.Catalog = other.Paths.Catalog
	}
	if other.Paths.Index != "" {
		c.Paths.Index = other.Paths.Index
	}
	if other.Paths.Checkpoint != "" {
		c.Paths.Checkpoint = other.Paths.Checkpoint
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.RequestsPerSecond != 0 {
		c.Embeddings.RequestsPerSecond = other.Embeddings.RequestsPerSecond
	}

	if other.Search.Limit != 0 {
		c.Search.Limit = other.Search.Limit
	}
	if other.Search.ScoreThreshold != 0 {
		c.Search.ScoreThreshold = other.Search.ScoreThreshold
	}
	if other.Search.OverFetchMultiplier != 0 {
		c.Search.OverFetchMultiplier = other.Search.OverFetchMultiplier
	}
	if other.Search.OverFetchFloor != 0 {
		c.Search.OverFetchFloor = other.Search.OverFetchFloor
	}

	if other.Index.BatchSize != 0 {
		c.Index.BatchSize = other.Index.BatchSize
	}
	if len(other.Index.Figures) > 0 {
		c.Index.Figures = other.Index.Figures
	}
	if other.Index.FiguresFile != "" {
		c.Index.FiguresFile = other.Index.FiguresFile
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// applyEnvOverrides applies VAB_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VAB_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("VAB_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("VAB_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("VAB_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("VAB_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.BatchSize = n
		}
	}
	if v := os.Getenv("VAB_SCORE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Search.ScoreThreshold = f
		}
	}
	if v := os.Getenv("VAB_FIGURES_FILE"); v != "" {
		c.Index.FiguresFile = v
	}
	if v := os.Getenv("VAB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	if c.Embeddings.BatchSize < 0 {
		return fmt.Errorf("embeddings.batch_size must be non-negative, got %d", c.Embeddings.BatchSize)
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("index.batch_size must be positive, got %d", c.Index.BatchSize)
	}
	if c.Search.Limit < 0 {
		return fmt.Errorf("search.limit must be non-negative, got %d", c.Search.Limit)
	}
	if c.Search.ScoreThreshold <= 0 {
		return fmt.Errorf("search.score_threshold must be positive, got %f", c.Search.ScoreThreshold)
	}
	if c.Search.OverFetchMultiplier <= 0 {
		return fmt.Errorf("search.over_fetch_multiplier must be positive, got %d", c.Search.OverFetchMultiplier)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
