package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "mxbai-embed-large", cfg.Embeddings.Model)
	assert.Equal(t, 512, cfg.Index.BatchSize)
	assert.Equal(t, 10, cfg.Search.Limit)
	assert.Equal(t, 1.0, cfg.Search.ScoreThreshold)
	assert.Equal(t, 5, cfg.Search.OverFetchMultiplier)
	assert.Equal(t, 20, cfg.Search.OverFetchFloor)
	assert.Contains(t, cfg.Index.Figures, "Genesis 9")
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestConfig_PathResolution(t *testing.T) {
	cfg := NewConfig()
	cfg.Paths.DataDir = "/data/vab"

	// Relative paths resolve against DataDir
	assert.Equal(t, "/data/vab/catalog.db", cfg.CatalogPath())
	assert.Equal(t, "/data/vab/vectors.idx", cfg.IndexPath())
	assert.Equal(t, "/data/vab/checkpoint", cfg.CheckpointPath())

	// Absolute paths pass through
	cfg.Paths.Index = "/elsewhere/my.idx"
	assert.Equal(t, "/elsewhere/my.idx", cfg.IndexPath())
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	// Given: a project config that overrides a few fields
	dir := t.TempDir()
	content := `
embeddings:
  model: nomic-embed-text
search:
  limit: 25
index:
  batch_size: 64
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".vab.yaml"), []byte(content), 0644))

	// When: loading
	cfg, err := Load(dir)

	// Then: overridden fields change, the rest keep defaults
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, 25, cfg.Search.Limit)
	assert.Equal(t, 64, cfg.Index.BatchSize)
	assert.Equal(t, 1.0, cfg.Search.ScoreThreshold)
}

func TestLoad_EnvOverridesProjectConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	// Given: a project config and an env var for the same field
	dir := t.TempDir()
	content := "embeddings:\n  model: nomic-embed-text\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".vab.yaml"), []byte(content), 0644))
	t.Setenv("VAB_EMBED_MODEL", "embeddinggemma")
	t.Setenv("VAB_LOG_LEVEL", "debug")

	// When: loading
	cfg, err := Load(dir)

	// Then: the env var wins
	require.NoError(t, err)
	assert.Equal(t, "embeddinggemma", cfg.Embeddings.Model)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "mxbai-embed-large", cfg.Embeddings.Model)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".vab.yaml"), []byte("search: [not a map"), 0644))

	_, err := Load(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "openai" }},
		{"zero index batch size", func(c *Config) { c.Index.BatchSize = 0 }},
		{"negative search limit", func(c *Config) { c.Search.Limit = -1 }},
		{"zero score threshold", func(c *Config) { c.Search.ScoreThreshold = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_AcceptsKnownProviders(t *testing.T) {
	for _, provider := range []string{"", "ollama", "static", "Ollama"} {
		cfg := NewConfig()
		cfg.Embeddings.Provider = provider
		assert.NoError(t, cfg.Validate(), "provider %q", provider)
	}
}

func TestLoadFigures(t *testing.T) {
	// Given: a figures file with blanks and padding
	path := filepath.Join(t.TempDir(), "figures.json")
	require.NoError(t, os.WriteFile(path, []byte(`["Genesis 9", " Genesis 8 ", ""]`), 0644))

	// When: loading
	figures, err := LoadFigures(path)

	// Then: entries are trimmed, blanks dropped, order preserved
	require.NoError(t, err)
	assert.Equal(t, []string{"Genesis 9", "Genesis 8"}, figures)
}

func TestLoadFigures_EmptyFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figures.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))

	_, err := LoadFigures(path)

	require.Error(t, err)
}

func TestLoadFigures_MissingFileFails(t *testing.T) {
	_, err := LoadFigures(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoad_FiguresFileReplacesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	// Given: a project config pointing at a figures file
	dir := t.TempDir()
	figPath := filepath.Join(dir, "figs.json")
	require.NoError(t, os.WriteFile(figPath, []byte(`["Aiko 9"]`), 0644))
	content := "index:\n  figures_file: " + figPath + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".vab.yaml"), []byte(content), 0644))

	// When: loading
	cfg, err := Load(dir)

	// Then: the file's figures replace the built-in list
	require.NoError(t, err)
	assert.Equal(t, []string{"Aiko 9"}, cfg.Index.Figures)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	// Given: a config with non-default values
	cfg := NewConfig()
	cfg.Embeddings.Model = "custom-model"
	cfg.Search.Limit = 42
	path := filepath.Join(t.TempDir(), "config.yaml")

	// When: writing and reloading
	require.NoError(t, cfg.WriteYAML(path))
	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))

	// Then: values survive
	assert.Equal(t, "custom-model", loaded.Embeddings.Model)
	assert.Equal(t, 42, loaded.Search.Limit)
}
