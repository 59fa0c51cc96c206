package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 0.6, cfg.Search.Alpha)
	assert.Equal(t, 0.5, cfg.Rank.Lambda)
	assert.Equal(t, 0.95, cfg.DedupThreshold)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Provider = "carrier-pigeon"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Storage.Provider = "postgres"
	cfg.Storage.DSN = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Search.Alpha = 1.5
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.DedupThreshold = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("RESEARCHRAG_LLM_PROVIDER", "ollama")
	t.Setenv("RESEARCHRAG_LLM_MODEL", "gemma3:4b")
	t.Setenv("RESEARCHRAG_STORAGE_PROVIDER", "memory")
	t.Setenv("RESEARCHRAG_SEARCH_ALPHA", "0.8")
	t.Setenv("RESEARCHRAG_SEARCH_TOP_K", "12")
	t.Setenv("RESEARCHRAG_CACHE_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "gemma3:4b", cfg.LLM.Model)
	assert.Equal(t, "memory", cfg.Storage.Provider)
	assert.Equal(t, 0.8, cfg.Search.Alpha)
	assert.Equal(t, 12, cfg.Search.TopK)
	assert.True(t, cfg.Embedder.Cache.Enabled)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: ollama
  model: llama3
storage:
  provider: sqlite
  db_path: /tmp/research.db
search:
  alpha: 0.7
  top_k: 8
graph_path: /tmp/graph.json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, "/tmp/research.db", cfg.Storage.DBPath)
	assert.Equal(t, 0.7, cfg.Search.Alpha)
	assert.Equal(t, 8, cfg.Search.TopK)
	assert.Equal(t, "/tmp/graph.json", cfg.GraphPath)

	// Environment still wins over the file.
	t.Setenv("RESEARCHRAG_SEARCH_TOP_K", "3")
	cfg, err = LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Search.TopK)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPipelineErrorUnwrap(t *testing.T) {
	inner := os.ErrNotExist
	err := NewPipelineError("ingest", inner)

	assert.Contains(t, err.Error(), "ingest")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
