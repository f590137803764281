package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "knowledge.db", cfg.Store.Path)
	assert.Equal(t, "memory", cfg.Index.Backend)
	assert.Equal(t, "knowledge", cfg.Index.Collection)
	assert.Equal(t, "mock", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.InDelta(t, 0.7, cfg.Retrieval.VectorWeight, 0.001)
	assert.InDelta(t, 0.3, cfg.Retrieval.LexicalWeight, 0.001)
	assert.InDelta(t, 10.0, cfg.Retrieval.LexicalScale, 0.001)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.True(t, cfg.Retrieval.UseBM25)
	assert.Equal(t, 500, cfg.Chunk.Size)
	assert.Equal(t, 50, cfg.Chunk.Overlap)
	assert.Equal(t, "mock", cfg.Generation.Provider)
	assert.Equal(t, 3500, cfg.Prompt.MaxContextChars)
	assert.Equal(t, "dev", cfg.Prompt.Agent)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.2, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.InDelta(t, 0.5, cfg.Monitoring.LowConfidenceFloor, 0.001)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/knowledge
index:
  backend: qdrant
retrieval:
  top_k: 8
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "qdrant", cfg.Index.Backend)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 500, cfg.Chunk.Size)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("KNOWLEDGE_STORE_DRIVER", "postgres")
	t.Setenv("KNOWLEDGE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("KNOWLEDGE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Index.Backend = "memory"
	cfg.Generation.Provider = "mock"
	cfg.Retrieval.VectorWeight = 0.7
	cfg.Retrieval.LexicalWeight = 0.3
	cfg.Retrieval.LexicalScale = 10.0
	cfg.Retrieval.TopK = 5
	cfg.Chunk.Size = 500
	cfg.Chunk.Overlap = 50
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateQuery_MockProviderNeedsNoKey(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("query"))
}

func TestValidateQuery_ProviderKeyRequired(t *testing.T) {
	cfg := validDefaults()
	cfg.Generation.Provider = "dashscope"

	err := cfg.Validate("query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation.key is required")

	cfg.Generation.Key = "sk-test"
	assert.NoError(t, cfg.Validate("query"))
}

func TestValidateQuery_UnknownProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.Generation.Provider = "oracle"

	err := cfg.Validate("query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation.provider")
}

func TestValidateIndex_QdrantNeedsAddr(t *testing.T) {
	cfg := validDefaults()
	cfg.Index.Backend = "qdrant"

	err := cfg.Validate("index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qdrant_addr")

	cfg.Index.QdrantAddr = "localhost:6334"
	assert.NoError(t, cfg.Validate("index"))
}

func TestValidateIndex_UnknownBackend(t *testing.T) {
	cfg := validDefaults()
	cfg.Index.Backend = "faiss"

	err := cfg.Validate("index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.backend")
}

func TestValidateChunkBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Chunk.Overlap = 500
	err := cfg.Validate("index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk.overlap")

	cfg.Chunk.Overlap = 50
	cfg.Chunk.Size = 0
	err = cfg.Validate("index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk.size")
}

func TestValidateRetrievalBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Retrieval.TopK = 0
	err := cfg.Validate("query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top_k")

	cfg.Retrieval.TopK = 5
	cfg.Retrieval.LexicalScale = 0
	err = cfg.Validate("query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lexical_scale")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
