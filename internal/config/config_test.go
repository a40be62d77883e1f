package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 200, cfg.Ingestion.ChunkOverlap)
	assert.Equal(t, 0.85, cfg.Ingestion.DedupeThreshold)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.True(t, cfg.IsDevelopment())

	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
retrieval:
  top_k: 8
ingestion:
  chunk_size: 500
  chunk_overlap: 100
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 500, cfg.Ingestion.ChunkSize)
	// Untouched fields keep their defaults.
	assert.Equal(t, "memory", cfg.Cache.Driver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://env@localhost/env")
	t.Setenv("RAG_TOP_K", "3")
	t.Setenv("EMBEDDINGS_FALLBACK", "dev")
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres://env@localhost/env", cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "dev", cfg.Embedding.Fallback)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"bad cache driver", func(c *Config) { c.Cache.Driver = "memcached" }},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"top_k too high", func(c *Config) { c.Retrieval.TopK = 21 }},
		{"overlap not below chunk size", func(c *Config) { c.Ingestion.ChunkOverlap = c.Ingestion.ChunkSize }},
		{"threshold above one", func(c *Config) { c.Ingestion.DedupeThreshold = 1.5 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
