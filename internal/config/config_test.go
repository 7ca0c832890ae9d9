package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Collection, cfg.Collection)
	assert.Equal(t, def.ChunkSize, cfg.ChunkSize)
	assert.Equal(t, def.ChunkOverlap, cfg.ChunkOverlap)
	assert.Equal(t, def.Model, cfg.Model)
	assert.Equal(t, dir, cfg.DataDir)
}

func TestLoadSparseFileFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `{"chunk_size": 500, "model": "gemini-1.5-pro"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.ChunkSize, "explicit value kept")
	assert.Equal(t, "gemini-1.5-pro", cfg.Model)
	assert.Equal(t, 200, cfg.ChunkOverlap, "absent value defaulted")
	assert.Equal(t, 3, cfg.ConversationWindow)
	assert.Equal(t, "traffic_accidents", cfg.Collection)
}

func TestLoadBrokenFileErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{broken"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestEnvOverridesAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "env-key")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	cfg.VectorK = 7
	require.NoError(t, Save(cfg))

	reloaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.VectorK)
}
