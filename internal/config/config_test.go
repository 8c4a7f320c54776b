package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Memory.WorkingMemorySize = 42
	cfg.Awareness.MinSamplesForPattern = 7

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Memory.WorkingMemorySize)
	assert.Equal(t, 7, loaded.Awareness.MinSamplesForPattern)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresGenAIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "genai"
	cfg.Embedding.GenAIAPIKey = ""
	assert.Error(t, cfg.Validate())
}
