package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cvm.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 512, cfg.MaxCallDepth)
	assert.Equal(t, uint64(10), cfg.Gas.Allocation)
	assert.Equal(t, cfg.MaxArrayLength, cfg.Limits().MaxArrayLength)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
max_call_depth = 64
backend = "leveldb"
data_dir = "/tmp/cvm"

[gas]
math = 7
per_char = 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.MaxCallDepth)
	assert.Equal(t, "leveldb", cfg.Backend)
	assert.Equal(t, uint64(7), cfg.Gas.Math)
	assert.Equal(t, uint64(0), cfg.Gas.PerChar)
	// untouched keys keep their defaults
	assert.Equal(t, uint64(10), cfg.Gas.Allocation)
	assert.Equal(t, Default().CodeCacheSize, cfg.CodeCacheSize)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "max_depth = 3\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "max_depth")
}

func TestLoadRejectsBadSyntax(t *testing.T) {
	_, err := Load(writeConfig(t, "max_call_depth = \n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.MaxCallDepth = 0
	cfg.MaxArrayLength = -1
	cfg.Backend = "redis"
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "max_call_depth must be positive")
	assert.Contains(t, err.Error(), "max_array_length must not be negative")
	assert.Contains(t, err.Error(), "unknown backend redis")

	cfg = Default()
	cfg.Backend = "sqlite"
	cfg.DataDir = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
