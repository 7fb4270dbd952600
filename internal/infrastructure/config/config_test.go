package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Engine.GPU)
	assert.Equal(t, ".", cfg.Engine.AssetRoot)
	assert.Equal(t, 60, cfg.Engine.FrameRate)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Debug.MetricsAddr)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENGINE_GPU", "true")
	t.Setenv("ENGINE_FRAME_RATE", "30")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Engine.GPU)
	assert.Equal(t, 30, cfg.Engine.FrameRate)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFileOverlay(t *testing.T) {
	t.Setenv("ENGINE_FRAME_RATE", "30")

	path := filepath.Join(t.TempDir(), "bridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(
		"[engine]\nframe_rate = 120\nasset_root = \"/srv/assets\"\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.Engine.FrameRate)
	assert.Equal(t, "/srv/assets", cfg.Engine.AssetRoot)
	// Untouched sections keep their environment values.
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.Engine.FrameRate = 0
	assert.Error(t, cfg.Validate())

	cfg.Engine.FrameRate = 1000
	assert.Error(t, cfg.Validate())
}
