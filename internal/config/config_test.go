package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Memory, cfg.Memory)
	assert.Equal(t, []string{"robotA", "robotB"}, cfg.Robot.AllowedIDs)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
}

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.toml")

	cfg := Default()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "brain.db")
	cfg.Memory.ContextWindow = 4
	cfg.Robot.AllowedIDs = []string{"robotZ"}
	cfg.LLM.Timeout = 5 * time.Second
	require.NoError(t, Write(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Memory.ContextWindow)
	assert.Equal(t, cfg.Storage.SQLitePath, got.Storage.SQLitePath)
	assert.Equal(t, []string{"robotZ"}, got.Robot.AllowedIDs)
	assert.Equal(t, 5*time.Second, got.LLM.Timeout)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("COMPANION_MEMORY_CONTEXT_WINDOW", "7")
	t.Setenv("COMPANION_LLM_MODEL", "local-model")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Memory.ContextWindow)
	assert.Equal(t, "local-model", cfg.LLM.Model)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Memory.ContextWindow = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Memory.DefaultTopK = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Robot.Stage = "teenager"
	assert.Error(t, cfg.Validate())
	cfg.Robot.Stage = "awaken"
	assert.NoError(t, cfg.Validate())

	assert.NoError(t, Default().Validate())
}

func TestRobotAllowed(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.RobotAllowed("robotA"))
	assert.False(t, cfg.RobotAllowed("robotC"))

	cfg.Robot.AllowedIDs = nil
	assert.True(t, cfg.RobotAllowed("anything"))
	assert.False(t, cfg.RobotAllowed(""))
}
