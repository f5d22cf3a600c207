package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/companion-brain/internal/config"
)

type closeSpy struct{ closed int }

func (c *closeSpy) Close() error {
	c.closed++
	return nil
}

func TestNewAppFailureReturnsNoApp(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cfg := config.Default()
	cfg.Storage.DataDir = dir
	cfg.Storage.SQLitePath = filepath.Join(blocker, "brain.db")

	a, err := newApp(cfg)
	require.Error(t, err)
	assert.Nil(t, a)
	// the log file was opened before the store failed
	assert.FileExists(t, filepath.Join(dir, "brain.log"))
}

func TestAppCloseBeforeStoreOpened(t *testing.T) {
	spy := &closeSpy{}
	a := &app{logFile: spy}

	assert.NotPanics(t, a.Close)
	assert.Equal(t, 1, spy.closed)
}
