package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("IMPORTER_CONFIG", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultRefreshInterval, cfg.UpdateInterval)
	assert.Equal(t, DefaultWindowDays, cfg.WindowDays)
	assert.Equal(t, DefaultMarginDays, cfg.MarginDays)
	assert.Empty(t, cfg.Accounts)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "importer.yaml")
	content := `
update_interval: 30m
window_days: 3
margin_days: 0
accounts:
  - A-1
  - A-2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("IMPORTER_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.UpdateInterval)
	assert.Equal(t, 3, cfg.WindowDays)
	assert.Equal(t, 0, cfg.MarginDays)
	assert.Equal(t, []string{"A-1", "A-2"}, cfg.Accounts)
}

func TestLoadConfigRejectsBadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "importer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window_days: -1\n"), 0o600))
	t.Setenv("IMPORTER_CONFIG", path)

	_, err := LoadConfig()
	assert.Error(t, err)
}
