package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "html-audit/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 5, cfg.Fetch.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, "WCAG2AA", cfg.Audit.Standard)
	assert.Len(t, cfg.Audit.Validators, 3)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Database.Driver)
	assert.Empty(t, cfg.Paths.Pages)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "html-audit.yaml")
	content := `
fetch:
  concurrency: 12
  timeout: 5s
  render: true
audit:
  validators:
    - http://localhost:8888/
database:
  driver: sqlite3
  url: runs.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("HTML_AUDIT_SERVER_PORT", "9090")
	t.Setenv("HTML_AUDIT_PATHS_MAP", "/data/map.json")
	t.Setenv("HTML_AUDIT_PATHS_PAGES", "/data/pages")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Fetch.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout())
	assert.True(t, cfg.Fetch.Render)
	assert.Equal(t, []string{"http://localhost:8888/"}, cfg.Audit.Validators)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/data/map.json", cfg.Paths.Map)
	assert.Equal(t, "/data/pages", cfg.Paths.Pages)
}

func TestLoadConfigExplicitMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDurationFallback(t *testing.T) {
	cfg := &Config{}
	cfg.Fetch.Timeout = "soon"
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 2*time.Second, cfg.RenderWait())
	assert.Equal(t, 10*time.Second, cfg.LinkTimeout())
}
