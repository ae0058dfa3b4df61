package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesRunFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, err := NewLogger("debug", dir, "Fetch Run")
	require.NoError(t, err)

	logger.Debug("page downloaded", "file", "sitemap-0.html")
	require.NoError(t, logger.Close())

	assert.True(t, strings.HasPrefix(filepath.Base(logger.Path()), "fetch_run_"))
	data, err := os.ReadFile(logger.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "page downloaded")
	assert.Contains(t, string(data), "file=sitemap-0.html")
}

func TestNewLoggerStderrOnly(t *testing.T) {
	logger, err := NewLogger("info", "", "audit")
	require.NoError(t, err)
	assert.Empty(t, logger.Path())
	assert.NoError(t, logger.Close())
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger("chatty", "", "audit")
	assert.Error(t, err)
}
