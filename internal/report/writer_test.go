package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports", "nested")
	data := map[string]interface{}{"link": map[string][]string{}}

	path, err := Write(data, dir+"/", LinksReport, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, LinksReport), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"link":{}}`, string(raw))
}

func TestWriteToStdout(t *testing.T) {
	var out bytes.Buffer
	path, err := Write(map[string]int{"n": 1}, "", HTML5Report, &out)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.JSONEq(t, `{"n":1}`, out.String())
}

func TestReadKnownReport(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(map[string]string{"a": "b"}, dir, A11yReport, nil)
	require.NoError(t, err)

	raw, err := Read(dir, A11yReport)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "b", got["a"])
}

func TestReadRejectsUnknownAndMissing(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(dir, "../secrets.json")
	assert.Error(t, err)

	_, err = Read(dir, LinksReport)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
