package crawler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherStreamsBodyToFile(t *testing.T) {
	page := "<html><body>" + strings.Repeat("x", 1<<16) + "</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "a", "b")
	rec, err := NewFetcher(srv.Client(), "", nil).Download(context.Background(), srv.URL+"/page", dir, 7)
	require.NoError(t, err)

	assert.Equal(t, "sitemap-7.html", rec.Filename)
	assert.Equal(t, srv.URL+"/page", rec.SourceURI)
	assert.True(t, filepath.IsAbs(rec.Path))
	assert.Equal(t, int64(len(page)), rec.Bytes)

	data, err := os.ReadFile(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, page, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestFetcherKeepsPreviousFileOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dir := t.TempDir()
	existing := filepath.Join(dir, "sitemap-0.html")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0644))

	_, err := NewFetcher(srv.Client(), "", nil).Download(context.Background(), srv.URL, dir, 0)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, srv.URL, nf.URI)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}

func TestFetcherReportsUnwritableDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	_, err := NewFetcher(srv.Client(), "", nil).Download(context.Background(), srv.URL, file, 0)

	var de *DownloadError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, srv.URL, de.URI)
}

type stubRenderer struct{ html string }

func (s stubRenderer) Render(ctx context.Context, uri string, w io.Writer) error {
	_, err := io.WriteString(w, s.html)
	return err
}

func TestFetcherUsesRenderer(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewFetcher(nil, "", stubRenderer{html: "<html>rendered</html>"}).
		Download(context.Background(), "http://example.invalid/a", dir, 1)
	require.NoError(t, err)

	data, err := os.ReadFile(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, "<html>rendered</html>", string(data))
	assert.Equal(t, int64(len(data)), rec.Bytes)
}
