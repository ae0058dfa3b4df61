package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/romangod6/html-audit/internal/models"
)

// Renderer produces the HTML of a page by other means than a plain GET,
// e.g. a headless browser.
type Renderer interface {
	Render(ctx context.Context, uri string, w io.Writer) error
}

// Fetcher downloads pages into sitemap-<n>.html files.
type Fetcher struct {
	client    *http.Client
	userAgent string
	renderer  Renderer
}

func NewFetcher(client *http.Client, userAgent string, renderer Renderer) *Fetcher {
	if client == nil {
		client = NewHTTPClient(30 * time.Second)
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		renderer:  renderer,
	}
}

// Filename returns the page filename for sequence number seq.
func Filename(seq int) string {
	return fmt.Sprintf("sitemap-%d.html", seq)
}

// Download fetches uri and streams the body into targetDir/sitemap-<seq>.html.
// The file only appears once the body has been fully written.
func (f *Fetcher) Download(ctx context.Context, uri, targetDir string, seq int) (models.DownloadRecord, error) {
	dir, err := filepath.Abs(targetDir)
	if err != nil {
		return models.DownloadRecord{}, &DownloadError{URI: uri, Err: err}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return models.DownloadRecord{}, &DownloadError{URI: uri, Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	filename := Filename(seq)
	path := filepath.Join(dir, filename)

	tmp, err := os.CreateTemp(dir, "."+filename+"-*.tmp")
	if err != nil {
		return models.DownloadRecord{}, &DownloadError{URI: uri, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	written, err := f.write(ctx, uri, tmp)
	if err != nil {
		tmp.Close()
		return models.DownloadRecord{}, err
	}
	if err := tmp.Close(); err != nil {
		return models.DownloadRecord{}, &DownloadError{URI: uri, Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return models.DownloadRecord{}, &DownloadError{URI: uri, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return models.DownloadRecord{}, &DownloadError{URI: uri, Err: err}
	}

	return models.DownloadRecord{
		Filename:  filename,
		SourceURI: uri,
		Path:      path,
		Bytes:     written,
		FetchedAt: time.Now(),
	}, nil
}

func (f *Fetcher) write(ctx context.Context, uri string, w io.Writer) (int64, error) {
	cw := &countingWriter{w: w, uri: uri}

	if f.renderer != nil {
		if err := f.renderer.Render(ctx, uri, cw); err != nil {
			return cw.n, tagError(uri, err)
		}
		return cw.n, nil
	}

	resp, err := get(ctx, f.client, uri, f.userAgent, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(cw, resp.Body); err != nil {
		return cw.n, tagError(uri, err)
	}
	return cw.n, nil
}

// tagError keeps filesystem failures raised by countingWriter and treats
// everything else as a transport failure.
func tagError(uri string, err error) error {
	var de *DownloadError
	if errors.As(err, &de) {
		return de
	}
	return &TransportError{URI: uri, Err: err}
}

type countingWriter struct {
	w   io.Writer
	uri string
	n   int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil {
		return n, &DownloadError{URI: c.uri, Err: err}
	}
	return n, nil
}
